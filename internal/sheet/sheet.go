package sheet

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/f451labs/telemetry/internal/config"
)

// ErrNotFound is returned for an unknown worksheet.
var ErrNotFound = errors.New("sheet: worksheet not found")

// Spreadsheet reads values from a workbook. An empty worksheet name selects
// the default worksheet the spreadsheet was opened with.
type Spreadsheet interface {
	ReadCell(ctx context.Context, cell, worksheet string) (string, error)
	ReadRange(ctx context.Context, rng, worksheet string) ([][]string, error)
}

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.SheetsConfig) (Spreadsheet, error) {
	switch cfg.Backend {
	case "google":
		return NewGoogle(ctx, cfg)
	case "csv":
		return NewCSV(cfg.Path, cfg.Worksheet), nil
	case "":
		return nil, errors.New("sheet: no backend configured")
	default:
		return nil, fmt.Errorf("sheet: unsupported backend %q", cfg.Backend)
	}
}

// Cell is a zero-based position in a worksheet.
type Cell struct {
	Row, Col int
}

var a1Re = regexp.MustCompile(`^([A-Za-z]{1,3})([1-9][0-9]*)$`)

// ParseCell parses an A1 reference such as "B3".
func ParseCell(ref string) (Cell, error) {
	m := a1Re.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return Cell{}, fmt.Errorf("sheet: invalid cell %q", ref)
	}
	col := 0
	for _, r := range strings.ToUpper(m[1]) {
		col = col*26 + int(r-'A'+1)
	}
	row, _ := strconv.Atoi(m[2])
	return Cell{Row: row - 1, Col: col - 1}, nil
}

// String renders c in A1 notation.
func (c Cell) String() string {
	var col []byte
	for n := c.Col + 1; n > 0; n = (n - 1) / 26 {
		col = append([]byte{byte('A' + (n-1)%26)}, col...)
	}
	return string(col) + strconv.Itoa(c.Row+1)
}

// ParseRange parses "A1:C4" or a single cell. The result is normalised so
// the first cell is the top-left corner.
func ParseRange(rng string) (Cell, Cell, error) {
	from, to, found := strings.Cut(rng, ":")
	a, err := ParseCell(from)
	if err != nil {
		return Cell{}, Cell{}, err
	}
	if !found {
		return a, a, nil
	}
	b, err := ParseCell(to)
	if err != nil {
		return Cell{}, Cell{}, err
	}
	return Cell{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		Cell{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)}, nil
}

// qualify prefixes rng with a quoted worksheet name for the Sheets API.
func qualify(rng, worksheet string) string {
	if worksheet == "" {
		return rng
	}
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'!" + rng
}
