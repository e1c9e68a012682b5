package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CSV reads worksheets stored as <dir>/<worksheet>.csv.
type CSV struct {
	dir       string
	worksheet string
}

// NewCSV returns a CSV workbook rooted at dir.
func NewCSV(dir, worksheet string) *CSV {
	return &CSV{dir: dir, worksheet: worksheet}
}

func (c *CSV) ReadCell(ctx context.Context, cell, worksheet string) (string, error) {
	pos, err := ParseCell(cell)
	if err != nil {
		return "", err
	}
	rows, err := c.load(ctx, worksheet)
	if err != nil {
		return "", err
	}
	if pos.Row >= len(rows) || pos.Col >= len(rows[pos.Row]) {
		return "", nil
	}
	return rows[pos.Row][pos.Col], nil
}

// ReadRange returns the cells inside rng. Rows and trailing cells past the
// end of the data are omitted, as the Sheets API does.
func (c *CSV) ReadRange(ctx context.Context, rng, worksheet string) ([][]string, error) {
	from, to, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}
	rows, err := c.load(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	var out [][]string
	for r := from.Row; r <= to.Row && r < len(rows); r++ {
		row := rows[r]
		var vals []string
		for col := from.Col; col <= to.Col && col < len(row); col++ {
			vals = append(vals, row[col])
		}
		out = append(out, vals)
	}
	return out, nil
}

func (c *CSV) load(ctx context.Context, worksheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if worksheet == "" {
		worksheet = c.worksheet
	}
	if worksheet == "" {
		return nil, fmt.Errorf("%w: no worksheet given and no default", ErrNotFound)
	}
	f, err := os.Open(filepath.Join(c.dir, worksheet+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, worksheet)
	}
	if err != nil {
		return nil, fmt.Errorf("sheet: open %s: %w", worksheet, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheet: parse %s: %w", worksheet, err)
	}
	return rows, nil
}
