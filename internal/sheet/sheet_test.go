package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"github.com/f451labs/telemetry/internal/config"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want Cell
	}{
		{"A1", Cell{0, 0}},
		{"b3", Cell{2, 1}},
		{"Z10", Cell{9, 25}},
		{"AA1", Cell{0, 26}},
		{"AZ2", Cell{1, 51}},
	}
	for _, tc := range tests {
		got, err := ParseCell(tc.in)
		if err != nil {
			t.Fatalf("ParseCell(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseCell(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
		if back := got.String(); back != strings.ToUpper(tc.in) {
			t.Errorf("String() = %q, want %q", back, strings.ToUpper(tc.in))
		}
	}
	for _, bad := range []string{"", "1A", "A0", "A", "A1B"} {
		if _, err := ParseCell(bad); err == nil {
			t.Errorf("ParseCell(%q): expected error", bad)
		}
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := ParseRange("C4:A1")
	if err != nil {
		t.Fatal(err)
	}
	if from != (Cell{0, 0}) || to != (Cell{3, 2}) {
		t.Errorf("range = %v..%v", from, to)
	}
	from, to, err = ParseRange("B2")
	if err != nil || from != to {
		t.Errorf("single cell range = %v..%v, %v", from, to, err)
	}
	if _, _, err := ParseRange("A1:"); err == nil {
		t.Error("expected error for open range")
	}
}

func writeCSV(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "Data", "name,value\ntemp,21.5\nhumidity,55,extra\n")
	writeCSV(t, dir, "Other", "x\n")
	ctx := context.Background()
	s := NewCSV(dir, "Data")

	v, err := s.ReadCell(ctx, "B2", "")
	if err != nil || v != "21.5" {
		t.Errorf("ReadCell(B2) = %q, %v", v, err)
	}
	v, err = s.ReadCell(ctx, "A1", "Other")
	if err != nil || v != "x" {
		t.Errorf("ReadCell(Other!A1) = %q, %v", v, err)
	}
	v, err = s.ReadCell(ctx, "Z99", "")
	if err != nil || v != "" {
		t.Errorf("out of bounds cell = %q, %v", v, err)
	}

	rows, err := s.ReadRange(ctx, "A2:C5", "")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"temp", "21.5"}, {"humidity", "55", "extra"}}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}

	if _, err := s.ReadCell(ctx, "A1", "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := NewCSV(dir, "").ReadCell(ctx, "A1", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("no default worksheet: expected ErrNotFound, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.SheetsConfig{Backend: "csv", Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*CSV); !ok {
		t.Errorf("csv backend = %T", s)
	}
	if _, err := Open(ctx, config.SheetsConfig{Backend: "excel"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
	if _, err := Open(ctx, config.SheetsConfig{}); err == nil {
		t.Error("expected error for empty backend")
	}
	if _, err := Open(ctx, config.SheetsConfig{Backend: "google"}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
}

// fakeSheets serves spreadsheets.values.get for a single document.
type fakeSheets struct {
	mu     sync.Mutex
	ranges []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rng, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/doc123/values/")
	if !ok {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
		return
	}
	f.mu.Lock()
	f.ranges = append(f.ranges, rng)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"range":          rng,
		"majorDimension": "ROWS",
		"values":         [][]any{{"21.5", 3}, {"x"}},
	})
}

func TestGoogle(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	g, err := NewGoogle(ctx,
		config.SheetsConfig{SpreadsheetID: "doc123", Worksheet: "Data"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}

	v, err := g.ReadCell(ctx, "A1", "")
	if err != nil || v != "21.5" {
		t.Errorf("ReadCell = %q, %v", v, err)
	}
	rows, err := g.ReadRange(ctx, "A1:B2", "Other Tab")
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(rows) != 2 || rows[0][1] != "3" || rows[1][0] != "x" {
		t.Errorf("rows = %v", rows)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{"'Data'!A1", "'Other Tab'!A1:B2"}
	if len(fake.ranges) != len(want) {
		t.Fatalf("ranges = %v", fake.ranges)
	}
	for i := range want {
		if fake.ranges[i] != want[i] {
			t.Errorf("range %d = %q, want %q", i, fake.ranges[i], want[i])
		}
	}

	if _, err := g.ReadCell(ctx, "not-a-cell", ""); err == nil {
		t.Error("expected error for bad cell")
	}
}
