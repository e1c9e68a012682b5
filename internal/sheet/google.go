package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/f451labs/telemetry/internal/config"
)

// Google reads from a Google Sheets document with service-account
// credentials.
type Google struct {
	svc       *sheets.Service
	id        string
	worksheet string
}

// NewGoogle opens the document cfg.SpreadsheetID. Extra client options are
// appended after the credentials option, so tests can point the client at a
// local endpoint.
func NewGoogle(ctx context.Context, cfg config.SheetsConfig, opts ...option.ClientOption) (*Google, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheet: spreadsheet_id is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheet: create sheets client: %w", err)
	}
	slog.Info("sheet: google spreadsheet opened", "id", cfg.SpreadsheetID, "worksheet", cfg.Worksheet)
	return &Google{svc: svc, id: cfg.SpreadsheetID, worksheet: cfg.Worksheet}, nil
}

func (g *Google) ReadCell(ctx context.Context, cell, worksheet string) (string, error) {
	if _, err := ParseCell(cell); err != nil {
		return "", err
	}
	rows, err := g.ReadRange(ctx, cell, worksheet)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

// ReadRange accepts A1 ranges and named ranges.
func (g *Google) ReadRange(ctx context.Context, rng, worksheet string) ([][]string, error) {
	if worksheet == "" {
		worksheet = g.worksheet
	}
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, qualify(rng, worksheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheet: read %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}
