package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/f451labs/telemetry/internal/alerts"
	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/sheet"
	"github.com/f451labs/telemetry/internal/store"
	"github.com/f451labs/telemetry/internal/uploader"
)

// AlertLister is satisfied by *alerts.Engine.
type AlertLister interface {
	Active() []*alerts.Alert
}

// UploadStatus is satisfied by *uploader.Uploader.
type UploadStatus interface {
	Status() uploader.Status
}

// Deps are the sources the API reads from. Only Store is required.
type Deps struct {
	Store   *store.Store
	Options compute.Options
	Alerts  AlertLister
	Uploads UploadStatus
	Sheet   sheet.Spreadsheet
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	opts    compute.Options
	alerts  AlertLister       // may be nil
	uploads UploadStatus      // may be nil
	sheet   sheet.Spreadsheet // may be nil
	mux     *http.ServeMux
}

// New creates a Handler over d and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{
		store:   d.Store,
		opts:    d.Options,
		alerts:  d.Alerts,
		uploads: d.Uploads,
		sheet:   d.Sheet,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/rows", h.listRows)
	h.mux.HandleFunc("/api/v1/rows/", h.getRow) // subtree: {name} and {name}/chart.png
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/sheet", h.readSheet)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	names := h.store.Names()
	resp := HealthResponse{Status: "starting", DataTypes: len(names)}
	for _, n := range names {
		if h.store.Len(n) > 0 {
			resp.Status = "ok"
			break
		}
	}
	if h.uploads != nil {
		st := h.uploads.Status()
		resp.Uploads = st.Total
		resp.MaxUploads = st.Max
		resp.LastUploadOK = st.LastOK
		if st.Attempted {
			resp.LastUpload = rfc3339(st.Last)
		}
		resp.NextUpload = rfc3339(st.Next)
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
		if resp.AlertCount > 0 {
			resp.Status = "alerting"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rows, err := BuildRows(h.store, h.opts)
	if err != nil {
		slog.Error("api: prepare rows", "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, rows)
}

func (h *Handler) getRow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/rows/")
	if rest == "" {
		h.listRows(w, r)
		return
	}
	name, chart := strings.CutSuffix(rest, "/chart.png")
	if strings.Contains(name, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if _, ok := h.store.Definition(name); !ok {
		jsonErr(w, http.StatusNotFound, "data type not found")
		return
	}

	if chart {
		h.chart(w, name)
		return
	}

	row, err := h.prepare(name)
	if err != nil {
		slog.Error("api: prepare row", "name", name, "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, row)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := BuildSnapshot(h.store, h.opts, h.uploads)
	if err != nil {
		slog.Error("api: build snapshot", "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, snap)
}

func (h *Handler) readSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.sheet == nil {
		jsonErr(w, http.StatusNotFound, "no spreadsheet configured")
		return
	}
	q := r.URL.Query()
	rng := q.Get("range")
	if _, _, err := sheet.ParseRange(rng); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	values, err := h.sheet.ReadRange(r.Context(), rng, q.Get("worksheet"))
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.Error("api: read spreadsheet", "range", rng, "err", err)
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	if values == nil {
		values = [][]string{}
	}
	jsonResp(w, http.StatusOK, SheetResponse{Range: rng, Worksheet: q.Get("worksheet"), Values: values})
}

// --- builders ---------------------------------------------------------------

// BuildRows prepares every data type in definition order.
func BuildRows(st *store.Store, opts compute.Options) ([]RowResponse, error) {
	names := st.Names()
	rows, err := compute.Prepare(st.Series(), names, opts)
	if err != nil {
		return nil, err
	}
	out := make([]RowResponse, 0, len(names))
	for _, n := range names {
		row, ok := rows[n]
		if !ok {
			continue
		}
		out = append(out, toRowResponse(st, row))
	}
	return out, nil
}

// BuildSnapshot assembles the payload shared by GET /api/v1/snapshot and the
// WebSocket hub. up may be nil.
func BuildSnapshot(st *store.Store, opts compute.Options, up UploadStatus) (SnapshotResponse, error) {
	rows, err := BuildRows(st, opts)
	if err != nil {
		return SnapshotResponse{}, err
	}
	snap := SnapshotResponse{
		Rows:        rows,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if up != nil {
		s := up.Status()
		ur := &UploadResponse{Total: s.Total, Max: s.Max, LastOK: s.LastOK, Next: rfc3339(s.Next)}
		if s.Attempted {
			ur.Last = rfc3339(s.Last)
		}
		snap.Uploads = ur
	}
	return snap, nil
}

func (h *Handler) prepare(name string) (RowResponse, error) {
	series := h.store.Series()
	row, err := compute.PrepareOne(name, series[name], h.opts)
	if err != nil {
		return RowResponse{}, err
	}
	return toRowResponse(h.store, row), nil
}

func toRowResponse(st *store.Store, row compute.Row) RowResponse {
	graph := row.Graph
	if graph == nil {
		graph = []float64{}
	}
	return RowResponse{
		Name:      row.Name,
		Label:     row.Label,
		Unit:      row.Unit,
		Current:   row.Current,
		CurrentOK: row.CurrentOK,
		Min:       row.Min,
		Max:       row.Max,
		Trend:     row.Trend.String(),
		Arrow:     row.Trend.Arrow(),
		Severity:  row.Severity,
		Color:     row.CurrentColor(),
		Graph:     graph,
		Samples:   st.Len(row.Name),
		UpdatedAt: rfc3339(st.UpdatedAt(row.Name)),
	}
}

// --- helpers ----------------------------------------------------------------

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
