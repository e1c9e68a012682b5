package api

import "github.com/f451labs/telemetry/internal/compute"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // starting | ok | alerting
	DataTypes    int    `json:"data_types"`
	Uploads      int    `json:"uploads"`
	MaxUploads   int    `json:"max_uploads"`
	LastUpload   string `json:"last_upload,omitempty"` // RFC3339
	LastUploadOK bool   `json:"last_upload_ok"`
	NextUpload   string `json:"next_upload,omitempty"` // RFC3339
	AlertCount   int    `json:"alert_count"`
}

// RowResponse is one data type in GET /api/v1/rows or /api/v1/rows/{name}.
type RowResponse struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Unit      string           `json:"unit"`
	Current   compute.Reading  `json:"current"`
	CurrentOK bool             `json:"current_ok"`
	Min       compute.Reading  `json:"min"`
	Max       compute.Reading  `json:"max"`
	Trend     string           `json:"trend"`
	Arrow     string           `json:"arrow"`
	Severity  compute.Severity `json:"severity"`
	Color     string           `json:"color"`
	Graph     []float64        `json:"graph"`
	Samples   int              `json:"samples"`
	UpdatedAt string           `json:"updated_at,omitempty"` // RFC3339
}

// UploadResponse is the upload status embedded in SnapshotResponse.
type UploadResponse struct {
	Total  int    `json:"total"`
	Max    int    `json:"max"`
	LastOK bool   `json:"last_ok"`
	Last   string `json:"last,omitempty"` // RFC3339
	Next   string `json:"next,omitempty"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Rows        []RowResponse   `json:"rows"`
	Uploads     *UploadResponse `json:"uploads,omitempty"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// SheetResponse is the payload for GET /api/v1/sheet.
type SheetResponse struct {
	Range     string     `json:"range"`
	Worksheet string     `json:"worksheet,omitempty"`
	Values    [][]string `json:"values"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
