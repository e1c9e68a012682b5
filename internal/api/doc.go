// Package api implements the HTTP REST API over the live data store.
//
// New(Deps) returns an http.Handler that serves:
//
//	GET /api/v1/health                  status, data type count, upload and alert counters
//	GET /api/v1/rows                    every data type as a prepared row ([]RowResponse)
//	GET /api/v1/rows/{name}             single row; 404 if unknown
//	GET /api/v1/rows/{name}/chart.png   line chart of the full window with limit lines
//	GET /api/v1/alerts                  firing and recently resolved alerts
//	GET /api/v1/snapshot                rows, upload status and generated_at
//	GET /api/v1/sheet?range=A1:B2       cells from the configured spreadsheet
//
// Metrics(store, opts, uploads) serves the same values as Prometheus gauges
// in the text exposition format, for mounting at /metrics.
//
// All JSON endpoints return 405 for non-GET methods. No external HTTP
// framework is used.
package api
