package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/store"
)

const metricPrefix = "f451_"

// Metrics returns a handler that exposes the current value, severity and
// trend of every data type as Prometheus gauges. up may be nil.
func Metrics(st *store.Store, opts compute.Options, up UploadStatus) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rows, err := BuildRows(st, opts)
		if err != nil {
			slog.Error("api: prepare rows for metrics", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		for _, mf := range families(rows, up) {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				slog.Warn("api: write metrics", "err", err)
				return
			}
		}
	})
}

// families builds the metric families for rows. Rows without a current
// value are left out of f451_value.
func families(rows []RowResponse, up UploadStatus) []*dto.MetricFamily {
	value := gaugeFamily("value", "Latest valid reading per data type.")
	severity := gaugeFamily("severity", "Severity bucket of the latest reading: 0 none, 1 dangerously low .. 5 dangerously high.")
	trend := gaugeFamily("trend", "Trend of the latest reading: -1 down, 0 flat, 1 up.")
	samples := gaugeFamily("samples", "Readings held in the window.")

	for _, r := range rows {
		labels := []*dto.LabelPair{
			{Name: ptr("name"), Value: ptr(r.Name)},
			{Name: ptr("unit"), Value: ptr(r.Unit)},
		}
		if r.Current.Present {
			value.Metric = append(value.Metric, gauge(labels, r.Current.Value))
		}
		severity.Metric = append(severity.Metric, gauge(labels, float64(r.Severity)))
		trend.Metric = append(trend.Metric, gauge(labels, float64(trendValue(r.Trend))))
		samples.Metric = append(samples.Metric, gauge(labels, float64(r.Samples)))
	}

	out := []*dto.MetricFamily{value, severity, trend, samples}
	if up != nil {
		st := up.Status()
		out = append(out, &dto.MetricFamily{
			Name:   ptr(metricPrefix + "uploads_total"),
			Help:   ptr("Successful uploads since start."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(float64(st.Total))}}},
		})
	}

	// The text format rejects families without samples.
	kept := out[:0]
	for _, mf := range out {
		if len(mf.Metric) > 0 {
			kept = append(kept, mf)
		}
	}
	return kept
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(metricPrefix + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(labels []*dto.LabelPair, v float64) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(v)}}
}

func trendValue(s string) int {
	switch s {
	case compute.TrendUp.String():
		return 1
	case compute.TrendDown.String():
		return -1
	default:
		return 0
	}
}

func ptr[T any](v T) *T { return &v }
