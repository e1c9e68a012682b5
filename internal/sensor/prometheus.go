package sensor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
)

const scrapeTimeout = 10 * time.Second

// Prometheus reads values from a text exposition endpoint, such as a
// node_exporter on the same board. Each configured field is the sum of every
// series matched by its selectors. A selector is a family name, optionally
// followed by exact label matches:
//
//	node_hwmon_temp_celsius{chip="thermal_zone0",sensor="temp1"}
type Prometheus struct {
	id       string
	endpoint string
	auth     config.SourceAuth
	fields   map[string][]selector
	client   *http.Client
}

// NewPrometheus validates the selectors in cfg.Metrics.
func NewPrometheus(cfg config.SensorConfig) (*Prometheus, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sensor %q: endpoint is required", cfg.ID)
	}
	if len(cfg.Metrics) == 0 {
		return nil, fmt.Errorf("sensor %q: no metrics configured", cfg.ID)
	}
	fields := make(map[string][]selector, len(cfg.Metrics))
	for field, raw := range cfg.Metrics {
		for _, r := range raw {
			sel, err := parseSelector(r)
			if err != nil {
				return nil, fmt.Errorf("sensor %q: field %q: %w", cfg.ID, field, err)
			}
			fields[field] = append(fields[field], sel)
		}
	}
	return &Prometheus{
		id:       cfg.ID,
		endpoint: cfg.Endpoint,
		auth:     cfg.Auth,
		fields:   fields,
		client:   &http.Client{Timeout: scrapeTimeout},
	}, nil
}

func (p *Prometheus) ID() string { return p.id }

// Read scrapes the endpoint once. A field none of whose selectors match any
// series is absent.
func (p *Prometheus) Read(ctx context.Context) (Sample, error) {
	families, err := p.scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", p.id, err)
	}

	out := make(Sample, len(p.fields))
	for field, sels := range p.fields {
		var total float64
		var matched bool
		for _, sel := range sels {
			v, ok := sel.sum(families[sel.name])
			total += v
			matched = matched || ok
		}
		if matched {
			out[field] = compute.Val(total)
		} else {
			out[field] = compute.Absent
		}
	}
	return out, nil
}

func (p *Prometheus) scrape(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	setAuth(req, p.auth)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape: unexpected status %d", resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	// The parser stops at the first malformed line; keep what it read.
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return families, nil
}

func setAuth(req *http.Request, a config.SourceAuth) {
	switch a.Mode {
	case "apikey":
		header := a.Header
		if header == "" {
			header = config.DefaultAuthHeader
		}
		req.Header.Set(header, a.Key())
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token())
	case "basic":
		req.SetBasicAuth(a.Username, a.Password())
	}
}

// selector picks series of one family by exact label values.
type selector struct {
	name   string
	labels map[string]string
}

func parseSelector(s string) (selector, error) {
	s = strings.TrimSpace(s)
	name, rest, hasLabels := strings.Cut(s, "{")
	sel := selector{name: strings.TrimSpace(name)}
	if sel.name == "" {
		return sel, fmt.Errorf("selector %q: missing metric name", s)
	}
	if !hasLabels {
		return sel, nil
	}
	body, ok := strings.CutSuffix(strings.TrimSpace(rest), "}")
	if !ok {
		return sel, fmt.Errorf("selector %q: missing closing brace", s)
	}
	sel.labels = make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		v = strings.TrimSpace(v)
		if !ok || len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			return sel, fmt.Errorf("selector %q: bad label matcher %q", s, pair)
		}
		sel.labels[strings.TrimSpace(k)] = v[1 : len(v)-1]
	}
	return sel, nil
}

// sum adds the values of every matching series and reports whether any
// series matched.
func (s selector) sum(mf *dto.MetricFamily) (float64, bool) {
	if mf == nil {
		return 0, false
	}
	var total float64
	var matched bool
	for _, m := range mf.GetMetric() {
		if !s.matches(m) {
			continue
		}
		v, ok := metricValue(m)
		if !ok {
			continue
		}
		total += v
		matched = true
	}
	return total, matched
}

func (s selector) matches(m *dto.Metric) bool {
	if len(s.labels) == 0 {
		return true
	}
	found := 0
	for _, lp := range m.GetLabel() {
		if want, ok := s.labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			found++
		}
	}
	return found == len(s.labels)
}

func metricValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	default:
		return 0, false
	}
}
