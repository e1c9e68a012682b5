package sensor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestFake_Bounds(t *testing.T) {
	tests := []struct {
		delta  float64
		lo, hi int
	}{
		{0, 1, 200},
		{10, 90, 110},
		{150, 1, 200},
		{99.5, 1, 199},
		{-10, 1, 200},
	}
	for _, tc := range tests {
		f := NewFake("f", tc.delta, rand.New(rand.NewSource(1)))
		lo, hi := f.Bounds()
		if lo != tc.lo || hi != tc.hi {
			t.Errorf("delta %v: bounds = [%d, %d], want [%d, %d]", tc.delta, lo, hi, tc.lo, tc.hi)
		}
	}
}

func TestFake_NegativeDeltaReads(t *testing.T) {
	f := NewFake("f", -10, rand.New(rand.NewSource(7)))
	for i := 0; i < 50; i++ {
		s, err := f.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n := s[FieldRandomNumber]; !n.Present || n.Value < 1 || n.Value > 200 {
			t.Fatalf("rndnum out of range: %v", n)
		}
	}
}

func TestFake_ReadStaysInRange(t *testing.T) {
	f := NewFake("f", 10, rand.New(rand.NewSource(42)))
	for i := 0; i < 500; i++ {
		s, err := f.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		n, p := s[FieldRandomNumber], s[FieldRandomPercent]
		if !n.Present || n.Value < 90 || n.Value > 110 {
			t.Fatalf("rndnum out of range: %v", n)
		}
		if !p.Present || p.Value < 0 || p.Value > 100 {
			t.Fatalf("rndpcnt out of range: %v", p)
		}
	}
}

func TestFake_Default(t *testing.T) {
	f := NewFake("f", 0, rand.New(rand.NewSource(1)))
	f.Default = compute.Val(42)
	s, _ := f.Read(context.Background())
	if s[FieldRandomNumber] != compute.Val(42) {
		t.Errorf("rndnum = %v, want 42", s[FieldRandomNumber])
	}
}

func TestFake_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFake("f", 0, rand.New(rand.NewSource(1))).Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCPUTemp_RollingAverage(t *testing.T) {
	c := NewCPUTemp("cpu", 3)
	values := []float64{40, 50, 60, 70}
	i := 0
	c.temps = func(context.Context) ([]host.TemperatureStat, error) {
		v := values[i]
		i++
		return []host.TemperatureStat{
			{SensorKey: "nvme_composite", Temperature: 30},
			{SensorKey: "cpu_thermal_input", Temperature: v},
		}, nil
	}
	want := []float64{40, 45, 50, 60}
	for _, w := range want {
		s, err := c.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if got := s[FieldCPUTemp]; !got.Present || !almostEqual(got.Value, w, 1e-9) {
			t.Errorf("cpu_temp = %v, want %v", got, w)
		}
	}
}

func TestCPUTemp_NoSensors(t *testing.T) {
	c := NewCPUTemp("cpu", 1)
	c.temps = func(context.Context) ([]host.TemperatureStat, error) { return nil, nil }
	s, err := c.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s[FieldCPUTemp].Present {
		t.Errorf("expected absent reading, got %v", s[FieldCPUTemp])
	}
}

func TestCPUTemp_Error(t *testing.T) {
	c := NewCPUTemp("cpu", 1)
	c.temps = func(context.Context) ([]host.TemperatureStat, error) {
		return nil, errors.New("not implemented yet")
	}
	if _, err := c.Read(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompensate(t *testing.T) {
	if got := Compensate(30, 52.5, 2.25); !almostEqual(got, 20, 1e-9) {
		t.Errorf("Compensate = %v, want 20", got)
	}
	if got := Compensate(30, 50, 0); got != 30 {
		t.Errorf("zero factor should leave raw unchanged, got %v", got)
	}
}

// nodeMetrics is a realistic subset of node_exporter output.
const nodeMetrics = `
# HELP node_load1 1m load average.
# TYPE node_load1 gauge
node_load1 0.42
# HELP node_hwmon_temp_celsius Hardware monitor for temperature (input)
# TYPE node_hwmon_temp_celsius gauge
node_hwmon_temp_celsius{chip="thermal_thermal_zone0",sensor="temp0"} 47.2
# HELP node_network_receive_bytes_total Network device statistic receive_bytes.
# TYPE node_network_receive_bytes_total counter
node_network_receive_bytes_total{device="eth0"} 1000
node_network_receive_bytes_total{device="wlan0"} 500
`

func TestPrometheus_Read(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(nodeMetrics))
	}))
	defer srv.Close()

	t.Setenv("TEST_NODE_KEY", "k")
	p, err := NewPrometheus(config.SensorConfig{
		ID:       "node",
		Type:     "prometheus",
		Endpoint: srv.URL,
		Metrics: map[string][]string{
			"load":    {"node_load1"},
			"temp":    {"node_hwmon_temp_celsius"},
			"rx":      {"node_network_receive_bytes_total"},
			"missing": {"node_not_exported"},
			"wlan":    {`node_network_receive_bytes_total{device="wlan0"}`},
			"nomatch": {`node_network_receive_bytes_total{device="usb0"}`},
		},
		Auth: config.SourceAuth{Mode: "apikey", KeyEnv: "TEST_NODE_KEY"},
	})
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}

	s, err := p.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := s["load"]; !almostEqual(got.Value, 0.42, 1e-9) {
		t.Errorf("load = %v", got)
	}
	if got := s["temp"]; !almostEqual(got.Value, 47.2, 1e-9) {
		t.Errorf("temp = %v", got)
	}
	if got := s["rx"]; got != compute.Val(1500) {
		t.Errorf("rx = %v, want 1500", got)
	}
	if s["missing"].Present {
		t.Errorf("missing family should be absent, got %v", s["missing"])
	}
	if got := s["wlan"]; got != compute.Val(500) {
		t.Errorf("wlan = %v, want 500", got)
	}
	if s["nomatch"].Present {
		t.Errorf("unmatched selector should be absent, got %v", s["nomatch"])
	}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		labels map[string]string
		ok     bool
	}{
		{"node_load1", "node_load1", nil, true},
		{` up{job="node", instance = "pi:9100"} `, "up", map[string]string{"job": "node", "instance": "pi:9100"}, true},
		{"up{}", "up", map[string]string{}, true},
		{`{job="node"}`, "", nil, false},
		{`up{job="node"`, "", nil, false},
		{`up{job=node}`, "", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			sel, err := parseSelector(tc.in)
			if (err == nil) != tc.ok {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
			if !tc.ok {
				return
			}
			if sel.name != tc.name || len(sel.labels) != len(tc.labels) {
				t.Fatalf("got %+v", sel)
			}
			for k, v := range tc.labels {
				if sel.labels[k] != v {
					t.Errorf("label %s = %q, want %q", k, sel.labels[k], v)
				}
			}
		})
	}
}

func TestNewPrometheus_BadSelector(t *testing.T) {
	_, err := NewPrometheus(config.SensorConfig{ID: "n", Endpoint: "http://x", Metrics: map[string][]string{"x": {"up{job"}}})
	if err == nil {
		t.Fatal("expected selector error")
	}
}

func TestPrometheus_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := NewPrometheus(config.SensorConfig{ID: "n", Endpoint: srv.URL, Metrics: map[string][]string{"x": {"x"}}})
	if _, err := p.Read(context.Background()); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     config.SensorConfig
		wantErr bool
	}{
		{config.SensorConfig{ID: "a", Type: "fake"}, false},
		{config.SensorConfig{ID: "b", Type: "cputemp"}, false},
		{config.SensorConfig{ID: "c", Type: "dht22", Pin: 4}, false},
		{config.SensorConfig{ID: "d", Type: "prometheus", Endpoint: "http://x", Metrics: map[string][]string{"l": {"l"}}}, false},
		{config.SensorConfig{ID: "e", Type: "prometheus"}, true},
		{config.SensorConfig{ID: "f", Type: "sonar"}, true},
	}
	for _, tc := range tests {
		s, err := New(tc.cfg, Options{CPUTemps: 5})
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.cfg.ID, err, tc.wantErr)
			continue
		}
		if err == nil && s.ID() != tc.cfg.ID {
			t.Errorf("ID = %q, want %q", s.ID(), tc.cfg.ID)
		}
	}
}

func TestNew_Timeout(t *testing.T) {
	s, err := New(config.SensorConfig{ID: "slow", Type: "fake", Timeout: time.Second}, Options{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*timeoutSensor); !ok {
		t.Fatalf("expected timeout wrapper, got %T", s)
	}
	if _, err := s.Read(context.Background()); err != nil {
		t.Errorf("Read: %v", err)
	}
}

// pulsesFor encodes five bytes as DHT22 pulse lengths: every low pulse is 50
// loops, a 1 bit is a 70-loop high pulse and a 0 bit a 20-loop one.
func pulsesFor(b [5]uint8) []int64 {
	p := make([]int64, dhtPulses)
	p[0], p[1] = 80, 80
	for i := 2; i < dhtPulses; i += 2 {
		p[i] = 50
	}
	bit := 0
	for _, v := range b {
		for j := 7; j >= 0; j-- {
			if v&(1<<j) != 0 {
				p[3+2*bit] = 70
			} else {
				p[3+2*bit] = 20
			}
			bit++
		}
	}
	return p
}

func TestDecodeDHT22(t *testing.T) {
	// 65.2 %RH, -10.1 °C
	temp, hum, ok := decodeDHT22(pulsesFor([5]uint8{0x02, 0x8C, 0x80, 0x65, 0x73}))
	if !ok {
		t.Fatal("checksum should pass")
	}
	if !almostEqual(hum, 65.2, 1e-9) || !almostEqual(temp, -10.1, 1e-9) {
		t.Errorf("decoded temp=%v hum=%v", temp, hum)
	}

	if _, _, ok := decodeDHT22(pulsesFor([5]uint8{0x02, 0x8C, 0x80, 0x65, 0x00})); ok {
		t.Error("bad checksum should fail")
	}
	if _, _, ok := decodeDHT22(nil); ok {
		t.Error("no pulses should fail")
	}
}
