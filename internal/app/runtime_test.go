package app

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/f451labs/telemetry/internal/cloud"
	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
	"github.com/f451labs/telemetry/internal/sensor"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

const testConfig = `
app:
  name: Demo
  delay: 10s
  freq: 60s
  uploads: 2
  rounding: 1
data:
  - name: rnd
    label: Random
    feed: rnd-feed
    sensor: demo
    field: rndnum
    limits: [20, 60, 140, 180]
  - name: pct
    label: Percent
    unit: "%"
    sensor: demo
    field: rndpcnt
  - name: ghost
    sensor: demo
    field: nothing
sensors:
  - id: demo
    type: fake
`

func newRuntime(t *testing.T, yaml string) *Runtime {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	r, err := New(context.Background(), cfg, Options{
		NoCLI: true,
		Rand:  rand.New(rand.NewSource(1)),
		Now:   func() time.Time { return t0 },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTick_AppendsEveryDataType(t *testing.T) {
	r := newRuntime(t, testConfig)
	if err := r.Tick(context.Background(), t0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	for _, name := range []string{"rnd", "pct", "ghost"} {
		if n := r.Store.Len(name); n != 1 {
			t.Errorf("%s: got %d readings, want 1", name, n)
		}
	}
	if v, ok := r.Store.Latest("rnd"); !ok || !v.Present || v.Value < 1 || v.Value > 200 {
		t.Errorf("rnd: got %+v", v)
	}
	if v, _ := r.Store.Latest("ghost"); v.Present {
		t.Errorf("ghost: expected absent reading, got %v", v.Value)
	}
}

func TestTick_UploadsOnSchedule(t *testing.T) {
	r := newRuntime(t, testConfig)
	mem := r.Service.(*cloud.Memory)
	ctx := context.Background()

	steps := []struct {
		at   time.Duration
		sent int
	}{
		{0, 0},
		{10 * time.Second, 1},
		{20 * time.Second, 1},
		{70 * time.Second, 2},
		{200 * time.Second, 2},
	}
	for _, s := range steps {
		if err := r.Tick(ctx, t0.Add(s.at)); err != nil {
			t.Fatalf("Tick at %v: %v", s.at, err)
		}
		if got := len(mem.Sent("rnd-feed")); got != s.sent {
			t.Errorf("at %v: sent %d, want %d", s.at, got, s.sent)
		}
	}
	if !r.Uploader.Done() {
		t.Error("expected uploader to be done after two uploads")
	}
}

func TestRun_StopsAtUploadLimit(t *testing.T) {
	r := newRuntime(t, strings.Replace(strings.Replace(testConfig, "delay: 10s", "delay: 0s", 1), "uploads: 2", "uploads: 1", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run returned only after the context expired")
	}
	if r.Uploader.Total() != 1 {
		t.Errorf("uploads: got %d, want 1", r.Uploader.Total())
	}
	if !r.WorkEnd.Equal(t0) {
		t.Errorf("WorkEnd: got %v", r.WorkEnd)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := newRuntime(t, testConfig)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Store.Len("rnd") != 1 {
		t.Errorf("expected one tick before stopping, got %d readings", r.Store.Len("rnd"))
	}
}

func TestSummary(t *testing.T) {
	r := newRuntime(t, testConfig)
	var buf bytes.Buffer
	if err := r.Summary(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Demo",
		"Work start:  Mon Jan 1, 2024 at 12:00:00 PM",
		"Work end:    Mon Jan 1, 2024 at 12:00:00 PM",
		"Num uploads: 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestApply_ReconfiguresStore(t *testing.T) {
	r := newRuntime(t, testConfig)
	if err := r.Tick(context.Background(), t0); err != nil {
		t.Fatal(err)
	}

	next, err := config.Parse([]byte(strings.Replace(testConfig, "label: Random", "label: Dice", 1)))
	if err != nil {
		t.Fatal(err)
	}
	r.Apply(next)

	def, ok := r.Store.Definition("rnd")
	if !ok || def.Label != "Dice" {
		t.Errorf("label after apply: got %+v", def)
	}
	if r.Store.Len("rnd") != 1 {
		t.Errorf("window should survive reload, got %d readings", r.Store.Len("rnd"))
	}
	if r.Config() != next {
		t.Error("Config() should return the applied config")
	}
}

func TestReading(t *testing.T) {
	samples := map[string]sensor.Sample{
		"env": {"temperature": compute.Val(30), "humidity": compute.Val(40)},
		"cpu": {sensor.FieldCPUTemp: compute.Val(60)},
	}
	tests := []struct {
		name string
		d    config.DataType
		want compute.Reading
	}{
		{"field", config.DataType{Name: "h", Sensor: "env", Field: "humidity"}, compute.Val(40)},
		{"name as field", config.DataType{Name: "humidity", Sensor: "env"}, compute.Val(40)},
		{"unknown sensor", config.DataType{Name: "t", Sensor: "nope", Field: "temperature"}, compute.Reading{}},
		{"unknown field", config.DataType{Name: "t", Sensor: "env", Field: "pressure"}, compute.Reading{}},
		{"compensated", config.DataType{Name: "temperature", Sensor: "env", Compensate: "cpu"}, compute.Val(20)},
		{"no cpu reading", config.DataType{Name: "temperature", Sensor: "env", Compensate: "gone"}, compute.Val(30)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := reading(tc.d, samples, 3); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	r := newRuntime(t, testConfig)
	if got := r.progress(t0); got != 0 {
		t.Errorf("at start: got %d", got)
	}
	if got := r.progress(t0.Add(5 * time.Second)); got != 50 {
		t.Errorf("halfway: got %d", got)
	}
	if got := r.progress(t0.Add(time.Minute)); got != 100 {
		t.Errorf("overdue: got %d", got)
	}
}

func TestNew_CustomColors(t *testing.T) {
	cfg, err := config.Parse([]byte("app:\n  colors: [red, yellow, green, cyan, blue]\n"))
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(context.Background(), cfg, Options{NoCLI: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Close()
}

func TestRowOptions_ZeroDeltaFactor(t *testing.T) {
	r := newRuntime(t, strings.Replace(testConfig, "rounding: 1", "rounding: 1\n  delta_factor: 0", 1))
	opts := r.RowOptions()
	if opts.DeltaFactor == nil || *opts.DeltaFactor != 0 {
		t.Fatalf("DeltaFactor: got %v, want explicit 0", opts.DeltaFactor)
	}
}
