package sensor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
)

// Sample maps field names to the values read in one pass. A field that could
// not be read is absent rather than missing from the map.
type Sample map[string]compute.Reading

// Sensor is the common interface implemented by every data source.
type Sensor interface {
	ID() string
	Read(ctx context.Context) (Sample, error)
}

// Options carries the app-wide settings some sensors need.
type Options struct {
	// CPUTemps is the number of CPU readings averaged by CPUTemp.
	CPUTemps int

	// Rand seeds fake sensors. nil uses a time-seeded source.
	Rand *rand.Rand
}

// New returns the Sensor for cfg.
func New(cfg config.SensorConfig, opts Options) (Sensor, error) {
	var s Sensor
	switch cfg.Type {
	case "fake":
		rng := opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		s = NewFake(cfg.ID, cfg.Delta, rng)
	case "cputemp":
		s = NewCPUTemp(cfg.ID, opts.CPUTemps)
	case "prometheus":
		p, err := NewPrometheus(cfg)
		if err != nil {
			return nil, err
		}
		s = p
	case "dht22":
		s = NewDHT22(cfg.ID, cfg.Pin)
	default:
		return nil, fmt.Errorf("sensor: unsupported type %q", cfg.Type)
	}
	if cfg.Timeout > 0 {
		s = &timeoutSensor{Sensor: s, timeout: cfg.Timeout}
	}
	return s, nil
}

type timeoutSensor struct {
	Sensor
	timeout time.Duration
}

func (t *timeoutSensor) Read(ctx context.Context) (Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Sensor.Read(ctx)
}

func (t *timeoutSensor) Close() error {
	if c, ok := t.Sensor.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Compensate corrects a board temperature for heat radiated by the CPU:
//
//	raw - (cpu - raw) / factor
//
// Lower factors apply a stronger correction.
func Compensate(raw, cpu, factor float64) float64 {
	if factor == 0 {
		return raw
	}
	return raw - (cpu-raw)/factor
}
