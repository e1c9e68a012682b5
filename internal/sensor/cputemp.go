package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/f451labs/telemetry/internal/compute"
)

// FieldCPUTemp is the CPUTemp sample field.
const FieldCPUTemp = "cpu_temp"

// cpuSensorKeys are matched, in order, against gopsutil sensor keys.
var cpuSensorKeys = []string{"cpu_thermal", "cpu", "coretemp", "k10temp", "soc"}

// CPUTemp reports a rolling average of the CPU temperature.
type CPUTemp struct {
	id     string
	window int

	mu      sync.Mutex
	history []float64

	// temps is swapped in tests.
	temps func(ctx context.Context) ([]host.TemperatureStat, error)
}

// NewCPUTemp returns a CPU temperature sensor averaging the last n readings.
func NewCPUTemp(id string, n int) *CPUTemp {
	if n < 1 {
		n = 1
	}
	return &CPUTemp{
		id:     id,
		window: n,
		temps:  host.SensorsTemperaturesWithContext,
	}
}

func (c *CPUTemp) ID() string { return c.id }

func (c *CPUTemp) Read(ctx context.Context) (Sample, error) {
	stats, err := c.temps(ctx)
	if err != nil && len(stats) == 0 {
		if strings.Contains(strings.ToLower(err.Error()), "not implemented") {
			slog.Debug("sensor: cpu temperature not implemented on this OS", "sensor", c.id)
		}
		return nil, fmt.Errorf("sensor %q: read temperatures: %w", c.id, err)
	}
	t, ok := pickCPU(stats)
	if !ok {
		return Sample{FieldCPUTemp: compute.Absent}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, t)
	if len(c.history) > c.window {
		c.history = c.history[len(c.history)-c.window:]
	}
	var sum float64
	for _, v := range c.history {
		sum += v
	}
	return Sample{FieldCPUTemp: compute.Val(sum / float64(len(c.history)))}, nil
}

func pickCPU(stats []host.TemperatureStat) (float64, bool) {
	for _, key := range cpuSensorKeys {
		for _, s := range stats {
			if strings.Contains(strings.ToLower(s.SensorKey), key) && s.Temperature > 0 {
				return s.Temperature, true
			}
		}
	}
	for _, s := range stats {
		if s.Temperature > 0 {
			return s.Temperature, true
		}
	}
	return 0, false
}
