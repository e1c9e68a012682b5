package sensor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	rpio "github.com/stianeikeland/go-rpio"

	"github.com/f451labs/telemetry/internal/compute"
)

// DHT22 sample fields.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

const (
	dhtPulses   = 82
	dhtRetries  = 10
	dhtMaxSpin  = int64(time.Millisecond)
	dhtSettle   = 1700 * time.Millisecond
	dhtStartLow = 20 * time.Millisecond
)

// ErrChecksum is returned when every retry of a DHT22 read failed its
// checksum.
var ErrChecksum = errors.New("sensor: dht22 checksum mismatch")

// DHT22 reads temperature and humidity from a DHT22 on a GPIO pin by
// bit-banging the single-wire protocol. Reads take about two seconds.
type DHT22 struct {
	id  string
	pin int

	mu     sync.Mutex
	opened bool
}

// NewDHT22 returns a sensor on BCM pin.
func NewDHT22(id string, pin int) *DHT22 {
	return &DHT22{id: id, pin: pin}
}

func (d *DHT22) ID() string { return d.id }

func (d *DHT22) Read(ctx context.Context) (Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("sensor %q: open gpio: %w", d.id, err)
		}
		d.opened = true
	}
	pin := rpio.Pin(d.pin)

	// GC pauses corrupt the pulse timings.
	prev := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prev)

	for i := 0; i < dhtRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, h, ok := decodeDHT22(readPulses(pin))
		if ok {
			return Sample{
				FieldTemperature: compute.Val(t),
				FieldHumidity:    compute.Val(h),
			}, nil
		}
	}
	return nil, fmt.Errorf("sensor %q: %w", d.id, ErrChecksum)
}

// Close releases the GPIO memory mapping.
func (d *DHT22) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	d.opened = false
	return rpio.Close()
}

// readPulses triggers a measurement and records the length of each low and
// high pulse in spin-loop iterations. A nil result means the sensor never
// answered.
func readPulses(pin rpio.Pin) []int64 {
	pulses := make([]int64, dhtPulses)

	time.Sleep(dhtSettle)
	pin.Mode(rpio.Output)
	pin.High()
	time.Sleep(400 * time.Millisecond)
	pin.Low()

	start := time.Now()
	for time.Since(start) < dhtStartLow {
	}
	pin.Mode(rpio.Input)
	pin.PullUp()
	defer pin.PullOff()

	start = time.Now()
	for pin.Read() == rpio.High {
		if time.Since(start) > 5*time.Millisecond {
			return nil
		}
	}

	for i := 0; i < dhtPulses-1; i += 2 {
		var n int64
		for pin.Read() == rpio.Low {
			if n > dhtMaxSpin {
				return pulses
			}
			n++
		}
		pulses[i] = n

		n = 0
		for pin.Read() == rpio.High {
			if n > dhtMaxSpin {
				return pulses
			}
			n++
		}
		pulses[i+1] = n
	}
	return pulses
}

// decodeDHT22 turns pulse lengths into a temperature in °C and a relative
// humidity in %. High pulses longer than the average low pulse are 1 bits.
func decodeDHT22(pulses []int64) (temp, hum float64, ok bool) {
	if len(pulses) < dhtPulses {
		return 0, 0, false
	}
	var threshold int64
	for i := 2; i < dhtPulses; i += 2 {
		threshold += pulses[i]
	}
	threshold /= 40

	var b [5]uint8
	for i := 3; i < dhtPulses; i += 2 {
		idx := (i - 3) / 16
		b[idx] <<= 1
		if pulses[i] > threshold {
			b[idx] |= 0x01
		}
	}
	if b[0]+b[1]+b[2]+b[3] != b[4] {
		return 0, 0, false
	}

	hum = float64(uint16(b[0])<<8|uint16(b[1])) / 10
	temp = float64(uint16(b[2]&0x7F)<<8|uint16(b[3])) / 10
	if b[2]&0x80 != 0 {
		temp = -temp
	}
	return temp, hum, true
}
