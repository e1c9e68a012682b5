package cloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/f451labs/telemetry/internal/config"
)

// Datum is one value stored in a feed.
type Datum struct {
	FeedKey   string    `json:"feed_key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Float parses Value as a number.
func (d Datum) Float() (float64, error) {
	return strconv.ParseFloat(d.Value, 64)
}

// Service is the capability set shared by every upload backend.
type Service interface {
	// SendData appends value to the feed identified by key.
	SendData(ctx context.Context, key string, value float64) error

	// ReceiveData returns the most recent value of the feed.
	ReceiveData(ctx context.Context, key string) (Datum, error)

	// Active reports whether the service can be used at all.
	Active() bool
}

// New returns the backend selected by cfg.Backend. "none" returns an
// in-memory sink so the upload loop still runs offline.
func New(ctx context.Context, cfg config.CloudConfig) (Service, error) {
	switch cfg.Backend {
	case "", "none":
		return NewMemory(), nil
	case "adafruit":
		return NewAdafruit(cfg.Adafruit), nil
	case "mqtt":
		m, err := DialMQTT(ctx, cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cloud: unsupported backend %q", cfg.Backend)
	}
}

// FormatValue renders v for upload with the given number of decimals.
func FormatValue(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Feed binds a Service to one feed key.
type Feed struct {
	Service Service
	Key     string
}

// Send uploads v to the feed.
func (f Feed) Send(ctx context.Context, v float64) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.Service.SendData(ctx, f.Key, v)
}

// Receive returns the latest value of the feed.
func (f Feed) Receive(ctx context.Context) (Datum, error) {
	if err := f.check(); err != nil {
		return Datum{}, err
	}
	return f.Service.ReceiveData(ctx, f.Key)
}

func (f Feed) check() error {
	if f.Service == nil || !f.Service.Active() {
		return ErrInactive
	}
	if f.Key == "" {
		return ErrEmptyKey
	}
	return nil
}
