package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/f451labs/telemetry/internal/config"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.ReceiveData(ctx, "temp"); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	_ = m.SendData(ctx, "temp", 1.5)
	_ = m.SendData(ctx, "temp", 2)
	d, err := m.ReceiveData(ctx, "temp")
	if err != nil || d.Value != "2" {
		t.Errorf("ReceiveData = %+v, %v", d, err)
	}
	if got := len(m.Sent("temp")); got != 2 {
		t.Errorf("Sent = %d, want 2", got)
	}

	boom := errors.New("boom")
	m.Fail = boom
	if err := m.SendData(ctx, "temp", 3); !errors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}
	if err := m.SendData(ctx, "temp", 3); err != nil {
		t.Errorf("failure should clear after one call, got %v", err)
	}
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	f := Feed{Service: m, Key: "humidity"}
	if err := f.Send(ctx, 55); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d, err := f.Receive(ctx)
	if err != nil || d.Value != "55" {
		t.Errorf("Receive = %+v, %v", d, err)
	}

	if err := (Feed{Service: m}).Send(ctx, 1); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := (Feed{Key: "x"}).Send(ctx, 1); !errors.Is(err, ErrInactive) {
		t.Errorf("expected ErrInactive for nil service, got %v", err)
	}
	inactive := NewAdafruit(config.AdafruitConfig{})
	if _, err := (Feed{Service: inactive, Key: "x"}).Receive(ctx); !errors.Is(err, ErrInactive) {
		t.Errorf("expected ErrInactive, got %v", err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, config.CloudConfig{Backend: "none"})
	if err != nil {
		t.Fatalf("New(none): %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("none backend = %T, want *Memory", s)
	}
	s, err = New(ctx, config.CloudConfig{Backend: "adafruit"})
	if err != nil {
		t.Fatalf("New(adafruit): %v", err)
	}
	if s.Active() {
		t.Error("adafruit without credentials should be inactive")
	}
	if _, err := New(ctx, config.CloudConfig{Backend: "arduino"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(21.456, 2); got != "21.46" {
		t.Errorf("FormatValue = %q", got)
	}
	if got := FormatValue(3, 0); got != "3" {
		t.Errorf("FormatValue = %q", got)
	}
}
