package cloud

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process backend used offline and in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]Datum
	now  func() time.Time

	// Fail, when set, is returned by the next SendData and then cleared.
	Fail error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]Datum), now: time.Now}
}

func (m *Memory) Active() bool { return true }

func (m *Memory) SendData(ctx context.Context, key string, value float64) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail; err != nil {
		m.Fail = nil
		return err
	}
	m.data[key] = append(m.data[key], Datum{
		FeedKey:   key,
		Value:     strconv.FormatFloat(value, 'f', -1, 64),
		CreatedAt: m.now(),
	})
	return nil
}

func (m *Memory) ReceiveData(_ context.Context, key string) (Datum, error) {
	if key == "" {
		return Datum{}, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := m.data[key]
	if len(d) == 0 {
		return Datum{}, ErrNoData
	}
	return d[len(d)-1], nil
}

// Sent returns a copy of everything sent to key.
func (m *Memory) Sent(key string) []Datum {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Datum(nil), m.data[key]...)
}
