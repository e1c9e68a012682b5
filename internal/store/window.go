package store

import "github.com/f451labs/telemetry/internal/compute"

// Window stores a fixed number of readings in FIFO order. When capacity is
// reached the oldest reading is overwritten. A Window is not safe for
// concurrent use on its own; Store guards it.
type Window struct {
	data     []compute.Reading
	capacity int
	head     int // next write position
	size     int
}

// NewWindow returns an empty window. Capacities below 1 are raised to 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		data:     make([]compute.Reading, capacity),
		capacity: capacity,
	}
}

// Push appends r, evicting the oldest reading when full.
func (w *Window) Push(r compute.Reading) {
	w.data[w.head] = r
	w.head = (w.head + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
}

// Values returns a copy of the readings oldest first.
func (w *Window) Values() []compute.Reading {
	out := make([]compute.Reading, w.size)
	start := (w.head - w.size + w.capacity) % w.capacity
	for i := 0; i < w.size; i++ {
		out[i] = w.data[(start+i)%w.capacity]
	}
	return out
}

// Latest returns the most recent reading and true, or false when empty.
func (w *Window) Latest() (compute.Reading, bool) {
	if w.size == 0 {
		return compute.Absent, false
	}
	return w.data[(w.head-1+w.capacity)%w.capacity], true
}

func (w *Window) Len() int { return w.size }
func (w *Window) Cap() int { return w.capacity }

// Resize returns a window of the new capacity holding the newest readings
// of w that fit.
func (w *Window) Resize(capacity int) *Window {
	nw := NewWindow(capacity)
	vals := w.Values()
	if len(vals) > nw.capacity {
		vals = vals[len(vals)-nw.capacity:]
	}
	for _, r := range vals {
		nw.Push(r)
	}
	return nw
}
