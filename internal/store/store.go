package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/f451labs/telemetry/internal/compute"
)

// DefaultCapacity is the number of readings kept per data type.
const DefaultCapacity = 120

// Definition describes one data type tracked by the store.
type Definition struct {
	Name   string
	Label  string
	Unit   string
	Valid  compute.ValidRange
	Limits compute.LimitSet
}

type entry struct {
	def       Definition
	window    *Window
	updatedAt time.Time
}

// Store is a thread-safe set of windows keyed by data type name. Names keep
// the order in which they were defined.
type Store struct {
	mu       sync.RWMutex
	data     map[string]*entry
	order    []string
	capacity int
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Store whose windows hold capacity readings each.
func New(capacity int, defs ...Definition) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s := &Store{
		data:     make(map[string]*entry),
		capacity: capacity,
		now:      time.Now,
	}
	for _, d := range defs {
		s.define(d)
	}
	return s
}

func (s *Store) define(d Definition) {
	if e, ok := s.data[d.Name]; ok {
		e.def = d
		return
	}
	s.data[d.Name] = &entry{def: d, window: NewWindow(s.capacity)}
	s.order = append(s.order, d.Name)
}

// Define adds a data type or replaces the metadata of an existing one. An
// existing window keeps its readings.
func (s *Store) Define(d Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.define(d)
}

// Append pushes r onto the window for name. It returns false when name has
// not been defined.
func (s *Store) Append(name string, r compute.Reading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[name]
	if !ok {
		return false
	}
	e.window.Push(r)
	e.updatedAt = s.now()
	return true
}

// Latest returns the newest reading for name.
func (s *Store) Latest(name string) (compute.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	if !ok {
		return compute.Absent, false
	}
	return e.window.Latest()
}

// Current returns the newest reading for name when it is present and inside
// the valid range of its definition.
func (s *Store) Current(name string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	if !ok {
		return 0, false
	}
	r, ok := e.window.Latest()
	if !ok || !r.Present || !compute.IsValid(r.Value, e.def.Valid) {
		return 0, false
	}
	return r.Value, true
}

// Definition returns the metadata for name.
func (s *Store) Definition(name string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// UpdatedAt returns when name last received a reading. The zero time means
// never.
func (s *Store) UpdatedAt(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.data[name]; ok {
		return e.updatedAt
	}
	return time.Time{}
}

// Names returns the defined data types in definition order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of readings held for name.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.data[name]; ok {
		return e.window.Len()
	}
	return 0
}

// Series returns a copy of every window with its metadata, ready for
// compute.Prepare. Callers may modify the result freely.
func (s *Store) Series() map[string]compute.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]compute.Series, len(s.data))
	for name, e := range s.data {
		out[name] = compute.Series{
			Window: e.window.Values(),
			Valid:  e.def.Valid,
			Limits: e.def.Limits,
			Label:  e.def.Label,
			Unit:   e.def.Unit,
		}
	}
	return out
}

// Rows prepares display rows for every defined data type.
func (s *Store) Rows(opts compute.Options) (map[string]compute.Row, error) {
	return compute.Prepare(s.Series(), s.Names(), opts)
}

// Reconfigure applies a new set of definitions and window capacity, usually
// after a config reload. Windows of data types that survive keep their
// newest readings; removed data types are dropped.
func (s *Store) Reconfigure(capacity int, defs []Definition) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*entry, len(defs))
	order := make([]string, 0, len(defs))
	for _, d := range defs {
		if _, dup := next[d.Name]; dup {
			continue
		}
		e, ok := s.data[d.Name]
		switch {
		case !ok:
			e = &entry{window: NewWindow(capacity)}
		case e.window.Cap() != capacity:
			e.window = e.window.Resize(capacity)
		}
		e.def = d
		next[d.Name] = e
		order = append(order, d.Name)
	}
	removed := len(s.data) - countKept(s.data, next)
	s.data, s.order, s.capacity = next, order, capacity
	slog.Debug("store: reconfigured", "types", len(order), "capacity", capacity, "removed", removed)
}

func countKept(old, next map[string]*entry) int {
	n := 0
	for name := range old {
		if _, ok := next[name]; ok {
			n++
		}
	}
	return n
}
