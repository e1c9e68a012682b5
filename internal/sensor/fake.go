package sensor

import (
	"context"
	"math/rand"
	"sync"

	"github.com/f451labs/telemetry/internal/compute"
)

// Fake sample fields.
const (
	FieldRandomNumber  = "rndnum"
	FieldRandomPercent = "rndpcnt"
)

// Fake generates demo data. rndnum is drawn from [1, 200], or from
// ±Delta percent around 100 when Delta is set; rndpcnt is drawn from [0, 100].
type Fake struct {
	id    string
	delta float64

	// Default, when present, replaces rndnum with a fixed value.
	Default compute.Reading

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFake returns a fake sensor using rng for all draws.
func NewFake(id string, delta float64, rng *rand.Rand) *Fake {
	return &Fake{id: id, delta: delta, rng: rng}
}

func (f *Fake) ID() string { return f.id }

// Bounds returns the inclusive range rndnum is drawn from. A delta that is
// not positive uses the full range.
func (f *Fake) Bounds() (int, int) {
	if f.delta <= 0 {
		return 1, 200
	}
	lo := max(1, int((1-f.delta/100)*100))
	hi := min(200, int((1+f.delta/100)*100))
	return lo, hi
}

func (f *Fake) Read(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	num := f.Default
	if !num.Present {
		lo, hi := f.Bounds()
		num = compute.Val(float64(lo + f.rng.Intn(hi-lo+1)))
	}
	return Sample{
		FieldRandomNumber:  num,
		FieldRandomPercent: compute.Val(float64(f.rng.Intn(101))),
	}, nil
}
