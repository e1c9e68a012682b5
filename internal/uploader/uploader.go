package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/f451labs/telemetry/internal/cloud"
	"github.com/f451labs/telemetry/internal/config"
)

const sendTimeout = 10 * time.Second

// ErrNothingToUpload is returned by Upload when no bound data type has a
// current valid value.
var ErrNothingToUpload = errors.New("uploader: no valid values to upload")

// Binding maps a data type name to the feed key it is uploaded to.
type Binding struct {
	Name string
	Feed string
}

// Bindings returns one Binding per data type that names a feed.
func Bindings(types []config.DataType) []Binding {
	var out []Binding
	for _, dt := range types {
		if dt.Feed != "" {
			out = append(out, Binding{Name: dt.Name, Feed: dt.Feed})
		}
	}
	return out
}

// Source yields the value to upload for a data type. store.Store satisfies it.
type Source interface {
	Current(name string) (float64, bool)
}

// Options control upload timing.
type Options struct {
	Freq     time.Duration
	Delay    time.Duration
	Throttle time.Duration
	Rounding int
	// Max stops uploading after this many successful uploads. 0 means no limit.
	Max int
}

// OptionsFrom builds Options from the app config section.
func OptionsFrom(a config.AppConfig) Options {
	return Options{
		Freq:     a.Freq,
		Delay:    a.Delay,
		Throttle: a.Throttle,
		Rounding: a.Rounding,
		Max:      a.Uploads,
	}
}

// Status is a snapshot of upload progress.
type Status struct {
	Last      time.Time // time of the last attempt
	LastOK    bool
	Attempted bool
	Next      time.Time
	Total     int
	Max       int
}

// Uploader tracks upload timing and pushes values to a cloud.Service.
// All methods are safe for concurrent use, but uploads run one at a time.
// Status and the other getters do not wait for a round in progress.
type Uploader struct {
	svc      cloud.Service
	bindings []Binding
	opts     Options

	// sending serializes Upload rounds; mu guards the fields below.
	sending   sync.Mutex
	mu        sync.Mutex
	delay     time.Duration
	last      time.Time
	lastOK    bool
	attempted bool
	num       int
	bo        *backoff
}

// New returns an Uploader whose first upload is due opts.Delay after start.
func New(svc cloud.Service, bindings []Binding, opts Options, start time.Time) *Uploader {
	return &Uploader{
		svc:      svc,
		bindings: bindings,
		opts:     opts,
		delay:    opts.Delay,
		last:     start,
		bo:       newBackoff(),
	}
}

// Due reports whether an upload should be attempted at now.
func (u *Uploader) Due(now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.done() && now.Sub(u.last) >= u.delay
}

// Next returns the time the next upload becomes due.
func (u *Uploader) Next() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last.Add(u.delay)
}

// Remaining returns how long until the next upload, never negative.
func (u *Uploader) Remaining(now time.Time) time.Duration {
	return max(u.Next().Sub(now), 0)
}

// Done reports whether the configured upload limit has been reached.
func (u *Uploader) Done() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done()
}

func (u *Uploader) done() bool {
	return u.opts.Max > 0 && u.num >= u.opts.Max
}

// Total returns the number of successful uploads.
func (u *Uploader) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.num
}

// Status returns a snapshot for display.
func (u *Uploader) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Status{
		Last:      u.last,
		LastOK:    u.lastOK,
		Attempted: u.attempted,
		Next:      u.last.Add(u.delay),
		Total:     u.num,
		Max:       u.opts.Max,
	}
}

// Upload sends the current value of every bound data type from src and
// schedules the next attempt. Feeds rejected with a permanent error are
// logged and skipped; throttling or a transient failure aborts the round.
func (u *Uploader) Upload(ctx context.Context, now time.Time, src Source) error {
	u.sending.Lock()
	defer u.sending.Unlock()

	u.mu.Lock()
	u.last = now
	u.attempted = true
	u.mu.Unlock()

	if u.svc == nil || !u.svc.Active() {
		u.mu.Lock()
		u.lastOK = false
		u.delay = u.opts.Freq
		u.mu.Unlock()
		return cloud.ErrInactive
	}

	sent, feed, err := u.send(ctx, src)

	u.mu.Lock()
	defer u.mu.Unlock()
	if err != nil {
		return u.fail(feed, err)
	}
	if sent == 0 {
		u.lastOK = false
		return ErrNothingToUpload
	}

	u.num++
	u.lastOK = true
	u.delay = u.opts.Freq
	u.bo.reset()
	slog.Info("uploader: uploaded", "feeds", sent, "total", u.num, "next_in", u.delay)
	return nil
}

// send pushes every bound value without holding mu. It stops at the first
// error that is not permanent and returns it with the failing feed.
func (u *Uploader) send(ctx context.Context, src Source) (sent int, feed string, err error) {
	for _, b := range u.bindings {
		v, ok := src.Current(b.Name)
		if !ok {
			slog.Debug("uploader: no valid value, skipping", "name", b.Name, "feed", b.Feed)
			continue
		}
		v = Round(v, u.opts.Rounding)

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := u.svc.SendData(sendCtx, b.Feed, v)
		cancel()
		if err == nil {
			sent++
			slog.Debug("uploader: value sent", "feed", b.Feed, "value", v)
			continue
		}

		var re *cloud.RequestError
		if errors.As(err, &re) && re.Permanent() {
			slog.Error("uploader: permanent send error, skipping feed",
				"feed", b.Feed, "status", re.Status, "err", err)
			continue
		}
		return sent, b.Feed, err
	}
	return sent, "", nil
}

// fail records a failed round. The caller holds mu.
func (u *Uploader) fail(feed string, err error) error {
	u.lastOK = false

	var te *cloud.ThrottlingError
	if errors.As(err, &te) {
		u.delay = u.opts.Freq + u.opts.Throttle
		slog.Warn("uploader: throttled", "feed", feed, "retry_in", u.delay)
	} else {
		u.delay = min(u.bo.next(), u.opts.Freq)
		slog.Error("uploader: send failed, will retry", "feed", feed, "err", err, "retry_in", u.delay)
	}
	return fmt.Errorf("uploader: send %s: %w", feed, err)
}

// Round rounds v to the given number of decimals. Negative decimals leave v
// unchanged.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
