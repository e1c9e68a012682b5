package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/f451labs/telemetry/internal/alerts"
	"github.com/f451labs/telemetry/internal/cloud"
	"github.com/f451labs/telemetry/internal/colors"
	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
	"github.com/f451labs/telemetry/internal/rpi"
	"github.com/f451labs/telemetry/internal/sensor"
	"github.com/f451labs/telemetry/internal/sheet"
	"github.com/f451labs/telemetry/internal/store"
	"github.com/f451labs/telemetry/internal/ui"
	"github.com/f451labs/telemetry/internal/uploader"
)

// SummaryTimeFormat is used for the work start and end lines of Summary.
const SummaryTimeFormat = "Mon Jan 2, 2006 at 3:04:05 PM"

// Options carries process-level settings that are not part of the config file.
type Options struct {
	Version string

	// NoCLI disables the live terminal view.
	NoCLI bool

	// Out is the terminal the view is drawn on. nil means os.Stdout.
	Out *os.File

	// Rand seeds fake sensors. nil uses a time-seeded source.
	Rand *rand.Rand

	// Now replaces the wall clock. nil means time.Now.
	Now func() time.Time
}

// Runtime holds everything one telemetry app needs between ticks.
type Runtime struct {
	Console  *ui.Console
	Store    *store.Store
	Service  cloud.Service
	Uploader *uploader.Uploader
	Alerts   *alerts.Engine

	// Sheet is nil unless a spreadsheet backend is configured.
	Sheet sheet.Spreadsheet

	DeviceID  string
	WorkStart time.Time
	WorkEnd   time.Time

	mu      sync.RWMutex
	cfg     *config.Config
	sensors []sensor.Sensor
	out     io.Writer
	now     func() time.Time
}

// New builds the sensors, cloud service, store, uploader and console
// described by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	r := &Runtime{cfg: cfg, out: out, now: now}
	r.WorkStart = now()

	for _, sc := range cfg.Sensors {
		s, err := sensor.New(sc, sensor.Options{CPUTemps: cfg.App.CPUTemps, Rand: opts.Rand})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("app: sensor %q: %w", sc.ID, err)
		}
		r.sensors = append(r.sensors, s)
		slog.Info("app: registered sensor", "id", sc.ID, "type", sc.Type)
	}

	svc, err := cloud.New(ctx, cfg.Cloud)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("app: cloud: %w", err)
	}
	r.Service = svc
	if !svc.Active() {
		slog.Warn("app: cloud service inactive, uploads disabled", "backend", cfg.Cloud.Backend)
	}

	if cfg.Sheets.Backend != "" {
		sh, err := sheet.Open(ctx, cfg.Sheets)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
		r.Sheet = sh
	}

	r.Alerts, err = alerts.New(cfg.Alerts)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	palette, err := colors.TriColors(cfg.App.Colors)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	r.Store = store.New(cfg.App.MaxData, definitions(cfg.Data)...)
	r.Uploader = uploader.New(svc, uploader.Bindings(cfg.Data), uploader.OptionsFrom(cfg.App), r.WorkStart)
	r.Console = ui.NewConsole(out, !opts.NoCLI, cfg.App.Name, "", opts.Version, cfg.DataTypeNames())
	r.Console.SetPalette(palette)

	r.DeviceID = rpi.DeviceID(cfg.App.IDPrefix, "", rpi.DefaultID)
	host, err := rpi.Hostname(ctx)
	if err != nil {
		slog.Debug("app: hostname unavailable", "err", err)
	}
	wifi, err := rpi.CheckWiFi(ctx)
	if err != nil {
		slog.Debug("app: network check failed", "err", err)
	}
	slog.Info("app: runtime ready",
		"device_id", r.DeviceID,
		"host", host,
		"network", wifi,
		"data_types", len(cfg.Data),
		"sensors", len(r.sensors),
		"cli", r.Console.Active(),
	)
	return r, nil
}

// QuietConsole reports whether console logs should be suppressed because
// the live view will own f.
func QuietConsole(f *os.File, noCLI bool) bool {
	if noCLI {
		return false
	}
	w, h, ok := ui.TerminalSize(f)
	return ok && ui.Fits(w, h)
}

func definitions(types []config.DataType) []store.Definition {
	out := make([]store.Definition, len(types))
	for i, d := range types {
		out[i] = store.Definition{
			Name:   d.Name,
			Label:  d.Label,
			Unit:   d.Unit,
			Valid:  d.Range(),
			Limits: d.LimitSet(),
		}
	}
	return out
}

// Config returns the config currently in effect.
func (r *Runtime) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// RowOptions returns the compute options for the current config and
// console width.
func (r *Runtime) RowOptions() compute.Options {
	f := r.Config().App.DeltaFactor
	return compute.Options{
		DeltaFactor:  &f,
		ConsoleWidth: r.Console.Width(),
	}
}

// Apply swaps in a reloaded config. Data type labels, ranges, limits and
// window capacity take effect on the next tick; sensors, cloud settings and
// upload timing keep their startup values.
func (r *Runtime) Apply(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	r.Store.Reconfigure(cfg.App.MaxData, definitions(cfg.Data))
	if p, err := colors.TriColors(cfg.App.Colors); err == nil {
		r.Console.SetPalette(p)
	} else {
		slog.Warn("app: keeping previous colors", "err", err)
	}
	slog.Info("app: config applied", "data_types", len(cfg.Data))
}

// Tick runs one pass of the main loop at now: read every sensor, append a
// reading per data type, upload when due, then refresh alerts and the view.
func (r *Runtime) Tick(ctx context.Context, now time.Time) error {
	cfg := r.Config()
	samples := r.readSensors(ctx)
	for _, d := range cfg.Data {
		r.Store.Append(d.Name, reading(d, samples, cfg.App.TempComp))
	}

	if r.Uploader.Due(now) {
		r.Console.UpdateAction(ui.ActionUpload)
		if err := r.Console.Render(r.out); err != nil {
			return fmt.Errorf("app: render: %w", err)
		}
		r.upload(ctx, now)
	}

	rows, err := r.Store.Rows(r.RowOptions())
	if err != nil {
		return fmt.Errorf("app: prepare rows: %w", err)
	}
	r.Alerts.Evaluate(rows)

	r.Console.UpdateData(rows)
	r.Console.UpdateUploadStatus(r.uploadStatus())
	r.Console.UpdateProgress(r.progress(now), ui.ActionWait)
	if err := r.Console.Render(r.out); err != nil {
		return fmt.Errorf("app: render: %w", err)
	}
	return nil
}

func (r *Runtime) upload(ctx context.Context, now time.Time) {
	err := r.Uploader.Upload(ctx, now, r.Store)
	var te *cloud.ThrottlingError
	switch {
	case err == nil:
		slog.Info("app: uploaded", "total", r.Uploader.Total(), "next", r.Uploader.Next())
	case errors.Is(err, uploader.ErrNothingToUpload), errors.Is(err, cloud.ErrInactive):
		slog.Debug("app: upload skipped", "reason", err)
	case errors.As(err, &te):
		slog.Warn("app: upload throttled", "next", r.Uploader.Next())
	default:
		slog.Warn("app: upload failed", "err", err, "next", r.Uploader.Next())
	}
}

func (r *Runtime) readSensors(ctx context.Context) map[string]sensor.Sample {
	out := make(map[string]sensor.Sample, len(r.sensors))
	for _, s := range r.sensors {
		sample, err := s.Read(ctx)
		if err != nil {
			slog.Warn("app: sensor read failed", "sensor", s.ID(), "err", err)
			continue
		}
		out[s.ID()] = sample
	}
	return out
}

// reading picks the value for d out of this pass's samples. A missing
// sensor or field yields an absent reading.
func reading(d config.DataType, samples map[string]sensor.Sample, factor float64) compute.Reading {
	v := samples[d.Sensor][d.SampleField()]
	if !v.Present || d.Compensate == "" {
		return v
	}
	cpu := samples[d.Compensate][sensor.FieldCPUTemp]
	if !cpu.Present {
		return v
	}
	return compute.Val(sensor.Compensate(v.Value, cpu.Value, factor))
}

func (r *Runtime) uploadStatus() ui.UploadStatus {
	s := r.Uploader.Status()
	out := ui.UploadStatus{
		LastOK: s.LastOK,
		Next:   s.Next,
		Total:  s.Total,
		Max:    s.Max,
	}
	if s.Attempted {
		out.Last = s.Last
	}
	return out
}

// progress is the share of the wait until the next upload that has passed.
func (r *Runtime) progress(now time.Time) int {
	s := r.Uploader.Status()
	span := s.Next.Sub(s.Last)
	if span <= 0 || r.Uploader.Done() {
		return -1
	}
	pct := int(100 * now.Sub(s.Last) / span)
	return min(max(pct, 0), 100)
}

// Run ticks every app.wait until ctx is cancelled or the upload limit is
// reached, then records WorkEnd and waits for pending alert deliveries.
func (r *Runtime) Run(ctx context.Context) error {
	wait := r.Config().App.Wait
	ticker := time.NewTicker(wait)
	defer ticker.Stop()

	defer func() {
		r.WorkEnd = r.now()
		r.Alerts.Wait()
	}()

	for {
		if err := r.Tick(ctx, r.now()); err != nil {
			return err
		}
		if r.Uploader.Done() {
			slog.Info("app: upload limit reached", "uploads", r.Uploader.Total())
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Info("app: stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Summary writes the work start and end times and the upload count.
func (r *Runtime) Summary(w io.Writer) error {
	end := r.WorkEnd
	if end.IsZero() {
		end = r.now()
	}
	_, err := fmt.Fprintf(w, "\n%s\nWork start:  %s\nWork end:    %s\nNum uploads: %d\n",
		r.Config().App.Name,
		r.WorkStart.Format(SummaryTimeFormat),
		end.Format(SummaryTimeFormat),
		r.Uploader.Total(),
	)
	return err
}

// Close releases sensors and the cloud service.
func (r *Runtime) Close() error {
	var errs []error
	for _, s := range r.sensors {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if c, ok := r.Service.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
