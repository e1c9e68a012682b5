package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/f451labs/telemetry/internal/compute"
	"github.com/f451labs/telemetry/internal/config"
)

const (
	maxHistoryLen  = 200
	recentWindow   = 1 * time.Hour
	deliverTimeout = 10 * time.Second
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one alert event for a data type.
type Alert struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates prepared rows and delivers notifications when alerts fire
// or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	cond     Condition
	cooldown time.Duration
	webhooks []config.WebhookConfig
	client   *http.Client
	mail     mailer // nil when email is not configured

	mu       sync.Mutex
	active   map[string]*Alert    // key: data type name
	lastFire map[string]time.Time // for cooldown
	history  []*Alert             // recently resolved alerts
	now      func() time.Time

	wg sync.WaitGroup
}

// New creates an Engine from the alerts config section.
func New(cfg config.AlertsConfig) (*Engine, error) {
	sevs, err := cfg.SeverityLevels()
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = config.DefaultCooldown
	}
	e := &Engine{
		cond:     NewCondition(sevs...),
		cooldown: cooldown,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: deliverTimeout},
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
	if cfg.Mailgun.Enabled() {
		e.mail = newMailgun(cfg.Mailgun)
	}
	return e, nil
}

// Evaluate checks every row against the condition. Newly firing alerts are
// stored and delivered asynchronously unless the data type is still in its
// cooldown; alerts whose row no longer matches are resolved.
func (e *Engine) Evaluate(rows map[string]compute.Row) {
	now := e.now()

	names := make([]string, 0, len(rows))
	for n := range rows {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		r := rows[name]
		e.mu.Lock()
		a, firing := e.active[name]

		switch {
		case e.cond.Matches(r) && firing:
			a.Value = r.Current.Value
			a.Severity = r.Severity.String()
			e.mu.Unlock()

		case e.cond.Matches(r):
			if last, ok := e.lastFire[name]; ok && now.Sub(last) <= e.cooldown {
				e.mu.Unlock()
				continue
			}
			a = &Alert{
				ID:       fmt.Sprintf("%s:%d", name, now.UnixNano()),
				Name:     name,
				Label:    label(r),
				Severity: r.Severity.String(),
				Message:  firingMessage(r),
				Value:    r.Current.Value,
				FiredAt:  now,
				State:    StateFiring,
			}
			e.active[name] = a
			e.lastFire[name] = now
			alertCopy := *a
			e.mu.Unlock()

			slog.Warn("alerts: fired", "name", name, "severity", alertCopy.Severity, "value", alertCopy.Value)
			e.dispatch(&alertCopy)

		case firing:
			resolved := now
			a.State = StateResolved
			a.ResolvedAt = &resolved
			a.Message = resolvedMessage(r)
			delete(e.active, name)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			alertCopy := *a
			e.mu.Unlock()

			slog.Info("alerts: resolved", "name", name)
			e.dispatch(&alertCopy)

		default:
			e.mu.Unlock()
		}
	}
}

// Active returns copies of all firing alerts plus those resolved within the
// past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until every pending delivery has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) dispatch(a *Alert) {
	if len(e.webhooks) == 0 && e.mail == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		e.deliver(ctx, a)
	}()
}
