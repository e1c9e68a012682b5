package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/f451labs/telemetry/internal/compute"
)

// deliver sends a to every configured target. Errors are logged but do not
// affect the caller.
func (e *Engine) deliver(ctx context.Context, a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(ctx, url, a)
		case "http":
			err = e.sendHTTP(ctx, url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "name", a.Name, "err", err)
		} else {
			slog.Debug("alerts: webhook delivered", "type", wh.Type, "name", a.Name, "state", a.State)
		}
	}

	if e.mail != nil {
		if err := e.mail(ctx, subject(a), a.Message); err != nil {
			slog.Error("alerts: email delivery failed", "name", a.Name, "err", err)
		} else {
			slog.Debug("alerts: email delivered", "name", a.Name, "state", a.State)
		}
	}
}

func (e *Engine) sendSlack(ctx context.Context, url string, a *Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a), a.Message),
	})
	return e.post(ctx, url, body)
}

func (e *Engine) sendHTTP(ctx context.Context, url string, a *Alert) error {
	body, _ := json.Marshal(map[string]any{"alert": a})
	return e.post(ctx, url, body)
}

func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateLabel(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case compute.SeverityDangerouslyLow.String(), compute.SeverityDangerouslyHigh.String():
		return "[CRITICAL]"
	default:
		return "[WARNING]"
	}
}

func subject(a *Alert) string {
	return fmt.Sprintf("%s %s", stateLabel(a), a.Label)
}
