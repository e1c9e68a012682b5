package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/f451labs/telemetry/internal/config"
)

const (
	adafruitTimeout = 10 * time.Second
	maxErrorBody    = 512
)

// FeedInfo is the subset of Adafruit IO feed metadata the app uses.
type FeedInfo struct {
	ID        int       `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	LastValue string    `json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Adafruit talks to the Adafruit IO REST API (v2). It is inactive when the
// username or key is missing, and every call then returns ErrInactive.
type Adafruit struct {
	base           string
	username       string
	key            string
	locationID     int
	randomWordID   int
	randomNumberID int
	client         *http.Client
}

// NewAdafruit builds a client from cfg, resolving the key from the
// environment.
func NewAdafruit(cfg config.AdafruitConfig) *Adafruit {
	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultAdafruitURL
	}
	a := &Adafruit{
		base:           strings.TrimRight(base, "/"),
		username:       cfg.Username,
		key:            cfg.Key(),
		locationID:     cfg.LocationID,
		randomWordID:   cfg.RandomWordID,
		randomNumberID: cfg.RandomNumberID,
		client:         &http.Client{Timeout: adafruitTimeout},
	}
	if !a.Active() {
		slog.Warn("cloud: adafruit credentials missing, service inactive",
			"username_set", cfg.Username != "", "key_env", cfg.KeyEnv)
	}
	return a
}

func (a *Adafruit) Active() bool {
	return a.username != "" && a.key != ""
}

// RandomWordID and RandomNumberID return the configured random data services.
func (a *Adafruit) RandomWordID() int   { return a.randomWordID }
func (a *Adafruit) RandomNumberID() int { return a.randomNumberID }

// CreateFeed creates a feed called name. In strict mode an existing feed
// with the same key is an error instead of being returned.
func (a *Adafruit) CreateFeed(ctx context.Context, name string, strict bool) (FeedInfo, error) {
	if !a.Active() {
		return FeedInfo{}, ErrInactive
	}
	if name == "" {
		return FeedInfo{}, ErrEmptyKey
	}
	if strict {
		_, err := a.FeedInfo(ctx, feedKeyFor(name))
		if err == nil {
			return FeedInfo{}, fmt.Errorf("%w: %q", ErrFeedExists, name)
		}
		if re, ok := err.(*RequestError); !ok || re.Status != http.StatusNotFound {
			return FeedInfo{}, err
		}
	}
	var out FeedInfo
	body := map[string]any{"feed": map[string]string{"name": name}}
	err := a.do(ctx, http.MethodPost, "/feeds", body, &out)
	return out, err
}

// Feeds lists all feeds of the account.
func (a *Adafruit) Feeds(ctx context.Context) ([]FeedInfo, error) {
	if !a.Active() {
		return nil, ErrInactive
	}
	var out []FeedInfo
	err := a.do(ctx, http.MethodGet, "/feeds", nil, &out)
	return out, err
}

// FeedInfo returns the metadata of one feed.
func (a *Adafruit) FeedInfo(ctx context.Context, key string) (FeedInfo, error) {
	if !a.Active() {
		return FeedInfo{}, ErrInactive
	}
	if key == "" {
		return FeedInfo{}, ErrEmptyKey
	}
	var out FeedInfo
	err := a.do(ctx, http.MethodGet, "/feeds/"+url.PathEscape(key), nil, &out)
	return out, err
}

// DeleteFeed removes a feed and all its data.
func (a *Adafruit) DeleteFeed(ctx context.Context, key string) error {
	if !a.Active() {
		return ErrInactive
	}
	if key == "" {
		return ErrEmptyKey
	}
	return a.do(ctx, http.MethodDelete, "/feeds/"+url.PathEscape(key), nil, nil)
}

func (a *Adafruit) SendData(ctx context.Context, key string, value float64) error {
	if !a.Active() {
		return ErrInactive
	}
	if key == "" {
		return ErrEmptyKey
	}
	body := map[string]string{"value": strconv.FormatFloat(value, 'f', -1, 64)}
	return a.do(ctx, http.MethodPost, "/feeds/"+url.PathEscape(key)+"/data", body, nil)
}

func (a *Adafruit) ReceiveData(ctx context.Context, key string) (Datum, error) {
	if !a.Active() {
		return Datum{}, ErrInactive
	}
	if key == "" {
		return Datum{}, ErrEmptyKey
	}
	var raw struct {
		Value     string    `json:"value"`
		FeedKey   string    `json:"feed_key"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := a.do(ctx, http.MethodGet, "/feeds/"+url.PathEscape(key)+"/data/last", nil, &raw); err != nil {
		return Datum{}, err
	}
	if raw.FeedKey == "" {
		raw.FeedKey = key
	}
	return Datum{FeedKey: raw.FeedKey, Value: raw.Value, CreatedAt: raw.CreatedAt}, nil
}

// ReceiveWeather returns the forecast document for a weather integration.
// id 0 uses the configured location.
func (a *Adafruit) ReceiveWeather(ctx context.Context, id int) (map[string]any, error) {
	if !a.Active() {
		return nil, ErrInactive
	}
	if id == 0 {
		id = a.locationID
	}
	out := map[string]any{}
	err := a.do(ctx, http.MethodGet, "/integrations/weather/"+strconv.Itoa(id), nil, &out)
	return out, err
}

// ReceiveRandom returns the current value of a random data service.
// id 0 uses the configured random word service.
func (a *Adafruit) ReceiveRandom(ctx context.Context, id int) (string, error) {
	if !a.Active() {
		return "", ErrInactive
	}
	if id == 0 {
		id = a.randomWordID
	}
	var raw struct {
		Value json.RawMessage `json:"value"`
	}
	if err := a.do(ctx, http.MethodGet, "/integrations/words/"+strconv.Itoa(id), nil, &raw); err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		return s, nil
	}
	return string(raw.Value), nil
}

// do sends one request and decodes a JSON response into out when non-nil.
func (a *Adafruit) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cloud: marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	u := a.base + "/api/v2/" + url.PathEscape(a.username) + path
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("cloud: build request: %w", err)
	}
	req.Header.Set("X-AIO-Key", a.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &ThrottlingError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cloud: decode response: %w", err)
	}
	return nil
}

// retryAfter parses a Retry-After header holding seconds.
func retryAfter(h string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// feedKeyFor mirrors how Adafruit IO derives a key from a feed name.
func feedKeyFor(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '.':
			b.WriteRune('-')
		}
	}
	return b.String()
}
