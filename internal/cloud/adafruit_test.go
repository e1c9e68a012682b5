package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/f451labs/telemetry/internal/config"
)

// fakeAIO is a minimal in-memory Adafruit IO REST API.
type fakeAIO struct {
	mu    sync.Mutex
	feeds map[string][]string // key → values
	reqs  []string
	fail  int // status to return for data posts, 0 = succeed
}

func newFakeAIO(t *testing.T) (*fakeAIO, *httptest.Server) {
	t.Helper()
	f := &fakeAIO{feeds: map[string][]string{"temp": {"21.5"}}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, r.Method+" "+r.URL.Path)

	if r.Header.Get("X-AIO-Key") != "aio-key" {
		http.Error(w, `{"error":"not authorized"}`, http.StatusUnauthorized)
		return
	}
	path, ok := strings.CutPrefix(r.URL.Path, "/api/v2/maker/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(path, "/")

	switch {
	case path == "feeds" && r.Method == http.MethodGet:
		var out []FeedInfo
		for k := range f.feeds {
			out = append(out, FeedInfo{Key: k, Name: k})
		}
		_ = json.NewEncoder(w).Encode(out)

	case path == "feeds" && r.Method == http.MethodPost:
		var body struct {
			Feed struct {
				Name string `json:"name"`
			} `json:"feed"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		key := feedKeyFor(body.Feed.Name)
		f.feeds[key] = nil
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(FeedInfo{ID: 7, Key: key, Name: body.Feed.Name})

	case len(parts) == 2 && parts[0] == "feeds":
		if _, ok := f.feeds[parts[1]]; !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.feeds, parts[1])
			return
		}
		_ = json.NewEncoder(w).Encode(FeedInfo{Key: parts[1], Name: parts[1]})

	case len(parts) == 3 && parts[2] == "data" && r.Method == http.MethodPost:
		if f.fail != 0 {
			if f.fail == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "30")
			}
			http.Error(w, "nope", f.fail)
			return
		}
		var body struct {
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.feeds[parts[1]] = append(f.feeds[parts[1]], body.Value)
		_ = json.NewEncoder(w).Encode(map[string]string{"value": body.Value})

	case len(parts) == 4 && parts[3] == "last":
		vals := f.feeds[parts[1]]
		if len(vals) == 0 {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value":      vals[len(vals)-1],
			"created_at": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})

	case len(parts) == 3 && parts[0] == "integrations" && parts[1] == "weather":
		_ = json.NewEncoder(w).Encode(map[string]any{"current": map[string]any{"temperature": 12.5}})

	case len(parts) == 3 && parts[0] == "integrations" && parts[1] == "words":
		_ = json.NewEncoder(w).Encode(map[string]any{"value": "pineapple"})

	default:
		http.NotFound(w, r)
	}
}

func newTestAdafruit(t *testing.T, base string) *Adafruit {
	t.Helper()
	t.Setenv("TEST_AIO_KEY", "aio-key")
	return NewAdafruit(config.AdafruitConfig{
		Username:     "maker",
		KeyEnv:       "TEST_AIO_KEY",
		BaseURL:      base,
		LocationID:   1234,
		RandomWordID: 55,
	})
}

func TestAdafruit_SendAndReceive(t *testing.T) {
	_, srv := newFakeAIO(t)
	a := newTestAdafruit(t, srv.URL)
	ctx := context.Background()

	if err := a.SendData(ctx, "temp", 22.75); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	d, err := a.ReceiveData(ctx, "temp")
	if err != nil {
		t.Fatalf("ReceiveData: %v", err)
	}
	if d.Value != "22.75" || d.FeedKey != "temp" {
		t.Errorf("datum = %+v", d)
	}
	if v, _ := d.Float(); v != 22.75 {
		t.Errorf("Float = %v", v)
	}
}

func TestAdafruit_FeedLifecycle(t *testing.T) {
	_, srv := newFakeAIO(t)
	a := newTestAdafruit(t, srv.URL)
	ctx := context.Background()

	info, err := a.CreateFeed(ctx, "Room Humidity", true)
	if err != nil {
		t.Fatalf("CreateFeed: %v", err)
	}
	if info.Key != "room-humidity" {
		t.Errorf("key = %q", info.Key)
	}

	if _, err := a.CreateFeed(ctx, "Room Humidity", true); !errors.Is(err, ErrFeedExists) {
		t.Errorf("strict duplicate: expected ErrFeedExists, got %v", err)
	}
	if _, err := a.CreateFeed(ctx, "Room Humidity", false); err != nil {
		t.Errorf("non-strict duplicate should pass, got %v", err)
	}

	feeds, err := a.Feeds(ctx)
	if err != nil || len(feeds) != 2 {
		t.Errorf("Feeds = %v, %v", feeds, err)
	}
	if _, err := a.FeedInfo(ctx, "room-humidity"); err != nil {
		t.Errorf("FeedInfo: %v", err)
	}
	if err := a.DeleteFeed(ctx, "room-humidity"); err != nil {
		t.Errorf("DeleteFeed: %v", err)
	}
	var re *RequestError
	if _, err := a.FeedInfo(ctx, "room-humidity"); !errors.As(err, &re) || re.Status != http.StatusNotFound {
		t.Errorf("FeedInfo after delete: %v", err)
	}
}

func TestAdafruit_Integrations(t *testing.T) {
	f, srv := newFakeAIO(t)
	a := newTestAdafruit(t, srv.URL)
	ctx := context.Background()

	w, err := a.ReceiveWeather(ctx, 0)
	if err != nil {
		t.Fatalf("ReceiveWeather: %v", err)
	}
	if _, ok := w["current"]; !ok {
		t.Errorf("weather = %v", w)
	}
	word, err := a.ReceiveRandom(ctx, 0)
	if err != nil || word != "pineapple" {
		t.Errorf("ReceiveRandom = %q, %v", word, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{
		"GET /api/v2/maker/integrations/weather/1234": false,
		"GET /api/v2/maker/integrations/words/55":     false,
	}
	for _, r := range f.reqs {
		if _, ok := want[r]; ok {
			want[r] = true
		}
	}
	for r, seen := range want {
		if !seen {
			t.Errorf("request %q not made", r)
		}
	}
}

func TestAdafruit_Errors(t *testing.T) {
	f, srv := newFakeAIO(t)
	a := newTestAdafruit(t, srv.URL)
	ctx := context.Background()

	f.fail = http.StatusTooManyRequests
	var te *ThrottlingError
	if err := a.SendData(ctx, "temp", 1); !errors.As(err, &te) || te.RetryAfter != 30*time.Second {
		t.Errorf("expected throttling error with 30s, got %v", err)
	}

	f.fail = http.StatusUnprocessableEntity
	var re *RequestError
	if err := a.SendData(ctx, "temp", 1); !errors.As(err, &re) || !re.Permanent() {
		t.Errorf("expected permanent request error, got %v", err)
	}

	f.fail = http.StatusBadGateway
	if err := a.SendData(ctx, "temp", 1); !errors.As(err, &re) || re.Permanent() {
		t.Errorf("expected transient request error, got %v", err)
	}

	if err := a.SendData(ctx, "", 1); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if _, err := a.CreateFeed(ctx, "", false); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestAdafruit_Inactive(t *testing.T) {
	a := NewAdafruit(config.AdafruitConfig{Username: "maker"})
	if a.Active() {
		t.Fatal("should be inactive without a key")
	}
	ctx := context.Background()
	checks := []error{
		a.SendData(ctx, "temp", 1),
		a.DeleteFeed(ctx, "temp"),
	}
	_, err := a.ReceiveData(ctx, "temp")
	checks = append(checks, err)
	_, err = a.Feeds(ctx)
	checks = append(checks, err)
	_, err = a.CreateFeed(ctx, "x", false)
	checks = append(checks, err)
	_, err = a.ReceiveWeather(ctx, 1)
	checks = append(checks, err)
	_, err = a.ReceiveRandom(ctx, 1)
	checks = append(checks, err)
	for i, err := range checks {
		if !errors.Is(err, ErrInactive) {
			t.Errorf("call %d: expected ErrInactive, got %v", i, err)
		}
	}
}

func TestFeedKeyFor(t *testing.T) {
	tests := map[string]string{
		"Temperature":    "temperature",
		"Room Humidity":  "room-humidity",
		"cpu_temp.avg":   "cpu-temp-avg",
		"  Odd!Name?  ":  "oddname",
		"already-a-key1": "already-a-key1",
	}
	for in, want := range tests {
		if got := feedKeyFor(in); got != want {
			t.Errorf("feedKeyFor(%q) = %q, want %q", in, got, want)
		}
	}
}
