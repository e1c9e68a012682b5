package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/f451labs/telemetry/internal/compute"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultName        = "f451 Labs"
	DefaultFreq        = 600 * time.Second
	DefaultDelay       = 300 * time.Second
	DefaultWait        = 1 * time.Second
	DefaultThrottle    = 120 * time.Second
	DefaultRounding    = 2
	DefaultMaxData     = 120
	DefaultTempComp    = 2.25
	DefaultCPUTemps    = 5
	DefaultIDPrefix    = "raspi-"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultBroadcast   = 5 * time.Second
	DefaultCooldown    = 15 * time.Minute
	DefaultAuthHeader  = "X-API-Key"
	DefaultTopicPrefix = "f451"
	DefaultAdafruitURL = "https://io.adafruit.com"

	// MinWait is the shortest allowed delay between sensor reads.
	MinWait = 1 * time.Second
)

// Config is the full settings tree parsed from YAML. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	App     AppConfig      `yaml:"app"`
	Log     LogConfig      `yaml:"log"`
	Data    []DataType     `yaml:"data"`
	Sensors []SensorConfig `yaml:"sensors"`
	Cloud   CloudConfig    `yaml:"cloud"`
	Sheets  SheetsConfig   `yaml:"sheets"`
	Server  ServerConfig   `yaml:"server"`
	Alerts  AlertsConfig   `yaml:"alerts"`
}

// AppConfig holds the main loop timing and display settings.
type AppConfig struct {
	// Name is shown in the logo and footer.
	Name string `yaml:"name"`

	// Freq is the delay between uploads.
	Freq time.Duration `yaml:"freq"`

	// Delay is how long to wait before the first upload.
	Delay time.Duration `yaml:"delay"`

	// Wait is the delay between sensor reads. Must be at least 1s.
	Wait time.Duration `yaml:"wait"`

	// Throttle is added to Freq after the cloud service reports throttling.
	Throttle time.Duration `yaml:"throttle"`

	// Rounding is the number of decimals kept when uploading.
	Rounding int `yaml:"rounding"`

	// DeltaFactor is the trend tolerance; 0.02 means ±2%.
	DeltaFactor float64 `yaml:"delta_factor"`

	// MaxData is the window capacity per data type.
	MaxData int `yaml:"max_data"`

	// Uploads stops the loop after this many uploads. 0 means unlimited.
	Uploads int `yaml:"uploads"`

	// TempComp is the CPU heat compensation factor for board temperature
	// sensors.
	TempComp float64 `yaml:"temp_comp"`

	// CPUTemps is the number of CPU temperature readings averaged.
	CPUTemps int `yaml:"cpu_temps"`

	// IDPrefix is prepended to the device serial number to form its ID.
	IDPrefix string `yaml:"id_prefix"`

	// Colors overrides the five severity colors, lowest first. Entries 0, 2
	// and 4 become the low/normal/high palette.
	Colors []string `yaml:"colors"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text. Text uses a colored console handler.
	Format string `yaml:"format"`

	// File, when set, receives JSON logs in addition to the console.
	File string `yaml:"file"`
}

// DataType describes one row of the data table.
type DataType struct {
	// Name is the key used in the store, API and cloud feed map.
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Unit  string `yaml:"unit"`

	// Valid is [min, max]; either entry may be null for an open bound.
	Valid []*float64 `yaml:"valid"`

	// Limits is [A, B, C, D]; any null entry disables severity colors.
	Limits []*float64 `yaml:"limits"`

	// Feed is the cloud feed key this data type is uploaded to.
	// Empty means the value is never uploaded.
	Feed string `yaml:"feed"`

	// Sensor is the ID of the sensor that supplies this data type.
	Sensor string `yaml:"sensor"`

	// Field selects one value from the sensor sample. Defaults to Name.
	Field string `yaml:"field"`

	// Compensate names a cputemp sensor whose reading corrects this value
	// for heat radiated by the CPU, scaled by app.temp_comp.
	Compensate string `yaml:"compensate"`
}

// Range returns the declared valid range.
func (d DataType) Range() compute.ValidRange {
	var r compute.ValidRange
	if len(d.Valid) > 0 {
		r.Min = compute.Ptr(d.Valid[0])
	}
	if len(d.Valid) > 1 {
		r.Max = compute.Ptr(d.Valid[1])
	}
	return r
}

// LimitSet returns the declared limits. Missing entries are absent.
func (d DataType) LimitSet() compute.LimitSet {
	var l compute.LimitSet
	for i := 0; i < len(l) && i < len(d.Limits); i++ {
		l[i] = compute.Ptr(d.Limits[i])
	}
	return l
}

// SampleField returns Field, or Name when Field is empty.
func (d DataType) SampleField() string {
	if d.Field != "" {
		return d.Field
	}
	return d.Name
}

// SensorConfig describes one sensor source.
type SensorConfig struct {
	// ID is referenced by DataType.Sensor.
	ID string `yaml:"id"`

	// Type is one of: fake | cputemp | prometheus | dht22.
	Type string `yaml:"type"`

	// Endpoint is the metrics URL for prometheus sensors.
	Endpoint string `yaml:"endpoint"`

	// Metrics maps sample fields to the metric families summed into them
	// (prometheus only).
	Metrics map[string][]string `yaml:"metrics"`

	// Pin is the BCM GPIO pin for dht22 sensors.
	Pin int `yaml:"pin"`

	// Delta narrows the fake sensor range to ±Delta percent around 100.
	// 0 uses the full range.
	Delta float64 `yaml:"delta"`

	// Timeout bounds a single read. 0 means no extra timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how prometheus sensors authenticate to Endpoint.
	Auth SourceAuth `yaml:"auth"`
}

// SourceAuth specifies how a sensor authenticates to an HTTP endpoint.
type SourceAuth struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header carries the key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a SourceAuth) Key() string { return lookupEnv(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a SourceAuth) Token() string { return lookupEnv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a SourceAuth) Password() string { return lookupEnv(a.PasswordEnv) }

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// CloudConfig selects and configures the upload backend.
type CloudConfig struct {
	// Backend is one of: none | adafruit | mqtt.
	Backend  string         `yaml:"backend"`
	Adafruit AdafruitConfig `yaml:"adafruit"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// AdafruitConfig holds Adafruit IO REST credentials.
type AdafruitConfig struct {
	Username string `yaml:"username"`

	// KeyEnv is the name of the environment variable holding the AIO key.
	KeyEnv string `yaml:"key_env"`

	// BaseURL defaults to https://io.adafruit.com.
	BaseURL string `yaml:"base_url"`

	// Optional IDs for the weather and random data services.
	LocationID     int `yaml:"location_id"`
	RandomWordID   int `yaml:"random_word_id"`
	RandomNumberID int `yaml:"random_number_id"`
}

// Key returns the AIO key resolved from the environment.
func (a AdafruitConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// MQTTConfig holds MQTT v5 broker settings.
type MQTTConfig struct {
	// Broker is host:port of the MQTT broker.
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	// ClientID defaults to a random UUID-based ID.
	ClientID string `yaml:"client_id"`

	// TopicPrefix is prepended to feeds/<key>. Defaults to "f451".
	TopicPrefix string `yaml:"topic_prefix"`

	// KeepAlive in seconds. 0 uses 30.
	KeepAlive uint16 `yaml:"keep_alive"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// SheetsConfig selects the spreadsheet backend.
type SheetsConfig struct {
	// Backend is one of: google | csv. Empty disables spreadsheets.
	Backend string `yaml:"backend"`

	// CredentialsFile is a service-account JSON key (google only).
	CredentialsFile string `yaml:"credentials_file"`

	// SpreadsheetID is the Google document ID (google only).
	SpreadsheetID string `yaml:"spreadsheet_id"`

	// Worksheet is the default tab/sheet name.
	Worksheet string `yaml:"worksheet"`

	// Path is the directory holding <worksheet>.csv files (csv only).
	Path string `yaml:"path"`
}

// ServerConfig holds the HTTP API and WebSocket settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	// 0 disables the server.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval controls how often rows are pushed to WS clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig configures REST API authentication.
type ServerAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header carries the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the server API key resolved from the environment.
func (a ServerAuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// AlertsConfig holds the alerting rules and delivery targets.
type AlertsConfig struct {
	// Severities that fire an alert. Defaults to the two dangerous buckets.
	Severities []string `yaml:"severities"`

	// Cooldown suppresses re-fires per data type.
	Cooldown time.Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
	Mailgun  MailgunConfig   `yaml:"mailgun"`
}

// SeverityLevels parses Severities.
func (a AlertsConfig) SeverityLevels() ([]compute.Severity, error) {
	out := make([]compute.Severity, 0, len(a.Severities))
	for _, s := range a.Severities {
		sev, err := compute.ParseSeverity(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sev)
	}
	return out, nil
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// MailgunConfig configures alert emails.
type MailgunConfig struct {
	Domain     string   `yaml:"domain"`
	KeyEnv     string   `yaml:"key_env"`
	Sender     string   `yaml:"sender"`
	Recipients []string `yaml:"recipients"`
}

// Key returns the Mailgun API key resolved from the environment.
func (m MailgunConfig) Key() string {
	if m.KeyEnv == "" {
		return ""
	}
	return os.Getenv(m.KeyEnv)
}

// Enabled reports whether enough is set to send mail.
func (m MailgunConfig) Enabled() bool {
	return m.Domain != "" && m.Sender != "" && len(m.Recipients) > 0 && m.Key() != ""
}

// DataTypeNames returns the configured data type names in file order.
func (c *Config) DataTypeNames() []string {
	out := make([]string, len(c.Data))
	for i, d := range c.Data {
		out[i] = d.Name
	}
	return out
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyFallbacks(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config holding only defaults, for running without a file.
func Default() *Config {
	cfg := defaults()
	applyFallbacks(cfg)
	return cfg
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:        DefaultName,
			Freq:        DefaultFreq,
			Delay:       DefaultDelay,
			Wait:        DefaultWait,
			Throttle:    DefaultThrottle,
			Rounding:    DefaultRounding,
			DeltaFactor: compute.DefaultDeltaFactor,
			MaxData:     DefaultMaxData,
			TempComp:    DefaultTempComp,
			CPUTemps:    DefaultCPUTemps,
			IDPrefix:    DefaultIDPrefix,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Cloud: CloudConfig{
			Backend: "none",
			Adafruit: AdafruitConfig{
				BaseURL: DefaultAdafruitURL,
			},
			MQTT: MQTTConfig{
				TopicPrefix: DefaultTopicPrefix,
			},
		},
		Server: ServerConfig{
			BroadcastInterval: DefaultBroadcast,
			Auth:              ServerAuthConfig{Mode: "none", Header: DefaultAuthHeader},
		},
		Alerts: AlertsConfig{
			Cooldown: DefaultCooldown,
		},
	}
}

// applyFallbacks fills defaults that depend on list contents, which YAML
// replaces wholesale.
func applyFallbacks(cfg *Config) {
	if len(cfg.Alerts.Severities) == 0 {
		cfg.Alerts.Severities = []string{
			compute.SeverityDangerouslyLow.String(),
			compute.SeverityDangerouslyHigh.String(),
		}
	}
	if cfg.Server.Auth.Header == "" {
		cfg.Server.Auth.Header = DefaultAuthHeader
	}
}

func invalid(field, format string, args ...any) error {
	return &compute.ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.App
	if a.Wait < MinWait {
		return invalid("app.wait", "must be at least %v", MinWait)
	}
	if a.Freq <= 0 {
		return invalid("app.freq", "must be positive")
	}
	if a.Delay < 0 || a.Throttle < 0 {
		return invalid("app.delay", "delay and throttle must not be negative")
	}
	if a.Rounding < 0 {
		return invalid("app.rounding", "must not be negative")
	}
	if a.DeltaFactor < 0 || a.DeltaFactor >= 1 {
		return invalid("app.delta_factor", "must be in [0, 1)")
	}
	if a.MaxData < 2 {
		return invalid("app.max_data", "must be at least 2")
	}
	if a.Uploads < 0 {
		return invalid("app.uploads", "must not be negative")
	}
	if a.TempComp <= 0 {
		return invalid("app.temp_comp", "must be positive")
	}
	if a.CPUTemps < 1 {
		return invalid("app.cpu_temps", "must be at least 1")
	}
	if len(a.Colors) != 0 && len(a.Colors) != 5 {
		return invalid("app.colors", "expected 5 colors, got %d", len(a.Colors))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "unknown format %q", cfg.Log.Format)
	}

	sensors := make(map[string]bool, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		if s.ID == "" {
			return invalid(fmt.Sprintf("sensors[%d].id", i), "is required")
		}
		if sensors[s.ID] {
			return invalid(fmt.Sprintf("sensors[%d].id", i), "duplicate id %q", s.ID)
		}
		sensors[s.ID] = true
		if s.Delta < 0 {
			return invalid(fmt.Sprintf("sensors[%d].delta", i), "must not be negative")
		}
		switch s.Auth.Mode {
		case "apikey", "bearer", "basic", "none", "":
		default:
			return invalid(fmt.Sprintf("sensors[%d] %q", i, s.ID), "unknown auth mode %q", s.Auth.Mode)
		}
		switch s.Type {
		case "fake", "cputemp", "dht22":
		case "prometheus":
			if s.Endpoint == "" {
				return invalid(fmt.Sprintf("sensors[%d] %q", i, s.ID), "endpoint is required")
			}
		default:
			return invalid(fmt.Sprintf("sensors[%d] %q", i, s.ID), "unknown type %q", s.Type)
		}
	}

	names := make(map[string]bool, len(cfg.Data))
	for i, d := range cfg.Data {
		field := fmt.Sprintf("data[%d]", i)
		if d.Name == "" {
			return invalid(field+".name", "is required")
		}
		if names[d.Name] {
			return invalid(field+".name", "duplicate name %q", d.Name)
		}
		names[d.Name] = true
		if d.Sensor != "" && !sensors[d.Sensor] {
			return invalid(field+".sensor", "unknown sensor %q", d.Sensor)
		}
		if d.Compensate != "" && !sensors[d.Compensate] {
			return invalid(field+".compensate", "unknown sensor %q", d.Compensate)
		}
		if len(d.Valid) > 2 {
			return invalid(field+".valid", "expected [min, max], got %d entries", len(d.Valid))
		}
		if len(d.Limits) != 0 && len(d.Limits) != 4 {
			return invalid(field+".limits", "expected [A, B, C, D], got %d entries", len(d.Limits))
		}
		if err := d.Range().Validate(); err != nil {
			return fmt.Errorf("%s %q: %w", field, d.Name, err)
		}
		if err := d.LimitSet().Validate(); err != nil {
			return fmt.Errorf("%s %q: %w", field, d.Name, err)
		}
	}

	switch cfg.Cloud.Backend {
	case "", "none", "adafruit":
	case "mqtt":
		if cfg.Cloud.MQTT.Broker == "" {
			return invalid("cloud.mqtt.broker", "is required for the mqtt backend")
		}
	default:
		return invalid("cloud.backend", "unknown backend %q", cfg.Cloud.Backend)
	}

	switch cfg.Sheets.Backend {
	case "":
	case "google":
		if cfg.Sheets.SpreadsheetID == "" {
			return invalid("sheets.spreadsheet_id", "is required for the google backend")
		}
	case "csv":
		if cfg.Sheets.Path == "" {
			return invalid("sheets.path", "is required for the csv backend")
		}
	default:
		return invalid("sheets.backend", "unknown backend %q", cfg.Sheets.Backend)
	}

	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		return invalid("server.http_port", "out of range: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return invalid("server.broadcast_interval", "must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return invalid("server.auth.mode", "unknown auth mode %q", cfg.Server.Auth.Mode)
	}

	if _, err := cfg.Alerts.SeverityLevels(); err != nil {
		return invalid("alerts.severities", "%v", err)
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "http":
		default:
			return invalid(fmt.Sprintf("alerts.webhooks[%d].type", i), "unknown type %q", w.Type)
		}
	}
	return nil
}

// Settings reads path as a loose key/value table, for small apps that only
// need a handful of raw values and no validation.
func Settings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return out, nil
}
