// Package config loads and watches the application settings file (config.yaml).
//
// Top-level types:
//   - Config{App, Log, Data, Sensors, Cloud, Sheets, Server, Alerts}
//   - AppConfig: freq, delay, wait, throttle, rounding, delta_factor, max_data,
//     uploads, temp_comp, cpu_temps, id_prefix
//   - DataType: one table row with its valid range [min, max] and limit set
//     [A, B, C, D]; null entries mean "not set"
//   - SensorConfig: fake | cputemp | prometheus | dht22
//   - CloudConfig, SheetsConfig, ServerConfig, AlertsConfig: backends and
//     delivery targets; secrets are named by *_env fields and resolved from
//     the environment by Key() / Password() / URL()
//
// Load(path) reads the YAML file, applies defaults (600s freq, 300s delay,
// 1s wait, 120s throttle, 120 samples), then validates. Malformed ranges,
// limits and settings are reported as *compute.ConfigError.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config, re-adding the watch after the
// rename/create sequence used by atomic-save editors.
//
// Settings(path) returns the raw document as a map for apps that want loose
// lookups.
package config
