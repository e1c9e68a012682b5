// Package sensor reads raw values from the data sources an app is built on.
//
// Each source implements Sensor and returns a Sample: a map of field name to
// compute.Reading. New(cfg, opts) builds the right implementation:
//   - fake: random demo data (rndnum, rndpcnt)
//   - cputemp: rolling average of the CPU temperature via gopsutil
//   - prometheus: sums of metric families from a text exposition endpoint
//   - dht22: temperature and humidity over GPIO via go-rpio
//
// A failed read returns an error; the caller records absent readings for the
// fields that sensor feeds so the window keeps advancing.
package sensor
