// Package app wires the telemetry building blocks into one runnable loop.
//
// A Runtime owns the sensors, the data store, the cloud uploader, the alert
// engine and the terminal view. Each Tick reads every sensor once, appends
// one reading per data type, uploads when due and redraws; Run repeats Tick
// every app.wait until cancelled or the upload limit is reached.
package app
