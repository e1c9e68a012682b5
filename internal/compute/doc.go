// Package compute turns raw sample windows into display-ready rows.
//
// reading.go defines the value types: Reading (a number or absent), ValidRange,
// LimitSet and ConfigError.
//
// window.go is the window classifier: IsValid, ClassifyWindow, CleanValues,
// MinMax and GraphValues. Out-of-range and missing samples are reported as
// statuses, never as errors.
//
// trend.go compares the latest sample to the one before it within a
// percentage tolerance band (Delta, InTolerance).
//
// bucket.go maps a value onto one of five severity buckets using a four-value
// limit set, and builds the graph emphasis map used to color sparklines.
//
// prepare.go combines the three into Prepare, which is recomputed on every
// refresh tick. Every function in this package is pure and safe for
// concurrent use.
package compute
