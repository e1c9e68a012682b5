// Package uploader sends the latest valid value of each bound data type to a
// cloud.Service on a fixed cadence.
//
// The first upload happens once the initial delay has passed, later ones
// every freq. A throttled upload pushes the next attempt out by freq plus the
// throttle penalty; any other failure retries with truncated exponential
// backoff that never waits longer than freq.
package uploader
