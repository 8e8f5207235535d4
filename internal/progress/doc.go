// Package progress defines the event stream emitted by search sessions and
// the hub that fans events out to sinks (logs, metrics, UIs).
package progress
