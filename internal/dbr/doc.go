// Package dbr models process-variable values together with their
// metadata (alarm status, severity, timestamp, limits, units,
// precision) and serializes them into the Channel Access payload
// layout.
//
// A record is produced by a provider in its native kind, converted on
// demand to the kind a client requested, and encoded once. Every
// operation returns new data and mutates nothing, so the package is
// safe for concurrent use without synchronization.
package dbr
