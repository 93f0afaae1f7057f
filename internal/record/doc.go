// Package record provides the value model that every synced row travels in.
//
// Rows fetched from the remote backend, rows held in the application state,
// and payloads parked in the offline outbox are all record.Object values: a
// map of sealed JSON values. Money and other fractional numbers are carried as
// Number (a shopspring decimal), never as float64, so a row survives any number
// of cache and outbox round-trips without drifting.
//
// This package imports nothing internal. Every other package builds on it.
package record
