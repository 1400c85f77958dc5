// Package handler implements the per-request proxy pipeline: select a
// backend, forward, then log and count the outcome exactly once.
package handler
