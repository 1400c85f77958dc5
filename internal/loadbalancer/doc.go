// Package loadbalancer holds the fixed, ordered pool of backends and hands
// them out in strict round-robin order.
//
// Selection is lock-free: a single atomic cursor is advanced once per call,
// so fairness holds across all concurrent callers combined. No per-request
// key takes part in the choice.
package loadbalancer
