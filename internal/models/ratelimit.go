package models

import "time"

// RateDecision is the outcome of spending one request from a client's budget.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}
