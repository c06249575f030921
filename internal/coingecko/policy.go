package coingecko

import (
	"net/http"
	"time"
)

// Action selects how a provider failure is handled.
type Action int

const (
	// ActionFailFast aborts the whole run (configuration error).
	ActionFailFast Action = iota
	// ActionRetry retries the same request with backoff (transient).
	ActionRetry
	// ActionNarrow shrinks the requested window and retries (rejected range).
	ActionNarrow
	// ActionSkip gives up on this asset and lets the run continue.
	ActionSkip
)

// Default retry policy values.
const (
	DefaultMaxRetries   = 5
	DefaultInitialDelay = 600 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultMaxNarrow    = 4
)

// RetryPolicy is a declarative retry policy: it classifies a provider
// status into an action and bounds the retry/narrowing loops. It knows
// nothing about the transport.
type RetryPolicy struct {
	MaxRetries   int           // retry attempts per request
	InitialDelay time.Duration // first backoff delay
	MaxDelay     time.Duration // backoff ceiling
	BackoffMult  float64       // delay multiplier per attempt
	MaxNarrow    int           // window-halving steps before giving up
}

// DefaultRetryPolicy returns the policy used against the public API.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		BackoffMult:  DefaultBackoffMult,
		MaxNarrow:    DefaultMaxNarrow,
	}
}

// Classify maps an HTTP status to an action.
//
//	401        → fail fast (bad credential)
//	400        → narrow the window and retry
//	429, 5xx   → retry with backoff
//	other 4xx  → skip the asset (includes 404)
func (p RetryPolicy) Classify(status int) Action {
	switch {
	case status == http.StatusUnauthorized:
		return ActionFailFast
	case status == http.StatusBadRequest:
		return ActionNarrow
	case status == http.StatusTooManyRequests || status >= 500:
		return ActionRetry
	default:
		return ActionSkip
	}
}

// NextDelay returns the backoff delay following d, capped at MaxDelay.
func (p RetryPolicy) NextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * p.BackoffMult)
	if next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}
