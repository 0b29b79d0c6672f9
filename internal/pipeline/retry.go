package pipeline

import (
	"context"
	"time"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

// Busy retry ratchet parameters: first busy waits 100ms, second waits 200ms,
// the third gives up and delivers the busy anomaly.
const (
	RetryStart  = 100 * time.Millisecond
	RetryMax    = 200 * time.Millisecond
	RetryFactor = 2.0
)

// BackoffFn inspects a response and either returns a delay to wait before
// retrying, or reports that the response should be delivered as-is.
type BackoffFn func(resp *Response) (time.Duration, bool)

// BusyBackoff returns a closed-over ratchet: the delay starts at
// start/factor, multiplies by factor on each busy response, and gives up
// once it exceeds max. Non-busy responses never retry.
func BusyBackoff(start, max time.Duration, factor float64) BackoffFn {
	delay := time.Duration(float64(start) / factor)
	return func(resp *Response) (time.Duration, bool) {
		if resp == nil || resp.Anomaly == nil || resp.Anomaly.Category != anomalies.Busy {
			return 0, false
		}
		delay = time.Duration(float64(delay) * factor)
		if delay > max {
			return 0, false
		}
		return delay, true
	}
}

// WithRetry invokes attempt, consults backoff, and either waits and repeats
// or returns the response. Context cancellation during a wait resolves with
// an interrupted anomaly.
func WithRetry(ctx context.Context, attempt func() *Response, backoff BackoffFn) *Response {
	for {
		resp := attempt()
		delay, retry := backoff(resp)
		if !retry {
			return resp
		}
		select {
		case <-ctx.Done():
			return anomalyResponse(anomalies.FromTransportError(ctx.Err()))
		case <-time.After(delay):
		}
	}
}
