package retrieve

import (
	"context"
	"errors"
	"time"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

// RetryPolicy is a caller-side convenience for transient server hiccups.
// The core Retrieve sequence never retries on its own; wrapping it in a
// policy is an explicit caller decision.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt; each further
	// wait doubles, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches what the facility's own tooling documents:
// three attempts with a short growing pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// RetrieveWithRetry runs Retrieve under the policy. Only execution
// failures are retried: a missing executable or a malformed output file
// will not heal on a second try, and a cleanup failure must surface
// immediately.
func (r *Retriever) RetrieveWithRetry(ctx context.Context, req types.RetrievalRequest, policy RetryPolicy) (*types.Data, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		data, err := r.Retrieve(ctx, req)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(err) || attempt == policy.MaxAttempts {
			return nil, err
		}

		r.logger.Warn("retrieval attempt failed, retrying",
			"attempt", attempt, "max", policy.MaxAttempts, "backoff", backoff, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return nil, lastErr
}

func retryable(err error) bool {
	var nf *env.NotFoundError
	if errors.As(err, &nf) {
		return false
	}
	// Execution errors (tool exited non-zero, typically a busy or briefly
	// unreachable data server) are the only transient class.
	return isExecutionError(err)
}
