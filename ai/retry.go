// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// rateLimitBackoffFactor stretches the delay after a rate-limit rejection.
// Retrying a 429 at the normal cadence usually just burns attempts.
const rateLimitBackoffFactor = 4

// malformedRetryBudget caps retries of ErrMalformedResponse. A malformed
// payload is retried once in case it was a transient glitch; a second one
// means the backend is speaking the wrong protocol and more attempts will
// not help.
const malformedRetryBudget = 1

// RetryWithBackoff retries an operation with exponential backoff, classified
// by the ai error taxonomy:
//
//   - context cancellation or deadline expiry stops retrying immediately
//   - ErrMalformedResponse is retried at most once
//   - ErrRateLimited backs off harder than other failures
//
// maxAttempts must be > 0. The error from the last attempt is returned when
// every attempt fails.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	logger := slog.Default().With("component", "retry")

	delay := baseDelay
	malformedRetries := 0
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == maxAttempts {
			return lastErr
		}

		wait := delay
		switch {
		case errors.Is(lastErr, ErrMalformedResponse):
			if malformedRetries >= malformedRetryBudget {
				logger.Warn("repeated malformed response, giving up", "attempt", attempt, "error", lastErr)
				return lastErr
			}
			malformedRetries++
		case errors.Is(lastErr, ErrRateLimited):
			wait = delay * rateLimitBackoffFactor
		}

		logger.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", maxAttempts, "wait", wait, "error", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
