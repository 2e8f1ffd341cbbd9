package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capture-tool/src/logger"

	"github.com/cenkalti/backoff/v4"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type CaptureError struct {
	Message string
	Cause   error
}

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ CaptureError }
type DecodeError struct{ CaptureError }
type DeviceError struct{ CaptureError }
type ChartConstructionError struct{ CaptureError }

// -----------------------------------------------------------------------------

// ReadinessTimeoutError is raised when a chart did not materialize before
// a delivery's deadline.
type ReadinessTimeoutError struct {
	Signal  string
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("chart %q not ready after %v", e.Signal, e.Timeout)
}

// -----------------------------------------------------------------------------

// ChannelsTimeoutError is raised when the backend never announced its channels.
type ChannelsTimeoutError struct {
	Timeout time.Duration
}

func (e *ChannelsTimeoutError) Error() string {
	return fmt.Sprintf("no channel announcement within %v", e.Timeout)
}

// -----------------------------------------------------------------------------

// TopicCollisionError reports two signals deriving the same event topic.
type TopicCollisionError struct {
	Topic    string
	Signal   string
	Existing string
}

func (e *TopicCollisionError) Error() string {
	return fmt.Sprintf("signal %q maps to topic %q already used by %q", e.Signal, e.Topic, e.Existing)
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewDecodeError(what string, cause error) error {
	return &DecodeError{CaptureError{Message: fmt.Sprintf("failed to decode %s", what), Cause: cause}}
}

func NewDeviceError(rpc string, cause error) error {
	return &DeviceError{CaptureError{Message: fmt.Sprintf("rpc %s failed", rpc), Cause: cause}}
}

func NewChartConstructionError(signal string, cause error) error {
	return &ChartConstructionError{CaptureError{Message: fmt.Sprintf("failed to construct chart %q", signal), Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// RetryWithBackoff runs fn up to maxRetries+1 times with exponential backoff
// starting at baseDelay. Errors wrapped with Permanent stop immediately.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.MaxElapsedTime = 0

	attempt := 0
	notify := func(err error, next time.Duration) {
		attempt++
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt, maxRetries+1, operation, err, next)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx)
	res, err := backoff.RetryNotifyWithData(fn, b, notify)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return res, err
	}
	return res, nil
}
