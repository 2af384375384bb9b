package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/skinscan/internal/logging"
)

// Policy bounds the attempts and exponential backoff of Do.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy is used by the repository and the result cache.
var DefaultPolicy = Policy{Attempts: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}

// Do runs fn until it succeeds, returns a non-transient error, or runs out
// of attempts. Failures are wrapped in a logging.OperationError.
func Do(ctx context.Context, p Policy, logger *zap.Logger, operation, analysisID string, fn func() error) error {
	if p.Attempts <= 1 {
		return logging.NewOperationError(operation, analysisID, fn())
	}

	backoff := p.InitialBackoff
	opLogger := logging.WithOperation(logger, operation, analysisID)
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, analysisID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= p.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !IsTransient(err) || attempt == p.Attempts-1 {
			opLogger.Debug("operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, analysisID, err)
		}

		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, analysisID, err)
}

// IsTransient reports timeouts and temporary network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
