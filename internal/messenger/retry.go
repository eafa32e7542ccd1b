package messenger

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/tracking"
)

// Retrying wraps a Messenger with jittered exponential backoff. Context
// cancellation and non-timeout network errors are not retried.
type Retrying struct {
	next        Messenger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	log         *zap.Logger
}

// NewRetrying builds a retrying messenger with sane defaults.
func NewRetrying(next Messenger, log *zap.Logger) *Retrying {
	return &Retrying{
		next:        next,
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
		log:         log,
	}
}

// Send delivers through the wrapped messenger, retrying transient failures.
func (r *Retrying) Send(ctx context.Context, subscriber int64, text string, actions []tracking.Action) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.next.Send(ctx, subscriber, text, actions)
		if !r.shouldRetry(err, attempt) {
			return err
		}
		delay := r.backoff(attempt)
		r.log.Warn("message delivery failed, retrying",
			zap.Int64("subscriber", subscriber),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Retrying) shouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= r.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

func (r *Retrying) backoff(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
