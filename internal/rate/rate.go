// Package rate throttles OTP issuance and locks out repeated verification failures.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const namespace = "otp_rate"

// Store is the subset of pkg/cache used here.
type Store interface {
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, namespace string, keys ...string) error
	GetInt(ctx context.Context, namespace, key string) (int64, error)
	GetTTL(ctx context.Context, namespace, key string) (time.Duration, error)
	IncrWithExpire(ctx context.Context, namespace, key string, window time.Duration) (int64, error)
}

var (
	ErrLimited = errors.New("too many requests")
	ErrLocked  = errors.New("temporarily locked")
)

// LimitError carries how long the caller has to wait.
type LimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s, retry after %d seconds", e.Err, int(e.RetryAfter.Seconds()))
}

func (e *LimitError) Unwrap() error { return e.Err }

// SendLimiter allows max OTP issues per user per window. A nil store disables it.
type SendLimiter struct {
	store  Store
	max    int
	window time.Duration
	log    *zap.Logger
}

func NewSendLimiter(store Store, max int, window time.Duration, log *zap.Logger) *SendLimiter {
	return &SendLimiter{
		store:  store,
		max:    max,
		window: window,
		log:    log.With(zap.String("limiter", "otp_send")),
	}
}

func (l *SendLimiter) enabled() bool {
	return l != nil && l.store != nil && l.max > 0
}

// Allow reports whether userID may be sent another OTP. It does not count;
// call Record once the OTP exists. Store errors fail open.
func (l *SendLimiter) Allow(ctx context.Context, userID string) error {
	if !l.enabled() {
		return nil
	}

	countKey := "send:" + userID
	cnt, err := l.store.GetInt(ctx, namespace, countKey)
	if err != nil {
		l.log.Warn("Rate limit store unavailable, allowing", zap.Error(err), zap.String("user_id", userID))
		return nil
	}

	if int(cnt) >= l.max {
		ttl, _ := l.store.GetTTL(ctx, namespace, countKey)
		if ttl <= 0 {
			ttl = l.window
		}
		l.log.Warn("OTP send limit reached", zap.String("user_id", userID), zap.Int64("count", cnt))
		return &LimitError{Err: ErrLimited, RetryAfter: ttl}
	}

	return nil
}

// Record counts one generated OTP against userID's window.
func (l *SendLimiter) Record(ctx context.Context, userID string) {
	if !l.enabled() {
		return
	}
	if _, err := l.store.IncrWithExpire(ctx, namespace, "send:"+userID, l.window); err != nil {
		l.log.Warn("Failed to count OTP send", zap.Error(err), zap.String("user_id", userID))
	}
}

// Lockout blocks a user for lockFor after maxFailures wrong codes in a row.
type Lockout struct {
	store       Store
	maxFailures int
	lockFor     time.Duration
	log         *zap.Logger
}

func NewLockout(store Store, maxFailures int, lockFor time.Duration, log *zap.Logger) *Lockout {
	return &Lockout{
		store:       store,
		maxFailures: maxFailures,
		lockFor:     lockFor,
		log:         log.With(zap.String("limiter", "otp_lockout")),
	}
}

func (l *Lockout) enabled() bool {
	return l != nil && l.store != nil && l.maxFailures > 0
}

// Check returns a *LimitError wrapping ErrLocked while the user is blocked.
func (l *Lockout) Check(ctx context.Context, userID string) error {
	if !l.enabled() {
		return nil
	}

	ttl, err := l.store.GetTTL(ctx, namespace, "block:"+userID)
	if err != nil {
		l.log.Warn("Lockout store unavailable, allowing", zap.Error(err), zap.String("user_id", userID))
		return nil
	}
	if ttl > 0 {
		return &LimitError{Err: ErrLocked, RetryAfter: ttl}
	}
	return nil
}

// Fail records a wrong code and reports whether the user is now locked.
func (l *Lockout) Fail(ctx context.Context, userID string) (bool, error) {
	if !l.enabled() {
		return false, nil
	}

	cnt, err := l.store.IncrWithExpire(ctx, namespace, "fail:"+userID, l.lockFor)
	if err != nil {
		return false, fmt.Errorf("count failed attempt for %s: %w", userID, err)
	}
	if int(cnt) < l.maxFailures {
		return false, nil
	}

	if err := l.store.Set(ctx, namespace, "block:"+userID, "1", l.lockFor); err != nil {
		return false, fmt.Errorf("lock %s: %w", userID, err)
	}
	_ = l.store.Delete(ctx, namespace, "fail:"+userID)

	l.log.Warn("User locked after failed OTP attempts",
		zap.String("user_id", userID),
		zap.Duration("lock_for", l.lockFor))
	return true, nil
}

// Reset clears the failure counter after a successful verification.
func (l *Lockout) Reset(ctx context.Context, userID string) error {
	if !l.enabled() {
		return nil
	}
	return l.store.Delete(ctx, namespace, "fail:"+userID)
}
