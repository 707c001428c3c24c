package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
	MaxRetries          uint64        // Retries after the first attempt, 0 means bounded only by MaxElapsedTime
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
		MaxRetries:          2,
	}
}

// BreakerConfig configures the per-model circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Trip after this many consecutive failures (default 5)
	Timeout             time.Duration // Stay open this long before probing (default 30s)
	MaxRequests         uint32        // Probe requests allowed while half-open (default 3)
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		MaxRequests:         3,
	}
}

// CircuitBreakerRegistry manages per-model circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(cfg BreakerConfig, logger *zap.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreakerRegistry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given model.
// Creates a new one if it doesn't exist.
func (r *CircuitBreakerRegistry) Get(model string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[model]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        model,
		MaxRequests: r.cfg.MaxRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("model", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Don't count user cancellation as backend failure
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[model] = cb
	return cb
}

// Resilient decorates a Backend with retry and per-model circuit breaking.
type Resilient struct {
	inner    Backend
	breakers *CircuitBreakerRegistry
	retry    RetryConfig
	logger   *zap.Logger
}

// NewResilient wraps inner with retry and circuit breaker protection.
func NewResilient(inner Backend, retry RetryConfig, breaker BreakerConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{
		inner:    inner,
		breakers: NewCircuitBreakerRegistry(breaker, logger),
		retry:    retry,
		logger:   logger,
	}
}

// Send forwards the request through the model's breaker, retrying transient failures.
func (r *Resilient) Send(ctx context.Context, req Request) (Response, error) {
	return sendWithRetry(ctx, r.inner, req, r.breakers.Get(req.Model), r.retry, r.logger)
}

// Close closes the wrapped backend.
func (r *Resilient) Close() error {
	return r.inner.Close()
}

// sendWithRetry sends a request to the backend with exponential backoff retry and circuit breaker protection.
func sendWithRetry(ctx context.Context, b Backend, req Request, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, logger *zap.Logger) (Response, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var resp Response
	attempt := 0

	operation := func() error {
		attempt++
		// Fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return b.Send(ctx, req)
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			logger.Debug("completion attempt failed",
				zap.String("model", req.Model),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}

		resp = result.(Response)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	var bo backoff.BackOff = policy
	if retryCfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, retryCfg.MaxRetries)
	}

	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	return resp, err
}
