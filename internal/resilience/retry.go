package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig holds the retry policy applied to every unary call.
type RetryConfig struct {
	// Name identifies the policy for circuit breaker naming.
	Name string

	// MaxAttempts is the total number of attempts, including the first.
	// Default: 10
	MaxAttempts uint64

	// InitialInterval is the first backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// Multiplier grows the interval after each attempt.
	// Default: 2
	Multiplier float64

	// MaxInterval caps a single backoff interval.
	// Default: 10 seconds
	MaxInterval time.Duration

	// AttemptTimeout bounds each attempt separately. Zero leaves only the
	// caller's deadline.
	AttemptTimeout time.Duration

	// Retryable reports whether a failed attempt should be retried.
	// If nil, only codes.Internal is retried.
	Retryable func(err error) bool

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives the policy so its breaker state can be reported.
	Registry *Registry
}

// DefaultRetryConfig returns the datastore retry policy.
func DefaultRetryConfig(name string) RetryConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return RetryConfig{
		Name:            name,
		MaxAttempts:     10,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     10 * time.Second,
		Retryable:       IsInternal,
		CircuitBreaker:  &cbConfig,
	}
}

// Policy applies retries and circuit breaking to gRPC calls.
type Policy struct {
	circuitBreaker *gobreaker.CircuitBreaker[struct{}]
	config         RetryConfig
}

// NewPolicy creates a retry policy, filling unset fields with defaults.
func NewPolicy(cfg RetryConfig) *Policy {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsInternal
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	p := &Policy{
		circuitBreaker: NewCircuitBreaker[struct{}](cbConfig),
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, p)
	}

	return p
}

// Name returns the policy name.
func (p *Policy) Name() string {
	return p.config.Name
}

func (p *Policy) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.config.InitialInterval
	bo.Multiplier = p.config.Multiplier
	bo.MaxInterval = p.config.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by attempts and the caller's deadline
	bo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(bo, p.config.MaxAttempts-1), ctx)
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	operation := func() error {
		_, err := p.circuitBreaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.attempt(ctx, fn)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			if p.config.Registry != nil {
				p.config.Registry.RecordFailure(p.config.Name, ErrCircuitOpen)
			}
			return backoff.Permanent(status.Error(codes.Unavailable, ErrCircuitOpen.Error()))
		}

		if !p.config.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, p.newBackOff(ctx))
	if p.config.Registry != nil {
		if err != nil {
			p.config.Registry.RecordFailure(p.config.Name, err)
		} else {
			p.config.Registry.RecordSuccess(p.config.Name)
		}
	}
	return err
}

func (p *Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.config.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.AttemptTimeout)
	defer cancel()
	return fn(ctx)
}

// UnaryClientInterceptor returns a gRPC interceptor that runs every unary
// call through the policy.
func (p *Policy) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return p.Do(ctx, func(ctx context.Context) error {
			return invoker(ctx, method, req, reply, cc, opts...)
		})
	}
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (p *Policy) CircuitBreakerState() gobreaker.State {
	return p.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (p *Policy) CircuitBreakerCounts() gobreaker.Counts {
	return p.circuitBreaker.Counts()
}

// IsInternal reports whether err carries codes.Internal.
func IsInternal(err error) bool {
	return status.Code(err) == codes.Internal
}

// IsTransient reports whether err is a server-side failure that should
// count against the circuit breaker.
func IsTransient(err error) bool {
	switch status.Code(err) {
	case codes.Internal, codes.Unavailable:
		return true
	default:
		return false
	}
}
