package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valid8/valid8/internal/resilience"
)

// TimeoutError reports that a single generation attempt exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm: generation attempt exceeded %s", e.Timeout)
}

// InvokerConfig controls per-attempt deadlines and the retry schedule.
type InvokerConfig struct {
	// Timeout bounds each individual attempt. Default: 120s.
	Timeout time.Duration

	// MaxAttempts is the total number of tries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry, doubling after
	// each failed attempt. Default: 1s.
	InitialBackoff time.Duration

	// MaxRPS rate-limits generation calls across the process. 0 disables
	// limiting.
	MaxRPS float64
}

// Invoker wraps a TextGenerator with deadlines, retries, and rate limiting.
// Generation runs on its own goroutine so a hung backend call can never
// stall the request-handling loop past the attempt deadline.
type Invoker struct {
	gen     TextGenerator
	cfg     InvokerConfig
	limiter *rate.Limiter
}

// NewInvoker creates an Invoker around the given generator.
func NewInvoker(gen TextGenerator, cfg InvokerConfig) *Invoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1)
	}

	return &Invoker{gen: gen, cfg: cfg, limiter: limiter}
}

// Provider reports the underlying backend name.
func (iv *Invoker) Provider() string {
	return iv.gen.Provider()
}

// Invoke calls the generator with the configured retry schedule and returns
// the raw model text. Every generation failure is retried with exponential
// backoff until the attempt budget is spent. JSON extraction happens after
// this call returns and is never retried.
func (iv *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    iv.cfg.MaxAttempts,
		InitialBackoff: iv.cfg.InitialBackoff,
		Multiplier:     2.0,
		// All generation failures count against the attempt budget,
		// not just network-transient ones.
		ShouldRetry: func(err error) bool { return true },
		OnRetry:     resilience.RetryLogger(iv.gen.Provider(), "generate"),
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return iv.attempt(ctx, prompt)
	})
}

// attempt runs one deadline-bounded generation on a worker goroutine.
func (iv *Invoker) attempt(ctx context.Context, prompt string) (string, error) {
	if iv.limiter != nil {
		if err := iv.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, iv.cfg.Timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		text, err := iv.gen.Generate(attemptCtx, prompt)
		ch <- result{text: text, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", res.err
		}
		return res.text, nil
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			zap.L().Warn("llm attempt timed out",
				zap.String("provider", iv.gen.Provider()),
				zap.Duration("timeout", iv.cfg.Timeout),
			)
			return "", &TimeoutError{Timeout: iv.cfg.Timeout}
		}
		return "", attemptCtx.Err()
	}
}
