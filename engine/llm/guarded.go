package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askcv/askcv/engine/domain"
	"github.com/askcv/askcv/pkg/fn"
	"github.com/askcv/askcv/pkg/resilience"
)

// Guarded runs a Generator as an asynchronous task bounded by a timeout,
// behind a circuit breaker. It never retries.
type Guarded struct {
	next    Generator
	timeout time.Duration
	breaker *resilience.Breaker
}

// NewGuarded wraps next. A nil breaker disables circuit breaking.
func NewGuarded(next Generator, timeout time.Duration, breaker *resilience.Breaker) *Guarded {
	return &Guarded{next: next, timeout: timeout, breaker: breaker}
}

// BreakerOpts returns breaker settings that ignore caller cancellation.
func BreakerOpts(onChange func(from, to resilience.State)) resilience.BreakerOpts {
	opts := resilience.DefaultBreakerOpts
	opts.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	opts.OnStateChange = onChange
	return opts
}

func (g *Guarded) Generate(ctx context.Context, model string, p domain.Prompt) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	call := func(ctx context.Context) fn.Result[string] {
		return fn.Await(ctx, fn.Async(ctx, func(ctx context.Context) (string, error) {
			return g.next.Generate(ctx, model, p)
		}))
	}

	var r fn.Result[string]
	if g.breaker != nil {
		r = resilience.CallResult(g.breaker, ctx, call)
	} else {
		r = call(ctx)
	}

	text, err := r.Unwrap()
	switch {
	case err == nil:
		return text, nil
	case ReasonOf(err) != "":
		return "", err
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "", fail(ReasonUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return "", fail(ReasonTimeout, fmt.Errorf("no reply within %s: %w", g.timeout, err))
	default:
		return "", fail(ReasonNetwork, err)
	}
}
