package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/askcv/askcv/pkg/fn"
)

func call(b *Breaker, err error) error {
	_, got := CallResult(b, context.Background(), func(context.Context) fn.Result[string] {
		if err != nil {
			return fn.Err[string](err)
		}
		return fn.Ok("ok")
	}).Unwrap()
	return got
}

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %v", b.State())
	}
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	fail := errors.New("fail")

	for i := 0; i < 3; i++ {
		_ = call(b, fail)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	called := false
	_, err := CallResult(b, context.Background(), func(context.Context) fn.Result[int] {
		called = true
		return fn.Ok(1)
	}).Unwrap()
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected rejection without calling through, got %v (called=%v)", err, called)
	}
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Second})
	fail := errors.New("fail")

	_ = call(b, fail)
	_ = call(b, fail)
	_ = call(b, nil)
	_ = call(b, fail)
	_ = call(b, fail)
	if b.State() != StateClosed {
		t.Fatalf("expected still closed, got %v", b.State())
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: 5 * time.Second, HalfOpenMax: 1})
	b.now = func() time.Time { return now }
	fail := errors.New("fail")

	_ = call(b, fail)
	_ = call(b, fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	now = now.Add(6 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State())
	}

	if err := call(b, nil); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Second})
	b.now = func() time.Time { return now }

	_ = call(b, errors.New("fail"))
	now = now.Add(2 * time.Second)
	_ = call(b, errors.New("still failing"))
	if b.State() != StateOpen {
		t.Fatalf("expected open after failed probe, got %v", b.State())
	}
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		IsFailure:     func(err error) bool { return !errors.Is(err, context.Canceled) },
	})
	_ = call(b, context.Canceled)
	if b.State() != StateClosed {
		t.Fatalf("cancellation must not trip the breaker, got %v", b.State())
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	b := NewBreaker(BreakerOpts{
		FailThreshold: 1,
		OnStateChange: func(from, to State) {
			mu.Lock()
			seen = append(seen, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	_ = call(b, errors.New("fail"))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "closed->open" {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
