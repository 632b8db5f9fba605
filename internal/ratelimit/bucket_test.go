package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(capacity, rate float64) (*Limiter, *time.Time) {
	l := NewLimiter(capacity, rate)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestTryConsumeDrainsBucket(t *testing.T) {
	l, _ := newTestLimiter(3, 1)

	for i := 0; i < 3; i++ {
		if res := l.TryConsume("chat1"); !res.Allowed {
			t.Fatalf("attempt %d denied, want allowed", i+1)
		}
	}
	res := l.TryConsume("chat1")
	if res.Allowed {
		t.Fatal("fourth attempt allowed, want denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestRefillOverTime(t *testing.T) {
	l, now := newTestLimiter(2, 0.5)

	l.TryConsume("chat1")
	l.TryConsume("chat1")
	if res := l.TryConsume("chat1"); res.Allowed {
		t.Fatal("empty bucket allowed a token")
	}

	// 0.5 tokens/s for 2s refills exactly one token.
	*now = now.Add(2 * time.Second)
	if res := l.TryConsume("chat1"); !res.Allowed {
		t.Fatal("refilled bucket denied a token")
	}
	if res := l.TryConsume("chat1"); res.Allowed {
		t.Fatal("bucket allowed more than the refilled amount")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	if res := l.TryConsume("a"); !res.Allowed {
		t.Fatal("first key denied")
	}
	if res := l.TryConsume("b"); !res.Allowed {
		t.Fatal("second key affected by first key's bucket")
	}
	if res := l.TryConsume("a"); res.Allowed {
		t.Fatal("drained key allowed")
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, 0.001)
	l.TryConsume("chat1")
	if res := l.TryConsume("chat1"); res.Allowed {
		t.Fatal("drained bucket allowed")
	}
	l.Reset("chat1")
	if res := l.TryConsume("chat1"); !res.Allowed {
		t.Fatal("reset bucket denied")
	}
}
