package gate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestLimiter(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	l := New(s.Addr())
	t.Cleanup(func() { l.Close() })
	return s, l
}

func TestAllowBurst(t *testing.T) {
	_, l := setupTestLimiter(t)
	ctx := context.Background()

	key := "submit:test"
	rate := 1
	burst := 2

	// The full burst is available immediately.
	for i := 0; i < burst; i++ {
		allowed, err := l.Allow(ctx, key, rate, burst)
		if err != nil {
			t.Fatalf("Allow %d failed: %v", i, err)
		}
		if !allowed {
			t.Errorf("expected call %d within burst to be allowed", i)
		}
	}

	// The next call exceeds the burst.
	allowed, err := l.Allow(ctx, key, rate, burst)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("expected call past burst to be denied")
	}
}

func TestAllowRefill(t *testing.T) {
	_, l := setupTestLimiter(t)
	ctx := context.Background()

	key := "submit:refill"
	allowed, err := l.Allow(ctx, key, 1, 1)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Fatal("expected first call to be allowed")
	}

	allowed, err = l.Allow(ctx, key, 1, 1)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Fatal("expected second call to be denied")
	}

	// Wait for one token to refill (1 token/sec; Unix-second resolution).
	time.Sleep(1100 * time.Millisecond)

	allowed, err = l.Allow(ctx, key, 1, 1)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("expected call after refill to be allowed")
	}
}

func TestIndependentKeys(t *testing.T) {
	_, l := setupTestLimiter(t)
	ctx := context.Background()

	if allowed, _ := l.Allow(ctx, "submit:a", 1, 1); !allowed {
		t.Fatal("expected first call on key a to be allowed")
	}
	if allowed, _ := l.Allow(ctx, "submit:a", 1, 1); allowed {
		t.Fatal("expected second call on key a to be denied")
	}
	// Key b has its own bucket.
	if allowed, _ := l.Allow(ctx, "submit:b", 1, 1); !allowed {
		t.Error("expected first call on key b to be allowed")
	}
}
