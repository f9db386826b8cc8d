package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewLoginLimiter_Defaults(t *testing.T) {
	l := NewLoginLimiter(nil, 0, 0)
	if l.maxFailures != defaultMaxFailures {
		t.Errorf("maxFailures = %d, want %d", l.maxFailures, defaultMaxFailures)
	}
	if l.lockout != defaultLockout {
		t.Errorf("lockout = %v, want %v", l.lockout, defaultLockout)
	}
	if got := l.key("abc"); got != "login_failures:abc" {
		t.Errorf("key = %q", got)
	}
}

// Runs against a real server when REDIS_TEST_ADDR is set.
func TestLoginLimiter_Window(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, Config{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	l := NewLoginLimiter(client, 2, time.Minute)
	key := uuid.NewString()
	defer l.Reset(ctx, key)

	for i := 0; i < 2; i++ {
		if blocked, err := l.Blocked(ctx, key); err != nil || blocked {
			t.Fatalf("attempt %d: blocked=%v err=%v", i, blocked, err)
		}
		if err := l.RecordFailure(ctx, key); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if blocked, _ := l.Blocked(ctx, key); !blocked {
		t.Fatal("expected key to be blocked after 2 failures")
	}
	ttl, err := client.TTL(ctx, l.key(key)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v (err %v)", ttl, err)
	}

	if err := l.Reset(ctx, key); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if blocked, _ := l.Blocked(ctx, key); blocked {
		t.Fatal("expected reset to unblock")
	}
}
