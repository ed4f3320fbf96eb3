package ratelimit

import (
	"testing"
	"time"
)

func TestTakeExhaustsBucket(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, WindowDuration: time.Hour})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if _, ok := rl.take("client"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if _, ok := rl.take("client"); ok {
		t.Fatal("expected bucket exhausted")
	}
}

func TestTakeIsolatesClients(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: time.Hour})
	defer rl.Stop()

	if _, ok := rl.take("a"); !ok {
		t.Fatal("first client should be allowed")
	}
	if _, ok := rl.take("a"); ok {
		t.Fatal("first client should be exhausted")
	}
	if _, ok := rl.take("b"); !ok {
		t.Fatal("second client has its own bucket")
	}
}

func TestTakeRefills(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2, WindowDuration: 20 * time.Millisecond})
	defer rl.Stop()

	rl.take("client")
	rl.take("client")
	if _, ok := rl.take("client"); ok {
		t.Fatal("expected bucket exhausted")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok := rl.take("client"); !ok {
		t.Fatal("expected refill after the window elapsed")
	}
}
