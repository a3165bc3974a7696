package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	n     int
	since time.Time
	err   error
}

func (f *fakeCounter) CountSentSince(_ context.Context, _ string, since time.Time) (int, error) {
	f.since = since
	return f.n, f.err
}

func TestStoreLimiter_Exceeded(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		sent int
		max  int
		want bool
	}{
		{"unlimited", 100, 0, false},
		{"below cap", 2, 3, false},
		{"at cap", 3, 3, true},
		{"above cap", 4, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &fakeCounter{n: tt.sent}
			got, err := NewStoreLimiter(counter).Exceeded(context.Background(), "user-1", tt.max, now)
			if err != nil {
				t.Fatalf("Exceeded() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exceeded() = %v, want %v", got, tt.want)
			}
			if tt.max > 0 && !counter.since.Equal(now.Add(-time.Hour)) {
				t.Errorf("window start = %v", counter.since)
			}
		})
	}
}

func TestStoreLimiter_Error(t *testing.T) {
	l := NewStoreLimiter(&fakeCounter{err: errors.New("db down")})
	if _, err := l.Exceeded(context.Background(), "user-1", 1, time.Now()); err == nil {
		t.Error("Exceeded() error = nil")
	}
	if err := l.Record(context.Background(), "user-1", "d1", time.Now()); err != nil {
		t.Errorf("Record() error = %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("user-1"); got != "ratelimit:sent:user-1" {
		t.Errorf("Key() = %q", got)
	}
}

// TestRedisLimiter_SlidingWindow runs against a live Redis when
// ARGUS_TEST_REDIS_ADDR is set.
func TestRedisLimiter_SlidingWindow(t *testing.T) {
	addr := os.Getenv("ARGUS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARGUS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	userID := "ratelimit-test-" + time.Now().Format("150405.000000")
	defer client.Del(ctx, Key(userID))

	l := NewRedisLimiter(client)
	now := time.Now()
	for i, at := range []time.Time{now.Add(-2 * time.Hour), now.Add(-30 * time.Minute), now.Add(-time.Minute)} {
		if err := l.Record(ctx, userID, string(rune('a'+i)), at); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	exceeded, err := l.Exceeded(ctx, userID, 2, now)
	if err != nil {
		t.Fatalf("Exceeded() error = %v", err)
	}
	if !exceeded {
		t.Error("Exceeded(max=2) = false with two sends in window")
	}
	exceeded, _ = l.Exceeded(ctx, userID, 3, now)
	if exceeded {
		t.Error("Exceeded(max=3) = true; expired send was counted")
	}
}
