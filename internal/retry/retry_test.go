package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/s3tool/s3tool/internal/s3err"
)

func TestDo_SucceedsOnFirstTry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Config{}, Thunk[int]{
		Description: "op",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		},
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got=%d calls=%d, want 42/1", got, calls)
	}
}

func TestDo_RetriesExactlyCapTimesThenSurfaces(t *testing.T) {
	const cap = 4
	calls := 0
	cfg := Config{MaxRetries: cap, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := Do(context.Background(), cfg, Thunk[int]{
		Description: "always-fails",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 0, s3err.New(s3err.Transient, "op", errors.New("boom"))
		},
	})

	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != cap {
		t.Errorf("calls = %d, want %d", calls, cap)
	}
}

func TestDo_SucceedsAfterCapMinusOneFailures(t *testing.T) {
	const cap = 5
	calls := 0
	cfg := Config{MaxRetries: cap, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	got, err := Do(context.Background(), cfg, Thunk[string]{
		Description: "flaky",
		Run: func(ctx context.Context) (string, error) {
			calls++
			if calls < cap {
				return "", s3err.New(s3err.Transient, "op", errors.New("not yet"))
			}
			return "ok", nil
		},
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("got = %q, want ok", got)
	}
	if calls != cap {
		t.Errorf("calls = %d, want %d", calls, cap)
	}
}

func TestDo_ClientErrorOptOutNotRetried(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 10, RetryClientException: false, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := Do(context.Background(), cfg, Thunk[int]{
		Description: "bad-request",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 0, s3err.New(s3err.ClientSide, "op", errors.New("400"))
		},
	})

	if err == nil {
		t.Fatal("expected the client error to propagate")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1 (no retry)", calls)
	}
}

func TestDo_ClientErrorRetriedWhenOptedIn(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 3, RetryClientException: true, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := Do(context.Background(), cfg, Thunk[int]{
		Description: "bad-request",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 0, s3err.New(s3err.ClientSide, "op", errors.New("400"))
		},
	})

	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_UsageErrorNeverRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 10}, Thunk[int]{
		Description: "bad-args",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 0, s3err.New(s3err.Usage, "op", errors.New("missing bucket"))
		},
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v; want exactly 1 call and an error", calls, err)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, Config{}, Thunk[int]{
		Description: "cancelled",
		Run: func(ctx context.Context) (int, error) {
			calls++
			return 0, nil
		},
	})

	if err == nil || !s3err.Is(err, s3err.Cancelled) {
		t.Errorf("expected a Cancelled error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0 since context was already cancelled", calls)
	}
}
