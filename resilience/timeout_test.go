package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeout_DefaultDeadline(t *testing.T) {
	start := time.Now()
	err := WithTimeout(context.Background(), 0, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline on the op context")
		}
		if d := deadline.Sub(start); d <= 0 || d > DefaultTimeout {
			t.Errorf("deadline in %v, want within %v", d, DefaultTimeout)
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithTimeout() error = %v", err)
	}
}

func TestWithTimeout_Success(t *testing.T) {
	executed := false
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		executed = true
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the op context")
		}
		return nil
	})

	if err != nil {
		t.Errorf("WithTimeout() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestWithTimeout_PassesThroughErrors(t *testing.T) {
	testErr := errors.New("connection refused")
	err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("WithTimeout() error = %v, want %v", err, testErr)
	}
}

func TestWithTimeout_Deadline(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("WithTimeout() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WithTimeout() error = %v, want wrapped DeadlineExceeded", err)
	}
}

func TestWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(ctx, time.Second, func(ctx context.Context) error {
		return ctx.Err()
	})

	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation must not be reported as a timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithTimeout() error = %v, want context.Canceled", err)
	}
}
