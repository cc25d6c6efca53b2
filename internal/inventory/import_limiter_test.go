package inventory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	if got := l.Status(); got.Active != 0 || got.Available != 2 || got.MaxConcurrent != 2 {
		t.Fatalf("initial Status = %+v", got)
	}

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := l.Status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("full Status = %+v", got)
	}

	l.Release()
	if got := l.Status(); got.Active != 1 || got.Available != 1 {
		t.Errorf("Status after one Release = %+v", got)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release: %v", err)
	}
	l.Release()
	l.Release()

	if got := l.Status().Active; got != 0 {
		t.Errorf("Active = %d after releasing everything", got)
	}
}

func TestImportLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("err = %v, want ErrTooManyImports", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up after %s, want about 50ms", elapsed)
	}
	if got := MapError(err).Code; got != "IMP005" {
		t.Errorf("MapError code = %s, want IMP005", got)
	}
}

func TestImportLimiter_CallerCancel(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(2, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("WaitForDrain returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForDrain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after Release")
	}
}

func TestImportLimiter_WaitForDrainDeadline(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestService_ImportHonorsLimiter(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, time.UTC).WithImportLimits(1, 20*time.Millisecond)

	if err := svc.imports.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire on idle limiter: %v", err)
	}
	_, err := svc.Import(context.Background(), KindPrinters, [][]string{{"nombre"}, {"A"}})
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("err = %v, want ErrTooManyImports", err)
	}
	svc.imports.Release()

	res, err := svc.Import(context.Background(), KindPrinters, [][]string{{"nombre"}, {"A"}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", res.SuccessCount)
	}
	if got := svc.ImportStatus().Active; got != 0 {
		t.Errorf("Active = %d after import, want 0", got)
	}
}
