package metastore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

func TestClaimIsExclusive(t *testing.T) {
	store := NewFake()
	id := uuid.New()
	if err := store.Insert(context.Background(), &model.Transaction{ID: id}); err != nil {
		t.Fatal(err)
	}

	var claimed atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(context.Background(), id)
			if err != nil {
				t.Error(err)
			}
			if ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := claimed.Load(); got != 1 {
		t.Errorf("exactly one worker may claim, got %d", got)
	}
}

func TestClaimAfterTerminalIsNoop(t *testing.T) {
	store := NewFake()
	id := uuid.New()
	ctx := context.Background()
	if err := store.Insert(ctx, &model.Transaction{ID: id}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Claim(ctx, id); !ok {
		t.Fatal("first claim must succeed")
	}
	if err := store.Finalize(ctx, id, model.StatusValid, Final{Report: &report.Report{}}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Claim(ctx, id); ok {
		t.Error("terminal transaction must not be claimable")
	}
}

func TestClaimAfterErrorAllowsRetry(t *testing.T) {
	store := NewFake()
	id := uuid.New()
	ctx := context.Background()
	if err := store.Insert(ctx, &model.Transaction{ID: id}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Claim(ctx, id); !ok {
		t.Fatal("first claim must succeed")
	}
	if err := store.MarkError(ctx, id, "retries exhausted"); err != nil {
		t.Fatal(err)
	}
	// ERROR is re-claimable for operator-initiated retries.
	if ok, _ := store.Claim(ctx, id); !ok {
		t.Error("errored transaction must be claimable again")
	}
}

func TestReleaseCountsRetries(t *testing.T) {
	store := NewFake()
	id := uuid.New()
	ctx := context.Background()
	if err := store.Insert(ctx, &model.Transaction{ID: id}); err != nil {
		t.Fatal(err)
	}
	for want := 1; want <= 3; want++ {
		if ok, _ := store.Claim(ctx, id); !ok {
			t.Fatalf("claim %d must succeed", want)
		}
		count, err := store.Release(ctx, id, "blob store unavailable")
		if err != nil {
			t.Fatal(err)
		}
		if count != want {
			t.Errorf("retry count: got %d, want %d", count, want)
		}
	}
}

func TestReportWrittenOnce(t *testing.T) {
	store := NewFake()
	id := uuid.New()
	ctx := context.Background()
	if err := store.Insert(ctx, &model.Transaction{ID: id}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Claim(ctx, id); !ok {
		t.Fatal("claim must succeed")
	}
	first := &report.Report{TransactionID: id.String()}
	if err := store.Finalize(ctx, id, model.StatusValid, Final{Report: first}); err != nil {
		t.Fatal(err)
	}
	// A replayed finalize must not overwrite the stored report.
	if err := store.Finalize(ctx, id, model.StatusInvalid, Final{Report: &report.Report{}}); err == nil {
		t.Error("finalize without a claim must fail")
	}
	if store.Report(id) != first {
		t.Error("report must be written exactly once")
	}
}
