package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"token-faucet/faucet/domain"
)

type memStore struct {
	mu       sync.Mutex
	recs     map[string]domain.QuotaRecord
	failWith error
	saves    int
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]domain.QuotaRecord)}
}

func (s *memStore) Load(_ context.Context, key string) (domain.QuotaRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return domain.QuotaRecord{}, false, s.failWith
	}
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *memStore) Save(_ context.Context, key string, rec domain.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cp := rec
	cp.Events = append([]time.Time(nil), rec.Events...)
	s.recs[key] = cp
	s.saves++
	return nil
}

func TestRateLimiter_AdmitsUpToLimitThenDenies(t *testing.T) {
	store := newMemStore()
	l := NewRateLimiter(store, 24*time.Hour, 5, 20)
	ctx := context.Background()

	// cenário: 5 pedidos sequenciais passam, o 6º dentro da janela é negado
	for i := 0; i < 5; i++ {
		allowed, err := l.CheckAndReserve(ctx, "int3abc", domain.SubjectAddress)
		if err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("expected attempt %d to be admitted", i+1)
		}
	}

	allowed, err := l.CheckAndReserve(ctx, "int3abc", domain.SubjectAddress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected 6th attempt to be denied")
	}
}

func TestRateLimiter_DenialDoesNotMutateState(t *testing.T) {
	store := newMemStore()
	l := NewRateLimiter(store, 24*time.Hour, 2, 20)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); !allowed {
			t.Fatalf("expected attempt %d admitted", i+1)
		}
	}
	savesAfterLimit := store.saves

	for i := 0; i < 3; i++ {
		if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); allowed {
			t.Fatalf("expected denial")
		}
	}

	if store.saves != savesAfterLimit {
		t.Fatalf("expected no saves on denial, got %d extra", store.saves-savesAfterLimit)
	}
}

func TestRateLimiter_WindowSlidesRecoveringOneSlot(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l := NewRateLimiter(store, 24*time.Hour, 2, 20, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	// dois eventos com 1h de distância enchem a cota
	if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); !allowed {
		t.Fatalf("expected first admitted")
	}
	now = base.Add(1 * time.Hour)
	if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); !allowed {
		t.Fatalf("expected second admitted")
	}
	if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); allowed {
		t.Fatalf("expected third denied")
	}

	// só o primeiro evento saiu da janela: recupera exatamente UMA vaga
	now = base.Add(24*time.Hour + time.Minute)
	if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); !allowed {
		t.Fatalf("expected one slot to recover after the oldest event expired")
	}
	if allowed, _ := l.CheckAndReserve(ctx, "k", domain.SubjectAddress); allowed {
		t.Fatalf("expected quota full again (sliding, not bucket reset)")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	store := newMemStore()
	l := NewRateLimiter(store, 24*time.Hour, 1, 1)
	ctx := context.Background()

	if allowed, _ := l.CheckAndReserve(ctx, "a", domain.SubjectAddress); !allowed {
		t.Fatalf("expected a admitted")
	}
	if allowed, _ := l.CheckAndReserve(ctx, "b", domain.SubjectAddress); !allowed {
		t.Fatalf("expected b admitted (independent key)")
	}
	// mesmo texto de sujeito, espaço de cota diferente
	if allowed, _ := l.CheckAndReserve(ctx, "a", domain.SubjectOrigin); !allowed {
		t.Fatalf("expected kinds to have independent quotas")
	}
}

func TestRateLimiter_FailsClosedOnStoreError(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("boom")
	l := NewRateLimiter(store, 24*time.Hour, 5, 5)

	allowed, err := l.CheckAndReserve(context.Background(), "k", domain.SubjectAddress)
	if allowed {
		t.Fatalf("expected denial when store is down")
	}
	if !errors.Is(err, domain.ErrQuotaStoreUnavailable) {
		t.Fatalf("expected ErrQuotaStoreUnavailable, got %v", err)
	}
}

func TestRateLimiter_ConcurrentReservesNeverExceedLimit(t *testing.T) {
	store := newMemStore()
	const limit = 10
	l := NewRateLimiter(store, 24*time.Hour, limit, limit)
	ctx := context.Background()

	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := l.CheckAndReserve(ctx, "hot", domain.SubjectAddress)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("expected exactly %d admissions under concurrency, got %d", limit, admitted)
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	store := newMemStore()
	l := NewRateLimiter(store, 24*time.Hour, 5, 20)
	ctx := context.Background()

	if n, err := l.Remaining(ctx, "k", domain.SubjectAddress); err != nil || n != 5 {
		t.Fatalf("expected 5 remaining for fresh subject, got %d (%v)", n, err)
	}
	for i := 0; i < 3; i++ {
		_, _ = l.CheckAndReserve(ctx, "k", domain.SubjectAddress)
	}
	if n, _ := l.Remaining(ctx, "k", domain.SubjectAddress); n != 2 {
		t.Fatalf("expected 2 remaining after 3 reserves, got %d", n)
	}
}
