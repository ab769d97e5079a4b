package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"token-faucet/faucet/domain"
)

func countingSource(start domain.OrderToken) (*int, TokenSource) {
	calls := new(int)
	return calls, func(ctx context.Context) (domain.OrderToken, error) {
		*calls++
		return start, nil
	}
}

func TestAccountOrderState_SequenceAdvancesByOnePerSuccess(t *testing.T) {
	calls, src := countingSource(domain.OrderToken{AccountNumber: 7, Sequence: 41})
	s := NewAccountOrderState(src)
	ctx := context.Background()

	var seen []uint64
	for i := 0; i < 3; i++ {
		err := s.WithToken(ctx, func(tok domain.OrderToken) error {
			seen = append(seen, tok.Sequence)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if *calls != 1 {
		t.Fatalf("expected a single refresh, got %d", *calls)
	}
	for i, seq := range seen {
		if seq != 41+uint64(i) {
			t.Fatalf("expected strictly increasing sequences 41,42,43, got %v", seen)
		}
	}
}

func TestAccountOrderState_FailureInvalidatesCache(t *testing.T) {
	calls, src := countingSource(domain.OrderToken{Sequence: 10})
	s := NewAccountOrderState(src)
	ctx := context.Background()

	boom := errors.New("broadcast blew up")
	if err := s.WithToken(ctx, func(domain.OrderToken) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	// a falha pode ter consumido a sequence on-chain: o próximo ocupante rebusca
	if err := s.WithToken(ctx, func(domain.OrderToken) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *calls != 2 {
		t.Fatalf("expected refetch after failure, got %d fetches", *calls)
	}
}

func TestAccountOrderState_FetchErrorPropagatesAndLeavesCacheEmpty(t *testing.T) {
	fetchErr := errors.New("node down")
	failing := true
	s := NewAccountOrderState(func(ctx context.Context) (domain.OrderToken, error) {
		if failing {
			return domain.OrderToken{}, fetchErr
		}
		return domain.OrderToken{Sequence: 3}, nil
	})
	ctx := context.Background()

	if err := s.WithToken(ctx, func(domain.OrderToken) error { return nil }); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	failing = false
	err := s.WithToken(ctx, func(tok domain.OrderToken) error {
		if tok.Sequence != 3 {
			t.Errorf("expected fresh token with sequence 3, got %d", tok.Sequence)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccountOrderState_ConcurrentDispatchesGetConsecutiveTokens(t *testing.T) {
	_, src := countingSource(domain.OrderToken{Sequence: 100})
	s := NewAccountOrderState(src)
	ctx := context.Background()

	var mu sync.Mutex
	var tokens []uint64
	var inSection int
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithToken(ctx, func(tok domain.OrderToken) error {
				mu.Lock()
				inSection++
				if inSection > 1 {
					t.Errorf("two holders inside the exclusive section")
				}
				tokens = append(tokens, tok.Sequence)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	// cenário: dois créditos concorrentes recebem N e N+1, nunca colidem
	if !(tokens[0] == 100 && tokens[1] == 101) && !(tokens[0] == 101 && tokens[1] == 100) {
		t.Fatalf("expected consecutive tokens 100 and 101, got %v", tokens)
	}
	if tokens[0] == tokens[1] {
		t.Fatalf("two dispatches used the same ordering token")
	}
}

func TestAccountOrderState_AcquireRespectsContext(t *testing.T) {
	_, src := countingSource(domain.OrderToken{})
	s := NewAccountOrderState(src)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithToken(context.Background(), func(domain.OrderToken) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WithToken(ctx, func(domain.OrderToken) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error while slot is held, got %v", err)
	}

	close(release)
}
