package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BurstStore é um token bucket por origem com cache por chave e limpeza
// periódica. Ele protege o endpoint de crédito contra rajadas baratas; a
// cota persistente de 24h é outra camada e vive no RateLimiter.
type BurstStore struct {
	mu           sync.Mutex
	entries      map[string]*burstEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type burstEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BurstOption func(*BurstStore)

func WithIdleTTL(d time.Duration) BurstOption {
	return func(s *BurstStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BurstOption {
	return func(s *BurstStore) { s.cleanupEvery = d }
}

func NewBurstStore(rps float64, burst int, opts ...BurstOption) *BurstStore {
	s := &BurstStore{
		entries:      make(map[string]*burstEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow consome um token do bucket da origem, criando o bucket na primeira vez.
func (s *BurstStore) Allow(origin string) bool {
	now := time.Now()

	s.mu.Lock()
	ent, ok := s.entries[origin]
	if !ok {
		ent = &burstEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.entries[origin] = ent
	}
	ent.lastSeen = now
	lim := ent.lim
	s.mu.Unlock()

	return lim.Allow()
}

func (s *BurstStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa origens inativas periodicamente.
// Pare cancelando o contexto.
func (s *BurstStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
