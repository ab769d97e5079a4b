package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"token-faucet/faucet/domain"
)

// RateLimiter aplica a janela deslizante por sujeito sobre um QuotaStore durável.
//
// CheckAndReserve é uma única operação atômica por chave: sob o mutex da chave
// ele carrega o registro, poda eventos fora da janela, compara com o limite e,
// se couber, grava o evento novo. Dois chamadores concorrentes no limite nunca
// passam os dois — um deles enxerga o evento do outro.
//
// O lock é por chave (não global): sujeitos diferentes não se atrapalham.
type RateLimiter struct {
	store  domain.QuotaStore
	window time.Duration
	limits map[domain.SubjectKind]int

	mu   sync.Mutex
	keys map[string]*sync.Mutex

	// now é injetável para os testes deslizarem a janela sem dormir.
	now func() time.Time
}

type RateLimiterOption func(*RateLimiter)

func WithClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

func NewRateLimiter(store domain.QuotaStore, window time.Duration, addressLimit, originLimit int, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		store:  store,
		window: window,
		limits: map[domain.SubjectKind]int{
			domain.SubjectAddress: addressLimit,
			domain.SubjectOrigin:  originLimit,
		},
		keys: make(map[string]*sync.Mutex),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// keyMutex devolve o mutex do sujeito, criando na primeira vez.
//
// O mapa cresce com o conjunto de sujeitos vistos; não há limpeza porque
// remover um mutex que outro goroutine ainda referencia quebraria a
// atomicidade por chave. Um mutex custa bytes; a cota custa dinheiro.
func (l *RateLimiter) keyMutex(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.keys[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.keys[key] = m
	return m
}

func storageKey(subject string, kind domain.SubjectKind) string {
	return string(kind) + ":" + subject
}

// CheckAndReserve testa e, se permitido, já conta o evento.
//
// Fail closed: se o store não responde, a resposta é "negado" com
// ErrQuotaStoreUnavailable embrulhado — bypass de cota é propriedade de
// segurança, não conveniência de disponibilidade.
func (l *RateLimiter) CheckAndReserve(ctx context.Context, subject string, kind domain.SubjectKind) (bool, error) {
	limit := l.limits[kind]
	if limit <= 0 {
		return false, fmt.Errorf("no limit configured for kind %q", kind)
	}

	key := storageKey(subject, kind)
	m := l.keyMutex(key)
	m.Lock()
	defer m.Unlock()

	rec, found, err := l.store.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %v", domain.ErrQuotaStoreUnavailable, key, err)
	}
	if !found {
		rec = domain.QuotaRecord{Kind: kind}
	}

	now := l.now()
	rec.Prune(l.window, now)

	if len(rec.Events) >= limit {
		// negado: não muta estado persistido
		return false, nil
	}

	rec.Events = append(rec.Events, now)
	if err := l.store.Save(ctx, key, rec); err != nil {
		return false, fmt.Errorf("%w: save %s: %v", domain.ErrQuotaStoreUnavailable, key, err)
	}
	return true, nil
}

// Commit confirma a reserva após o crédito concluir. No desenho atômico a
// reserva já foi gravada em CheckAndReserve, então aqui não há segunda
// escrita — o método existe como ponto de contrato terminal do fluxo
// (uma tentativa que falha depois da admissão NÃO devolve a reserva).
func (l *RateLimiter) Commit(context.Context, string, domain.SubjectKind) {}

// Remaining informa quantas vagas restam na janela para o sujeito.
// Só leitura; usado por ferramentas de operação, nunca para admissão.
func (l *RateLimiter) Remaining(ctx context.Context, subject string, kind domain.SubjectKind) (int, error) {
	limit := l.limits[kind]
	if limit <= 0 {
		return 0, fmt.Errorf("no limit configured for kind %q", kind)
	}

	key := storageKey(subject, kind)
	m := l.keyMutex(key)
	m.Lock()
	defer m.Unlock()

	rec, found, err := l.store.Load(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: load %s: %v", domain.ErrQuotaStoreUnavailable, key, err)
	}
	if !found {
		return limit, nil
	}
	rec.Prune(l.window, l.now())
	if n := limit - len(rec.Events); n > 0 {
		return n, nil
	}
	return 0, nil
}
