package faucet

import (
	"net/http"
	"strconv"
	"time"
)

// BurstLimiter decide se uma origem pode passar agora. A implementação de
// infra é um token bucket por chave (x/time/rate).
type BurstLimiter interface {
	Allow(origin string) bool
}

type BurstOptions struct {
	Store      BurstLimiter
	OriginFn   OriginFunc
	RetryAfter time.Duration
}

// BurstMiddleware rejeita rajadas com 429 antes de qualquer toque na cota
// persistente ou na chain. Proteção barata e por processo; a cota de 24h é
// a camada de verdade.
func BurstMiddleware(opts BurstOptions) func(next http.Handler) http.Handler {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.OriginFn == nil {
		opts.OriginFn = DefaultOriginFunc(false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Store != nil && !opts.Store.Allow(opts.OriginFn(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(opts.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
