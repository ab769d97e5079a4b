package infra

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"token-faucet/faucet/domain"
)

// RedisQuotaStore guarda um registro JSON por sujeito em redis.
//
// O TTL acompanha a janela de cota: um registro cujo evento mais novo já saiu
// da janela é lixo por definição, então o redis recolhe sozinho os sujeitos
// que pararam de pedir. A atomicidade read-modify-write vem do mutex por
// chave do RateLimiter, não daqui.
type RedisQuotaStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisQuotaOption func(*RedisQuotaStore)

func WithQuotaPrefix(prefix string) RedisQuotaOption {
	return func(s *RedisQuotaStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithQuotaTTL(d time.Duration) RedisQuotaOption {
	return func(s *RedisQuotaStore) { s.ttl = d }
}

func NewRedisQuotaStore(rdb *redis.Client, opts ...RedisQuotaOption) *RedisQuotaStore {
	s := &RedisQuotaStore{
		rdb:    rdb,
		prefix: "faucet:quota",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisQuotaStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisQuotaStore) Load(ctx context.Context, key string) (domain.QuotaRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuotaRecord{}, false, nil
	}
	if err != nil {
		return domain.QuotaRecord{}, false, err
	}

	var rec domain.QuotaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.QuotaRecord{}, false, err
	}
	return rec, true, nil
}

func (s *RedisQuotaStore) Save(ctx context.Context, key string, rec domain.QuotaRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.redisKey(key), raw, s.ttl).Err()
}
