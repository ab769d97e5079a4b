package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"token-faucet/faucet/application"
	"token-faucet/faucet/domain"
	"token-faucet/faucet/infra"
)

// quotactl inspeciona a cota restante de um sujeito direto no store, sem
// passar pelo serviço. Uso:
//
//	quotactl addr cosmos1...
//	quotactl origin 203.0.113.7
//
// Lê as mesmas variáveis de ambiente do faucetd (QUOTA_BACKEND etc).
type config struct {
	AddressLimit int           `env:"ADDRESS_LIMIT,default=5"`
	OriginLimit  int           `env:"ORIGIN_LIMIT,default=20"`
	QuotaWindow  time.Duration `env:"QUOTA_WINDOW,default=24h"`

	QuotaBackend  string `env:"QUOTA_BACKEND,default=file"`
	StateDir      string `env:"STATE_DIR,default=./faucet-state"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
}

func main() {
	if len(os.Args) != 3 || (os.Args[1] != "addr" && os.Args[1] != "origin") {
		fmt.Fprintln(os.Stderr, "usage: quotactl addr|origin <subject>")
		os.Exit(2)
	}
	kind := domain.SubjectAddress
	if os.Args[1] == "origin" {
		kind = domain.SubjectOrigin
	}
	subject := os.Args[2]

	_ = godotenv.Load()
	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var store domain.QuotaStore
	switch cfg.QuotaBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		store = infra.NewRedisQuotaStore(rdb, infra.WithQuotaTTL(cfg.QuotaWindow))
	case "file":
		fs, err := infra.NewFileQuotaStore(cfg.StateDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening state dir: %v\n", err)
			os.Exit(1)
		}
		store = fs
	default:
		fmt.Fprintf(os.Stderr, "QUOTA_BACKEND must be \"redis\" or \"file\", got %q\n", cfg.QuotaBackend)
		os.Exit(1)
	}

	limiter := application.NewRateLimiter(store, cfg.QuotaWindow, cfg.AddressLimit, cfg.OriginLimit)
	remaining, err := limiter.Remaining(ctx, subject, kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s %s: %d remaining in the current %s window\n", os.Args[1], subject, remaining, cfg.QuotaWindow)
}
