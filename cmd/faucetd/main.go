package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"token-faucet/faucet"
	"token-faucet/faucet/application"
	"token-faucet/faucet/domain"
	"token-faucet/faucet/infra"
)

type config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`

	LCDURL        string `env:"LCD_URL,required"`
	ChainID       string `env:"CHAIN_ID,required"`
	AddressPrefix string `env:"ADDR_PREFIX,default=cosmos"`

	Mnemonic string `env:"FAUCET_MNEMONIC,required"`
	HDPath   string `env:"HD_PATH,default=m/44'/118'/0'/0/0"`

	SendAmount string `env:"SEND_AMOUNT,default=10000000"`
	SendDenom  string `env:"SEND_DENOM,required"`
	FeeAmount  string `env:"FEE_AMOUNT,default=2000"`
	GasLimit   uint64 `env:"GAS_LIMIT,default=100000"`
	Memo       string `env:"TX_MEMO"`

	AddressLimit int           `env:"ADDRESS_LIMIT,default=5"`
	OriginLimit  int           `env:"ORIGIN_LIMIT,default=20"`
	QuotaWindow  time.Duration `env:"QUOTA_WINDOW,default=24h"`

	QuotaBackend  string `env:"QUOTA_BACKEND,default=file"`
	StateDir      string `env:"STATE_DIR,default=./faucet-state"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT,default=15s"`
	TrustXFF        bool          `env:"TRUST_XFF,default=false"`
	RetryAfter      time.Duration `env:"RETRY_AFTER,default=1h"`

	BurstRPS float64 `env:"BURST_RPS,default=1"`
	BurstMax int     `env:"BURST_MAX,default=5"`
}

func main() {
	// .env é conveniência de dev; em produção as variáveis vêm do ambiente
	_ = godotenv.Load()

	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "faucetd").Logger().Level(level)

	wallet, err := infra.NewWallet(cfg.Mnemonic, cfg.HDPath, cfg.AddressPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("deriving custodial account")
	}

	chain := infra.NewLCDClient(cfg.LCDURL, cfg.ChainID, wallet)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		store = infra.NewRedisQuotaStore(rdb, infra.WithQuotaTTL(cfg.QuotaWindow))
	case "file":
		fs, err := infra.NewFileQuotaStore(cfg.StateDir)
		if err != nil {
			log.Fatal().Err(err).Msg("opening quota state dir")
		}
		store = fs
	default:
		log.Fatal().Str("backend", cfg.QuotaBackend).Msg("QUOTA_BACKEND must be \"redis\" or \"file\"")
	}

	limiter := application.NewRateLimiter(store, cfg.QuotaWindow, cfg.AddressLimit, cfg.OriginLimit)
	orders := application.NewAccountOrderState(application.NewChainTokenSource(chain, wallet.Address()))

	dispatcher := application.NewDispatcher(application.DispatcherConfig{
		ChainID:           cfg.ChainID,
		AddressPrefix:     cfg.AddressPrefix,
		Amount:            domain.Coin{Amount: cfg.SendAmount, Denom: cfg.SendDenom},
		Fee:               domain.Coin{Amount: cfg.FeeAmount, Denom: cfg.SendDenom},
		GasLimit:          cfg.GasLimit,
		Memo:              cfg.Memo,
		DispatchTimeout:   cfg.DispatchTimeout,
		ValidateRecipient: infra.NewAddressValidator(cfg.AddressPrefix),
	}, limiter, orders, chain, wallet.Address(), log)

	burstStore := infra.NewBurstStore(cfg.BurstRPS, cfg.BurstMax)
	burstStore.StartJanitor(ctx)

	originFn := faucet.DefaultOriginFunc(cfg.TrustXFF)
	handler := faucet.NewHandler(dispatcher, chain, wallet.Address(), domain.Coin{Amount: cfg.SendAmount, Denom: cfg.SendDenom}, log,
		faucet.WithOriginFunc(originFn),
		faucet.WithRetryAfter(cfg.RetryAfter),
	)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: handler.Routes(faucet.BurstMiddleware(faucet.BurstOptions{
			Store:    burstStore,
			OriginFn: originFn,
		})),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("chain", cfg.ChainID).
		Str("lcd", cfg.LCDURL).
		Str("custodial", wallet.Address()).
		Str("amount", cfg.SendAmount+cfg.SendDenom).
		Int("addressLimit", cfg.AddressLimit).
		Int("originLimit", cfg.OriginLimit).
		Dur("window", cfg.QuotaWindow).
		Str("quotaBackend", cfg.QuotaBackend).
		Msg("faucet listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}

func validate(cfg config) error {
	if cfg.AddressLimit <= 0 {
		return errors.New("ADDRESS_LIMIT must be > 0")
	}
	if cfg.OriginLimit <= 0 {
		return errors.New("ORIGIN_LIMIT must be > 0")
	}
	if cfg.QuotaWindow <= 0 {
		return errors.New("QUOTA_WINDOW must be > 0")
	}
	if cfg.DispatchTimeout <= 0 {
		return errors.New("DISPATCH_TIMEOUT must be > 0")
	}
	if cfg.BurstRPS <= 0 || cfg.BurstMax <= 0 {
		return errors.New("BURST_RPS and BURST_MAX must be > 0")
	}
	for _, v := range []struct{ name, value string }{
		{"SEND_AMOUNT", cfg.SendAmount},
		{"FEE_AMOUNT", cfg.FeeAmount},
	} {
		if _, err := strconv.ParseUint(v.value, 10, 64); err != nil {
			return fmt.Errorf("%s must be a positive integer, got %q", v.name, v.value)
		}
	}
	return nil
}
