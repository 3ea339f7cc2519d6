package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// storage is the set of ports provided by one storage driver.
type storage struct {
	accounts   ports.AccountRepository
	history    ports.HistoryRepository
	products   ports.ProductRepository
	identities ports.IdentityRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	cfg, err := config.Load(os.Getenv("WLG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet ledger")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis is optional: without it operations run without idempotency keys
	// and requests are not rate limited.
	var (
		idempotency ports.IdempotencyStore
		limiter     *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		idempotency = redisStorage.NewIdempotencyStore(rdb)
		limiter = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: idempotency keys and rate limiting are off")
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	resolver := service.NewAccountResolver(store.accounts, store.identities, logger.Component(log, "resolver"))
	engine := service.NewTransferEngine(
		store.accounts,
		service.NewTransactionRecorder(store.history),
		store.transactor,
		service.RetryPolicy{
			MaxAttempts:     cfg.Ledger.MaxAttempts,
			InitialInterval: cfg.Ledger.RetryInitialInterval,
			MaxInterval:     cfg.Ledger.RetryMaxInterval,
		},
		logger.Component(log, "transfer_engine"),
	)
	dispatcher := service.NewOperationDispatcher(
		resolver,
		engine,
		store.accounts,
		store.identities,
		store.products,
		idempotency,
		service.IdempotencyTTL{Result: cfg.Ledger.IdempotencyTTL, Claim: cfg.Ledger.IdempotencyClaimTTL},
		logger.Component(log, "dispatcher"),
	)

	deps := httpHandler.RouterDeps{
		Dispatcher:     dispatcher,
		AccountSvc:     service.NewAccountService(store.accounts, store.history, store.identities, resolver, log),
		CatalogSvc:     service.NewCatalogService(store.products, resolver, log),
		TokenSvc:       tokenSvc,
		HealthCheckers: healthCheckers,
		Logger:         logger.Component(log, "http"),
	}
	if limiter != nil {
		deps.RateLimiter = limiter
	}
	router := httpHandler.SetupRouter(deps)

	if cfg.Storage.Driver == config.DriverMemory {
		logSeedTokens(cfg.Storage.SeedUsers, tokenSvc, log)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		s := memory.NewStore()
		if err := seedUsers(s, cfg.Storage.SeedUsers); err != nil {
			return nil, err
		}
		log.Info().Int("seed_users", len(cfg.Storage.SeedUsers)).Msg("In-memory storage ready")
		return &storage{
			accounts:   memory.NewAccountRepo(s),
			history:    memory.NewHistoryRepo(s),
			products:   memory.NewProductRepo(s),
			identities: memory.NewIdentityRepo(s),
			transactor: memory.NewTransactor(s),
			health:     memory.HealthCheck{},
			close:      func() {},
		}, nil

	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.ApplySchema {
			if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info().Msg("Database schema applied")
		}
		return &storage{
			accounts:   pgStorage.NewAccountRepo(pool),
			history:    pgStorage.NewHistoryRepo(pool),
			products:   pgStorage.NewProductRepo(pool),
			identities: pgStorage.NewIdentityRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     pgStorage.NewHealthCheck(pool),
			close:      pool.Close,
		}, nil
	}
}

func seedUsers(s *memory.Store, users []config.SeedUser) error {
	for _, su := range users {
		id, err := uuid.Parse(su.ID)
		if err != nil {
			return fmt.Errorf("seed user %q: invalid id: %w", su.Username, err)
		}
		roles := make([]domain.Role, 0, len(su.Roles))
		for _, r := range su.Roles {
			roles = append(roles, domain.Role(r))
		}
		s.AddUser(domain.User{ID: id, Username: su.Username, Email: su.Email}, roles...)
	}
	return nil
}

// logSeedTokens prints a bearer token per seeded identity for local use.
func logSeedTokens(users []config.SeedUser, tokens ports.TokenService, log zerolog.Logger) {
	for _, su := range users {
		id, err := uuid.Parse(su.ID)
		if err != nil {
			continue
		}
		token, expires, err := tokens.Generate(id)
		if err != nil {
			log.Warn().Err(err).Str("username", su.Username).Msg("could not issue seed token")
			continue
		}
		log.Debug().
			Str("username", su.Username).
			Time("expires_at", expires).
			Str("token", token).
			Msg("seed identity token")
	}
}
