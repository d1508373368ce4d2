package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"tfc/internal/auth/handler"
	"tfc/internal/auth/service"
	userStore "tfc/internal/auth/store/user"
	jwttoken "tfc/internal/jwt_token"
	"tfc/internal/platform/config"
	"tfc/internal/platform/httpserver"
	"tfc/internal/platform/logger"
	"tfc/internal/platform/metrics"
	"tfc/internal/platform/postgres"
	redisclient "tfc/internal/platform/redis"
	ratelimit "tfc/internal/ratelimit/middleware"
	"tfc/internal/telegram"
	httptransport "tfc/internal/transport/http"
	"tfc/pkg/platform/audit"
	"tfc/pkg/platform/audit/publisher"
	auditmemory "tfc/pkg/platform/audit/store/memory"
	auditpostgres "tfc/pkg/platform/audit/store/postgres"
)

// userStoreBackend is what main needs from any user store.
type userStoreBackend interface {
	service.UserStore
	service.Promoter
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tfc:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr := metrics.New(reg)

	health := map[string]httptransport.HealthCheck{}
	users, db, closeStores, err := openStores(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer closeStores()

	auditStore, err := openAuditStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	auditLog := publisher.NewPublisher(auditStore, publisher.WithLogger(log))

	var verifier service.IdentityVerifier
	if v, err := telegram.NewVerifier(cfg.BotToken, telegram.WithMaxAge(cfg.MaxAuthAge)); err != nil {
		log.Warn("TELEGRAM_BOT_TOKEN is not set; Telegram logins will answer 500")
	} else {
		verifier = v
	}

	var (
		issuer   service.SessionIssuer
		sessions *jwttoken.ServiceAdapter
	)
	if jwt, err := jwttoken.NewService(cfg.SessionSecret); err != nil {
		log.Warn("SESSION_SECRET is not set; logins and guarded routes are unavailable")
	} else {
		issuer = jwt
		sessions = jwttoken.NewServiceAdapter(jwt)
	}
	if cfg.SessionSecretFromDev {
		log.Warn("using development session secret; set SESSION_SECRET before deploying")
	}

	svc := service.New(users, verifier, issuer,
		service.Config{
			AdminTelegramIDs: cfg.AdminTelegramIDs,
			DevLoginEnabled:  !cfg.Production,
		},
		service.WithLogger(log),
		service.WithMetrics(mtr),
		service.WithAuditPublisher(auditLog),
	)
	if _, err := svc.PromoteAllowList(ctx, users); err != nil {
		return err
	}

	handlerOpts := handler.Options{
		SecureCookies: cfg.Production,
		DevLogin:      !cfg.Production,
	}
	if sessions != nil {
		handlerOpts.Sessions = sessions
	}

	deps := httptransport.Dependencies{
		Logger: log,
		Auth:   handler.New(svc, auditLog, log, handlerOpts),
		RateLimit: ratelimit.New(
			ratelimit.NewIPLimiter(cfg.LoginRate.PerMinute, cfg.LoginRate.Burst),
			log,
			ratelimit.WithMetrics(mtr),
			ratelimit.WithAuditPublisher(auditLog),
		),
		Metrics:  mtr,
		Gatherer: reg,
		Secure:   cfg.Production,
		Health:   health,

		TrustedProxies: cfg.TrustedProxies,
	}
	if sessions != nil {
		deps.Sessions = sessions
	}

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tfc", "addr", cfg.Addr, "env", cfg.Environment, "user_store", cfg.UserStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Server, health map[string]httptransport.HealthCheck) (userStoreBackend, *sql.DB, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var db *sql.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, closeAll, err
		}
		closers = append(closers, func() { _ = db.Close() })
		health["postgres"] = db.PingContext
	}

	switch cfg.UserStore {
	case config.StorePostgres:
		store := userStore.NewPostgres(db)
		if err := store.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("migrate users: %w", err)
		}
		return store, db, closeAll, nil
	case config.StoreRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, err
		}
		closers = append(closers, func() { _ = client.Close() })
		health["redis"] = client.Health
		return userStore.NewRedis(client.Client), db, closeAll, nil
	default:
		return userStore.New(), db, closeAll, nil
	}
}

// openAuditStore persists audit events in Postgres when a database is
// configured and keeps a bounded in-memory ring otherwise.
func openAuditStore(ctx context.Context, cfg config.Server, db *sql.DB) (audit.Store, error) {
	if db == nil {
		return auditmemory.NewRingStore(cfg.AuditCapacity), nil
	}
	store := auditpostgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate audit events: %w", err)
	}
	return store, nil
}
