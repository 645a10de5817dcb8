package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/usergate/usergate/cmd/usergate/cli"
	"github.com/usergate/usergate/internal/access"
	"github.com/usergate/usergate/internal/app"
	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/observability"
	"github.com/usergate/usergate/internal/platform/cache"
	"github.com/usergate/usergate/internal/platform/db"
	"github.com/usergate/usergate/internal/shared"
	"github.com/usergate/usergate/internal/users"
	"github.com/usergate/usergate/jobs"
	"github.com/usergate/usergate/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		version, err := migrations.Up(cfg.PGDSN)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations complete", slog.Uint64("version", uint64(version)))
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		code := jobsCLI.Run(ctx, os.Args[2:], os.Stdout, os.Stderr)
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
		os.Exit(code)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		if cfg.RateLimitBackend == app.RateLimitRedis {
			return err
		}
		logger.Warn("redis unavailable, cache degrades to database", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	limiter, memoryStore := app.NewLimiter(cfg, redisClient, logger, metrics)
	evaluator := access.NewEvaluator(limiter, logger, metrics)

	repo := users.NewRepository(pool)
	userService := users.NewService(repo, auth.NewHasher(0),
		users.WithCache(users.NewCache(redisClient, cfg.UserCacheTTL, logger)),
		users.WithAudit(shared.NewAuditLogger(pool)),
		users.WithTx(users.PgxTx(pool, repo)),
		users.WithLogger(logger),
	)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	authService := auth.NewService(userService, auth.NewHasher(0), tokens, logger)
	usersHandler := users.NewHandler(logger, userService, authService, evaluator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Tokens:       tokens,
		UsersHandler: usersHandler,
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
		Readiness: map[string]app.ReadinessCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return cache.Ping(ctx, redisClient) },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if memoryStore != nil {
		g.Go(func() error {
			return memoryStore.Run(gctx, cfg.RateLimitSweepInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
