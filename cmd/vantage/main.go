package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vantage-ops/vantage/cmd/vantage/cli"
	"github.com/vantage-ops/vantage/internal/app"
	"github.com/vantage-ops/vantage/internal/auth"
	"github.com/vantage-ops/vantage/internal/authz"
	"github.com/vantage-ops/vantage/internal/observability"
	"github.com/vantage-ops/vantage/internal/platform/cache"
	"github.com/vantage-ops/vantage/internal/platform/db"
	"github.com/vantage-ops/vantage/internal/rbac"
	"github.com/vantage-ops/vantage/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	rbacRepo := rbac.NewRepository(pool)

	grantCache := authz.NewGrantCache()
	warmer := authz.NewWarmer(grantCache, rbacRepo, rbacRepo)
	invalidator := authz.NewInvalidator(grantCache, redisClient, warmer, logger)
	go func() {
		if err := invalidator.Listen(ctx); err != nil && ctx.Err() == nil {
			logger.Error("invalidation listener", slog.Any("error", err))
		}
	}()
	evaluator := authz.NewEvaluator(grantCache, rbacRepo, metrics)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	rbacService := rbac.NewService(rbacRepo, invalidator, jobsClient, logger)
	authService := auth.NewService(authRepo, rbacService, rbacRepo)

	issuer := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(logger, authService, issuer, cfg.IsProduction())
	rbacHandler := rbac.NewHandler(logger, rbacService, authHandler.SessionMiddleware(), authz.Middleware{
		Evaluator: evaluator,
		Logger:    logger,
	})

	// Populate the grant cache up front so the first requests after boot do
	// not all fall through to the database.
	warmCtx, cancelWarm := context.WithTimeout(ctx, 30*time.Second)
	if err := warmer.Warm(warmCtx); err != nil {
		logger.Warn("initial grant warmup", slog.Any("error", err))
	}
	cancelWarm()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		AuthHandler: authHandler,
		RBACHandler: rbacHandler,
		JobHandler:  jobHandler,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vantage jobs <trigger TASK|stats>")
		return 2
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobs cli:", err)
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: vantage jobs trigger TASK")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "trigger:", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stats:", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown jobs command:", args[0])
		return 2
	}
}
