package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizplay/internal/config"
	"quizplay/internal/infra/memory"
	"quizplay/internal/infra/postgres"
	infraredis "quizplay/internal/infra/redis"
	"quizplay/internal/platform"
	transport "quizplay/internal/transport/http"
)

// newServeCmd builds the subcommand that runs the quiz platform.
func newServeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the quiz platform API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), g)
		},
	}
	cmd.Flags().String("port", "", "port to listen on (overrides server.port)")
	_ = g.viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func runServer(ctx context.Context, g *globals) error {
	cfg := g.cfg
	logger := g.logger
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret (QUIZPLAY_SERVER_JWT_SECRET) is required")
	}

	var repo platform.Repository = memory.NewPlatformRepository()
	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(platform.SampleQuizzes())
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, false); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)
		loader = postgres.NewCatalogLoader(pool)
	} else {
		logger.Warn("postgres not configured, accounts and plays are kept in memory")
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog platform.Catalog
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		catalog = infraredis.NewCatalogCache(rdb, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogCache(loader, catalogTTL)
	}

	tokens := platform.NewTokens(cfg.Server.JWTSecret, config.TTLDuration(cfg.Server.TokenTTL, 24*time.Hour))
	service := platform.NewService(repo, catalog, tokens, platform.NewHub(), platform.Options{
		PointsPerCorrect: cfg.Server.PointsPerCorrect,
		ExposeAnswers:    cfg.Server.ExposeAnswers,
		Logger:           logger,
	})
	if cfg.Server.AdminEmail != "" {
		if err := service.EnsureAdmin(ctx, cfg.Server.AdminEmail, cfg.Server.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	router := transport.NewRouter(service, transport.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz platform", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
