// Command hubgate runs the GitHub App integration gateway: the OAuth
// broker, webhook receiver and rate-limited credential surface.
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

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/broker"
	"github.com/hubgate/hubgate/internal/cache"
	memcache "github.com/hubgate/hubgate/internal/cache/memory"
	rediscache "github.com/hubgate/hubgate/internal/cache/redis"
	"github.com/hubgate/hubgate/internal/config"
	"github.com/hubgate/hubgate/internal/http/controllers/health"
	"github.com/hubgate/hubgate/internal/http/controllers/oauthctrl"
	"github.com/hubgate/hubgate/internal/http/controllers/webhookctrl"
	"github.com/hubgate/hubgate/internal/http/router"
	"github.com/hubgate/hubgate/internal/metrics"
	"github.com/hubgate/hubgate/internal/observability/logger"
	"github.com/hubgate/hubgate/internal/rate"
	"github.com/hubgate/hubgate/internal/store"
	memstore "github.com/hubgate/hubgate/internal/store/memory"
	pgstore "github.com/hubgate/hubgate/internal/store/pg"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "hubgate",
		Short: "GitHub App integration gateway",
	}

	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgPath)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("hubgate", version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "hubgate",
		Version:     version,
	})
	defer logger.Sync()
	log := logger.L()

	pingers := map[string]health.Pinger{}

	// Shared redis client when any subsystem asks for redis.
	var redisClient *rdb.Client
	if cfg.Cache.Kind == "redis" || cfg.Rate.Backend == "redis" {
		redisClient = rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		pingers["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	var credCache cache.Cache
	if cfg.Cache.Kind == "redis" {
		credCache = rediscache.NewFromClient(redisClient)
	} else {
		credCache = memcache.New(config.Dur(cfg.Cache.Memory.DefaultTTL, 10*time.Minute))
	}

	rateCfg := rate.Config{
		ProviderHourLimit:   cfg.Rate.Provider.HourLimit,
		ProviderMinuteLimit: cfg.Rate.Provider.MinuteLimit,
		WebhookPerSecond:    cfg.Rate.Webhook.PerSecond,
		WebhookBurst:        cfg.Rate.Webhook.Burst,
		OAuthPerMinute:      cfg.Rate.OAuth.PerMinute,
	}
	var limiter rate.Checker
	if cfg.Rate.Backend == "redis" {
		limiter = rate.NewRedisLimiter(redisClient, "hubgate:rl:", rateCfg)
	} else {
		limiter = rate.NewLimiter(rateCfg)
	}

	db, closeDB, err := openStore(ctx, cfg, pingers)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeDB()

	if cfg.GitHub.CallbackURL == "" && cfg.Server.PublicURL != "" {
		cfg.GitHub.CallbackURL = cfg.Server.PublicURL + "/auth/github/callback"
	}

	brk, err := broker.New(broker.Config{
		AppID:          cfg.GitHub.AppID,
		PrivateKeyPEM:  []byte(cfg.GitHub.PrivateKey),
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		ClientID:       cfg.GitHub.ClientID,
		ClientSecret:   cfg.GitHub.ClientSecret,
		CallbackURL:    cfg.GitHub.CallbackURL,
		Scopes:         cfg.GitHub.Scopes,
		StateSecret:    cfg.Auth.StateSecret,
		SessionSecret:  cfg.Auth.SessionSecret,
		StateTTL:       config.Dur(cfg.Auth.StateTTL, 0),
		SessionTTL:     config.Dur(cfg.Auth.SessionTTL, 0),
		AuthEndpoint:   cfg.GitHub.AuthEndpoint,
		TokenEndpoint:  cfg.GitHub.TokenEndpoint,
		APIBaseURL:     cfg.GitHub.APIBaseURL,
	}, credCache)
	if err != nil {
		return fmt.Errorf("build broker: %w", err)
	}

	recorder := audit.NewLogRecorder()
	dispatcher := newDispatcher(db, recorder)

	deps := router.Deps{
		OAuth: oauthctrl.New(brk, db, recorder, cfg.TierTable(), oauthctrl.CookieConfig{
			Name:   cfg.Auth.Session.CookieName,
			Domain: cfg.Auth.Session.Domain,
			Secure: cfg.Auth.Session.Secure,
			MaxAge: config.Dur(cfg.Auth.SessionTTL, 7*24*time.Hour),
		}, cfg.Server.DefaultPath),
		Webhook: webhookctrl.New([]byte(cfg.GitHub.WebhookSecret), dispatcher, limiter, recorder),
		Health:  health.New(pingers),
		Limiter: limiter,
		Metrics: metrics.Register(nil),
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("gateway listening", logger.Subject(cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, pingers map[string]health.Pinger) (store.Store, func(), error) {
	if cfg.Storage.Driver == "postgres" {
		pg, err := pgstore.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		pingers["postgres"] = pg.Ping
		return pg, pg.Close, nil
	}
	return memstore.New(), func() {}, nil
}
