// Command server runs the assistant backend-for-frontend.
//
// @title                       Codepilot Assistant API
// @version                     1.0
// @description                 Session, auth flow and AI orchestration endpoints for the code assistant UI.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
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

	"github.com/rs/zerolog"

	_ "github.com/codepilot/assistant-api/docs"
	"github.com/codepilot/assistant-api/internal/api"
	"github.com/codepilot/assistant-api/internal/api/handler"
	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/service"
	"github.com/codepilot/assistant-api/internal/infrastructure/ai"
	"github.com/codepilot/assistant-api/internal/infrastructure/config"
	mongodb "github.com/codepilot/assistant-api/internal/infrastructure/db/mongo"
	redisdb "github.com/codepilot/assistant-api/internal/infrastructure/db/redis"
	"github.com/codepilot/assistant-api/internal/infrastructure/identity"
	"github.com/codepilot/assistant-api/internal/infrastructure/queue"
	"github.com/codepilot/assistant-api/internal/infrastructure/scheduler"
	"github.com/codepilot/assistant-api/internal/infrastructure/token"
	"github.com/codepilot/assistant-api/internal/metrics"
	"github.com/codepilot/assistant-api/pkg/logger"
)

var version = "dev" // set with -ldflags at build time

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "assistant-api",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	profiles := mongodb.NewProfileRepository(db)
	usage := mongodb.NewUsageRepository(db)
	history := mongodb.NewHistoryRepository(db)
	conversations := mongodb.NewConversationRepository(db)
	if err := mongodb.EnsureIndexes(ctx, profiles, usage, history, conversations); err != nil {
		return err
	}

	sessionStore := redisdb.NewSessionStore(rdb)
	clientState := redisdb.NewClientState(rdb)
	notifier := redisdb.NewNotifier(rdb)
	sequencer := redisdb.NewSequencer(rdb)
	pending, err := redisdb.NewPendingSignupStore(rdb, pendingKey(cfg, log), cfg.Pending.TTL)
	if err != nil {
		return err
	}

	// --- External services ---
	idp := identity.NewClient(identity.Config{
		BaseURL:     cfg.Identity.URL,
		AnonKey:     cfg.Identity.AnonKey,
		CallbackURL: cfg.CallbackURL(),
	})

	registry, err := buildRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}

	// --- Background workers ---
	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()

	dispatcher := queue.NewDispatcher(cfg.Usage.Workers, usage, logger.Component("usage"))
	dispatcher.Start(workCtx)

	sched := scheduler.New(workCtx, logger.Component("scheduler"))
	statsJob := scheduler.NewStatsJob(usage, logger.Component("stats"))
	if err := sched.Add("usage-stats", cfg.Usage.StatsSchedule, statsJob.Run); err != nil {
		return err
	}
	sched.Start()
	go statsJob.Run(workCtx)

	// --- Services ---
	sessions := service.NewSessionService(idp, sessionStore, cfg.SessionTTL, logger.Component("session"))
	admins := service.NewAdminResolver(idp, sessions, logger.Component("admin"))
	switcher := service.NewProviderSwitch(clientState, domain.AIProvider(cfg.AI.DefaultProvider), logger.Component("provider"))
	flow := service.NewAuthFlowService(idp, sessions, clientState, pending, logger.Component("authflow"))
	callback := service.NewCallbackService(service.CallbackDeps{
		Identity: idp,
		Sessions: sessions,
		Flows:    clientState,
		Pending:  pending,
		Profiles: profiles,
		Usage:    usage,
		Notifier: notifier,
	}, logger.Component("callback"))
	assistant := service.NewAssistantService(service.AssistantDeps{
		Generators:    registry,
		Switch:        switcher,
		History:       history,
		Conversations: conversations,
		Usage:         dispatcher,
		Notifier:      notifier,
		Sequencer:     sequencer,
		Timeout:       cfg.AI.Timeout,
	}, logger.Component("assistant"))
	activity := service.NewActivityService(history, conversations, usage, logger.Component("activity"))

	unsubSessions := sessions.Subscribe(func(ev domain.SessionEvent) {
		metrics.SessionEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	})
	defer unsubSessions()
	unsubProviders := switcher.Subscribe(func(ev domain.ProviderChanged) {
		metrics.ProviderSwitchesTotal.WithLabelValues(string(ev.Current)).Inc()
	})
	defer unsubProviders()

	// --- HTTP ---
	router := api.NewRouter(api.Deps{
		Sessions:  sessions,
		Admins:    admins,
		Flow:      flow,
		Callback:  callback,
		Switch:    switcher,
		Catalog:   registry,
		Assistant: assistant,
		Activity:  activity,
		Notifier:  notifier,
		Tokens:    token.NewIssuer(jwtSecret(cfg, log), cfg.SessionTTL),
		Health: []handler.Dependency{
			{Name: "mongodb", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		SecureCookies: cfg.IsProduction(),
		Metrics:       true,
		Swagger:       !cfg.IsProduction(),
	}, logger.Component("http"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// AI calls are bounded by AI_TIMEOUT; leave headroom for persistence.
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down HTTP server")
	}
	sched.Stop(shutdownCtx)
	stopWork()

	log.Info().Msg("Server shutdown complete")
	return nil
}

// buildRegistry registers an adapter for every provider with credentials.
func buildRegistry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ai.Registry, error) {
	catalog, err := ai.LoadCatalog(cfg.AI.CatalogFile)
	if err != nil {
		return nil, err
	}
	registry := ai.NewRegistry(catalog)

	if cfg.AI.GeminiAPIKey != "" {
		g, err := ai.NewGemini(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel, catalog.Entry(domain.ProviderGemini))
		if err != nil {
			return nil, err
		}
		registry.Register(g)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, gemini provider unavailable")
	}

	if cfg.AI.OpenAIAPIKey != "" {
		registry.Register(ai.NewOpenAI(&http.Client{}, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIModel, catalog.Entry(domain.ProviderOpenAI)))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, openai provider unavailable")
	}
	return registry, nil
}

// jwtSecret falls back to a per-process random secret outside production;
// config validation guarantees one is set in production.
func jwtSecret(cfg *config.Config, log zerolog.Logger) string {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret
	}
	log.Warn().Msg("JWT_SECRET not set, sessions will not survive a restart")
	return string(randomKey())
}

func pendingKey(cfg *config.Config, log zerolog.Logger) []byte {
	if cfg.Pending.Key != nil {
		return cfg.Pending.Key
	}
	log.Warn().Msg("PENDING_SIGNUP_KEY not set, pending signups will not survive a restart")
	return randomKey()
}
