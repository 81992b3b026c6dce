package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mdnotes/config"
	"mdnotes/config/database"
	"mdnotes/internal/grammar"
	"mdnotes/internal/markdown"
	"mdnotes/internal/note/repository"
	"mdnotes/internal/note/service"
	"mdnotes/pkg/logger"
	"mdnotes/pkg/metrics"
	"mdnotes/router"
	"mdnotes/socket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Configuration comes from .env (when present) and the environment.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Sugar.Fatalf("Could not open the %s note store: %v", cfg.Database.Driver, err)
	}
	defer closeStore()

	local := localEngine(cfg.Grammar)
	remote, err := remoteEngine(ctx, cfg.Grammar)
	if err != nil {
		logger.Sugar.Fatalf("Could not create the remote grammar engine: %v", err)
	}

	// The hub's event loop runs until shutdown.
	hub := socket.NewHub()
	go hub.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	noteService := service.NewNoteService(store, markdown.NewDecoder(cfg.Encoding), local, remote, hub)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: router.Setup(noteService, hub, router.Options{
			CORSAllowedOrigin: cfg.Server.CORSAllowedOrigin,
			MaxUploadBytes:    cfg.Server.MaxUploadBytes,
			Gatherer:          reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
		}
	}()

	logger.Sugar.Infof("Go Backend listening on %s (store=%s, encoding=%s, local=%s, remote=%s)",
		cfg.Server.Addr, cfg.Database.Driver, cfg.Encoding, cfg.Grammar.LocalEngine, cfg.Grammar.RemoteProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar.Fatalf("Server failed: %v", err)
	}
	logger.Sugar.Info("Server stopped")
}

// openStore returns the configured note store, wrapped in the Redis cache
// when REDIS_ADDR is set.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	var (
		store   repository.Store
		closers []func()
	)

	switch cfg.Database.Driver {
	case config.StoreMemory:
		logger.Sugar.Warn("Using the in-memory note store; notes are lost on restart")
		store = repository.NewMemoryStore()
	default:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		store = repository.NewNoteRepository(db)
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Sugar.Warnf("Redis at %s is not reachable yet, reads go to the store until it is: %v", cfg.Redis.Addr, err)
		}
		cancel()
		closers = append(closers, func() { client.Close() })
		store = repository.NewCachedStore(store, client, cfg.Redis.TTL)
	}

	return store, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func localEngine(cfg config.GrammarConfig) grammar.Checker {
	if cfg.LocalEngine == config.LocalEngineLanguageTool {
		return grammar.NewLanguageTool(cfg.LanguageToolURL, cfg.Language)
	}
	return grammar.NewRuleEngine()
}

// remoteEngine returns nil when no provider is configured.
func remoteEngine(ctx context.Context, cfg config.GrammarConfig) (service.RemoteChecker, error) {
	if cfg.RemoteProvider == config.ProviderNone {
		return nil, nil
	}
	gen, err := grammar.NewGenerator(ctx, grammar.GeneratorConfig{
		Provider:      cfg.RemoteProvider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		GeminiBaseURL: cfg.GeminiBaseURL,
		OllamaURL:     cfg.OllamaURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		return nil, err
	}
	return grammar.NewRemoteEngine(gen,
		grammar.WithTimeout(cfg.RemoteTimeout),
		grammar.WithRetries(uint64(cfg.RemoteRetries)),
	), nil
}
