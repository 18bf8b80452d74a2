package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/zhouzirui/serene-care/backend/internal/config"
	"github.com/zhouzirui/serene-care/backend/internal/handler"
	"github.com/zhouzirui/serene-care/backend/internal/metrics"
	"github.com/zhouzirui/serene-care/backend/internal/model/persona"
	"github.com/zhouzirui/serene-care/backend/internal/service/ai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Infof("no .env file loaded (%v), continuing with system environment variables only", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	assistant, ok := personaStore.Default()
	if !ok {
		log.Fatal("no assistant persona configured")
	}

	provider, err := ai.NewProvider(ctx, cfg.Provider)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize upstream provider")
	}
	if !cfg.Provider.HasCredential() {
		log.Warnf("%s API key not configured, completion requests will be rejected with 400", cfg.Provider.DisplayName())
	}

	m := metrics.New()
	aiSvc := ai.NewService(provider, assistant.Directive, m)
	log.WithFields(log.Fields{
		"provider": aiSvc.ProviderName(),
		"model":    cfg.Provider.Model,
	}).Info("completion service initialized")

	router := handler.NewRouter(personaStore, aiSvc, m, cfg.RateLimit)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Infof("Serene Care backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
