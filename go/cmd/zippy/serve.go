package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/zippy/go/clients"
	"github.com/mcdev12/zippy/go/internal/analytics"
	"github.com/mcdev12/zippy/go/internal/api"
	"github.com/mcdev12/zippy/go/internal/auth"
	"github.com/mcdev12/zippy/go/internal/config"
	"github.com/mcdev12/zippy/go/internal/history"
	"github.com/mcdev12/zippy/go/internal/preferences"
	"github.com/mcdev12/zippy/go/internal/race/gateway"
	"github.com/mcdev12/zippy/go/internal/race/registry"
	"github.com/mcdev12/zippy/go/internal/textgen"
	"github.com/mcdev12/zippy/go/internal/usage"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the race gateway and the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	clock := clockwork.NewRealClock()

	database, err := setupDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	pool, err := preferences.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// daily texts and the solo gate degrade, races still work
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}

	// left as nil interfaces when sign in is off
	var authenticator gateway.Authenticator
	var apiVerifier api.Verifier
	if cfg.AuthEnabled() {
		verifier := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		authenticator = verifier
		apiVerifier = verifier
	} else {
		log.Warn().Msg("SUPABASE_URL not set, every racer is a guest")
	}

	publisher, err := setupPublisher(ctx, cfg.NATSURL)
	if err != nil {
		return err
	}
	defer publisher.Close()

	worker := analytics.NewWorker(publisher, analytics.DefaultConfig(), clock)
	if err := worker.Start(ctx); err != nil {
		return err
	}
	defer worker.Stop()

	gatewayService := gateway.NewService(gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		Policy:           cfg.RoomPolicy,
	}, authenticator, registry.WithObserver(analytics.NewObserver(worker, clock)))

	texts, coach := setupTextgen(cfg)
	prefsRepo := preferences.NewRepository(pool)
	saver := preferences.NewSaver(prefsRepo, clock, cfg.PreferencesDebounce)

	services := api.Services{
		Text:        api.NewTextService(texts, textgen.NewDailyText(rdb, texts, clock)),
		Coach:       api.NewCoachService(coach),
		Preferences: api.NewPreferencesService(prefsRepo, saver, apiVerifier),
		Results:     api.NewResultsService(history.NewApp(history.NewRepository(database)), apiVerifier, clock),
		Usage:       api.NewUsageService(usage.NewGate(rdb, cfg.UsageSalt, cfg.UsageTTL), cfg.TrustedProxies...),
	}

	router := mux.NewRouter()
	gatewayService.RegisterRoutes(router)
	services.RegisterRoutes(router)
	setupHealthCheck(router, gatewayService, worker)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(c.Handler(router), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Strs("services", services.Names()).
			Str("policy", cfg.RoomPolicy.String()).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	<-gatewayDone
	saver.Flush(shutdownCtx)

	log.Info().Msg("zippy shutdown complete")
	return nil
}

func setupPublisher(ctx context.Context, natsURL string) (analytics.Publisher, error) {
	if natsURL == "" {
		log.Info().Msg("NATS_URL not set, room events are only logged")
		return analytics.Noop{}, nil
	}
	jsCfg := analytics.DefaultJetStreamConfig()
	jsCfg.URL = natsURL
	return analytics.NewJetStreamPublisher(ctx, jsCfg)
}

// setupTextgen prefers Gemini and falls back to GitHub Models.
func setupTextgen(cfg config.Config) (*textgen.Fallback, *textgen.Coach) {
	var providers []textgen.Generator
	var models []textgen.Model
	if cfg.GeminiAPIKey != "" {
		m := clients.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
		providers = append(providers, textgen.Provider{Name: "gemini", Model: m})
		models = append(models, m)
	}
	if cfg.GitHubToken != "" {
		m := clients.NewGitHubModelsClient(cfg.GitHubToken, cfg.GitHubModel)
		providers = append(providers, textgen.Provider{Name: "github", Model: m})
		models = append(models, m)
	}
	if len(providers) == 0 {
		log.Warn().Msg("no text provider configured, text generation will fail")
	}
	return textgen.NewFallback(providers...), textgen.NewCoach(models...)
}

func setupHealthCheck(router *mux.Router, gw *gateway.Service, worker *analytics.Worker) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	}).Methods(http.MethodGet)

	router.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		info := struct {
			Service   string                  `json:"service"`
			Stats     gateway.ConnectionStats `json:"stats"`
			Analytics analytics.WorkerStats   `json:"analytics"`
		}{
			Service:   "zippy",
			Stats:     gw.GetStats(),
			Analytics: worker.Stats(),
		}
		if err := json.NewEncoder(w).Encode(info); err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	}).Methods(http.MethodGet)
}
