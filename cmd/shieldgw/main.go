package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aishield "github.com/ferro-labs/ai-shield"
	"github.com/ferro-labs/ai-shield/internal/admin"
	"github.com/ferro-labs/ai-shield/internal/logging"
	"github.com/ferro-labs/ai-shield/internal/requestlog"
	"github.com/ferro-labs/ai-shield/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("SHIELD_CONFIG"), "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := aishield.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shieldgw: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logging.Logger

	gw, err := aishield.New(*cfg)
	if err != nil {
		log.Error("gateway startup failed", "error", err.Error())
		os.Exit(1)
	}
	defer gw.Close()

	keyStore := admin.NewKeyStore()
	r := newRouter(gw, keyStore)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err.Error())
		}
	}()

	log.Info("listening",
		"version", version.Short(),
		"addr", addr,
		"upstream_mode", cfg.Upstreams.Mode,
		"cache_storage", cfg.Cache.Storage,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

// newRouter builds the HTTP router: health and metrics, the public API under
// /v1 behind the global limiter, and the admin surface under /admin.
func newRouter(gw *aishield.Gateway, keyStore admin.Store) http.Handler {
	cfg := gw.Config()
	api := &apiHandlers{gw: gw}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.CORSAllowedOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.Short()})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(gw.Limiter(aishield.ClassGlobal).Middleware(aishield.ClassGlobal))

		r.Get("/speech/voices", api.voices)
		r.Group(func(r chi.Router) {
			r.Use(gw.Limiter(aishield.ClassSpeech).Middleware(aishield.ClassSpeech))
			r.Post("/speech/synthesize", api.synthesize)
		})
		r.Group(func(r chi.Router) {
			r.Use(gw.Limiter(aishield.ClassText).Middleware(aishield.ClassText))
			r.Post("/text/generate", api.generate)
		})
		r.Group(func(r chi.Router) {
			r.Use(gw.Limiter(aishield.ClassVoiceClone).Middleware(aishield.ClassVoiceClone))
			r.Post("/voice-clone/train", api.cloneVoice)
		})
	})

	adminHandlers := &admin.Handlers{
		Keys:     keyStore,
		Cache:    gw.Store(),
		Stats:    gw.Stats(),
		Breakers: gw.Breakers(),
	}
	// The SQL-backed request log also serves the admin read and purge
	// endpoints; the noop writer serves neither.
	if sw, ok := gw.RequestLog().(*requestlog.SQLWriter); ok {
		adminHandlers.Logs = sw
		adminHandlers.LogAdmin = sw
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.AuthMiddleware(keyStore))
		r.Mount("/", adminHandlers.Routes())
	})

	return r
}
