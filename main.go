package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	metrics "github.com/armon/go-metrics"
	log "github.com/hashicorp/go-hclog"
	"github.com/rs/cors"

	"rng-drbg/internal/config"
	"rng-drbg/internal/drbg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}
	logger := log.New(&log.LoggerOptions{
		Name:  "rng-drbg",
		Level: cfg.LogLevel,
	})

	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	mcfg := metrics.DefaultConfig("rng-drbg")
	mcfg.EnableHostname = false
	if _, err := metrics.NewGlobal(mcfg, sink); err != nil {
		logger.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	if err := drbg.SelfTest(); err != nil {
		logger.Error("known-answer self test failed, refusing to start", "error", err)
		os.Exit(1)
	}

	s, err := newServer(cfg, logger, sink)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("rng-drbg server listening", "addr", srv.Addr, "drbg", cfg.DRBGString, "entropy", cfg.EntropyMode)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// handler wraps the routes with CORS.
func (s *server) handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Tx-Id"},
		AllowCredentials: false,
	})
	return c.Handler(s.routes())
}
