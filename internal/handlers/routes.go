package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pulmoscan-api/internal/model"
)

const maxGoroutines = 10000

// NewHealthChecks reports ready once a model is loaded and uploads can be
// written to tempDir.
func NewHealthChecks(backend model.Backend, tempDir string) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	health.AddReadinessCheck("model", func() error {
		if backend == nil {
			return errors.New("model not loaded")
		}
		return nil
	})
	health.AddReadinessCheck("temp-dir", func() error {
		f, err := os.CreateTemp(tempDir, "ready_*")
		if err != nil {
			return fmt.Errorf("temp dir not writable: %w", err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	})
	return health
}

// NewRouter wires the API routes and the middleware chain. CORS sits outside
// the router so preflight requests never hit method matching.
func NewRouter(h *Handler, health healthcheck.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(prometheusMiddleware)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/predict/", h.Predict).Methods(http.MethodPost)
	router.HandleFunc("/predict", h.Predict).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if health != nil {
		router.HandleFunc("/live", health.LiveEndpoint).Methods(http.MethodGet)
		router.HandleFunc("/ready", health.ReadyEndpoint).Methods(http.MethodGet)
	}

	return Chain(router,
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORS,
	)
}

// Chain wraps h so the first middleware runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
