package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pulmoscan-api/internal/classify"
	"github.com/Brownie44l1/pulmoscan-api/internal/config"
	"github.com/Brownie44l1/pulmoscan-api/internal/handlers"
	"github.com/Brownie44l1/pulmoscan-api/internal/logging"
	"github.com/Brownie44l1/pulmoscan-api/internal/model"
)

func main() {
	var args config.Args
	arg.MustParse(&args)

	cfg, err := args.Resolve()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// serve runs until a signal arrives or the listener fails. The model is
// closed before it returns either way.
func serve(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("loading model", zap.String("backend", cfg.Model.Backend), zap.String("path", cfg.Model.Path))
	backend, err := buildBackend(cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("model close failed", zap.Error(err))
		}
	}()

	classifier, err := classify.NewFileClassifier(backend, classify.Config{
		TempDir: cfg.Upload.TempDir,
		Timeout: cfg.Model.PredictTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	handler := handlers.NewHandler(backend, classifier, handlers.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	router := handlers.NewRouter(handler, handlers.NewHealthChecks(backend, classifier.TempDir()), logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("backend", backend.Name()),
			zap.String("temp_dir", classifier.TempDir()),
		)
		logger.Info("upload test", zap.String("curl",
			fmt.Sprintf(`curl -X POST -F "file=@xray.jpg" http://localhost:%d/predict/`, cfg.Server.Port)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)
	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case sig := <-signals:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	return nil
}

func buildBackend(cfg config.ModelConfig) (model.Backend, error) {
	switch cfg.Backend {
	case config.BackendONNX:
		b, err := model.NewONNXBackend(model.ONNXConfig{
			ModelPath:    cfg.Path,
			MetadataPath: cfg.MetadataPath,
			LibraryPath:  cfg.LibraryPath,
		})
		if err != nil {
			return nil, err
		}
		zap.L().Info("model classes", zap.Strings("classes", b.Metadata.Classes))
		return b, nil
	case config.BackendUltralytics:
		return model.NewBridgeBackend(cfg.Path, cfg.BridgeCommand)
	default:
		return nil, fmt.Errorf("unsupported model backend %q", cfg.Backend)
	}
}
