// Package classify bridges uploaded image bytes to a model that can only read
// images from disk.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pulmoscan-api/internal/model"
)

const defaultExt = ".jpg"

var ErrUnknownClass = errors.New("class id outside label table")

// Upload is one file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Prediction is the top-1 class returned to clients.
type Prediction struct {
	PredictedClass string  `json:"predicted_class"`
	ClassID        int     `json:"class_id"`
	Confidence     float64 `json:"confidence"`
}

type Classifier interface {
	Classify(ctx context.Context, upload Upload) (Prediction, error)
}

type Config struct {
	// TempDir holds the per-request image files. Empty means os.TempDir().
	TempDir string
	// Timeout bounds one inference call. Zero disables it. The ONNX backend
	// honours it only while waiting for its session; a Run already started
	// completes. The bridge backend kills its process instead.
	Timeout time.Duration
	Logger  *zap.Logger
}

// FileClassifier writes each upload to its own temp file, runs the backend on
// that path and removes the file before returning.
type FileClassifier struct {
	backend model.Backend
	tempDir string
	timeout time.Duration
	logger  *zap.Logger
}

func NewFileClassifier(backend model.Backend, cfg Config) (*FileClassifier, error) {
	if backend == nil {
		return nil, errors.New("model backend is nil")
	}
	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %q: %w", dir, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileClassifier{
		backend: backend,
		tempDir: dir,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (c *FileClassifier) TempDir() string {
	return c.tempDir
}

func (c *FileClassifier) Classify(ctx context.Context, upload Upload) (Prediction, error) {
	path := filepath.Join(c.tempDir, tempName(upload.Filename))
	if err := os.WriteFile(path, upload.Data, 0o600); err != nil {
		return Prediction{}, fmt.Errorf("failed to write upload: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to remove temp file", zap.String("path", path), zap.Error(err))
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.backend.PredictFile(ctx, path)
	if err != nil {
		return Prediction{}, fmt.Errorf("%s predict failed: %w", c.backend.Name(), err)
	}
	if result.ClassID < 0 || (result.NumClasses > 0 && result.ClassID >= result.NumClasses) {
		return Prediction{}, fmt.Errorf("%w: %d of %d", ErrUnknownClass, result.ClassID, result.NumClasses)
	}
	c.logger.Debug("inference done",
		zap.String("backend", c.backend.Name()),
		zap.String("label", result.Label),
		zap.Int("class_id", result.ClassID),
		zap.Float32("confidence", result.Confidence),
		zap.Duration("took", time.Since(start)),
	)

	return Prediction{
		PredictedClass: result.Label,
		ClassID:        result.ClassID,
		Confidence:     Round4(float64(result.Confidence)),
	}, nil
}

// imageExts are the suffixes kept from upload names. Backends pick a decoder
// from the suffix, so anything else is saved as .jpg.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
	".gif":  true,
}

func tempName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		ext = defaultExt
	}
	return "temp_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
