package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Brownie44l1/pulmoscan-api/internal/classify"
	"github.com/Brownie44l1/pulmoscan-api/internal/model"
)

const (
	uploadField           = "file"
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 10 << 20
)

type Config struct {
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type Handler struct {
	model          model.Backend
	classifier     classify.Classifier
	maxUploadBytes int64
	logger         *zap.Logger
}

type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func NewHandler(backend model.Backend, classifier classify.Classifier, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{
		model:          backend,
		classifier:     classifier,
		maxUploadBytes: maxBytes,
		logger:         logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "online",
		Message:     "Server is running",
		ModelLoaded: h.model != nil,
	})
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "Upload too large"})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "Expected a multipart/form-data upload"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "Field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read upload", zap.String("filename", header.Filename), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal Server Error"})
		return
	}

	log := h.logger.With(zap.String("request_id", RequestID(r.Context())))
	log.Info("received file", zap.String("filename", header.Filename), zap.Int("bytes", len(data)))

	prediction, err := h.classifier.Classify(r.Context(), classify.Upload{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		log.Error("prediction failed", zap.String("filename", header.Filename), zap.Error(err))
		predictionErrors.Inc()
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal Server Error"})
		return
	}

	predictionsTotal.WithLabelValues(prediction.PredictedClass).Inc()
	predictionConfidence.Observe(prediction.Confidence)
	log.Info("prediction",
		zap.String("predicted_class", prediction.PredictedClass),
		zap.Int("class_id", prediction.ClassID),
		zap.Float64("confidence", prediction.Confidence),
	)
	writeJSON(w, http.StatusOK, prediction)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
