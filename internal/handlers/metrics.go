package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var responseStatus = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pulmoscan_http_responses_total",
		Help: "HTTP responses by route and status.",
	},
	[]string{"path", "status"},
)

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pulmoscan_http_response_time_seconds",
	Help:    "Duration of HTTP requests.",
	Buckets: prometheus.DefBuckets,
}, []string{"path"})

var predictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pulmoscan_predictions_total",
		Help: "Successful predictions by top-1 class.",
	},
	[]string{"class"},
)

var predictionErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pulmoscan_prediction_errors_total",
	Help: "Predictions that failed in the model backend.",
})

var predictionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pulmoscan_prediction_confidence",
	Help:    "Top-1 confidence of successful predictions.",
	Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
})
