package genai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "markwise",
		Subsystem: "genai",
		Name:      "model_call_duration_seconds",
		Help:      "Duration of generative model calls",
	}, []string{"provider", "model"})

	modelCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "markwise",
		Subsystem: "genai",
		Name:      "model_call_failures_total",
		Help:      "Number of failed generative model calls",
	}, []string{"provider", "model"})
)
