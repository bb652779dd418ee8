// Package metrics exposes Prometheus collectors for conversions, capture and encoders.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_conversions_total",
			Help: "Total number of conversion runs by final path, format and outcome",
		},
		[]string{"path", "format", "outcome"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidloop_conversion_duration_seconds",
			Help:    "Conversion run duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"path", "format"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_path_fallbacks_total",
			Help: "Total number of path demotions",
		},
		[]string{"from", "to", "phase"},
	)

	ConversionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidloop_conversions_in_flight",
			Help: "Number of conversions currently running",
		},
	)
)

// Capture metrics
var (
	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_capture_frames_total",
			Help: "Total number of frames captured by capture mode",
		},
		[]string{"mode"},
	)

	CaptureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_capture_failures_total",
			Help: "Total number of failed capture adapter attempts",
		},
		[]string{"mode"},
	)

	SeekDownshiftsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidloop_seek_downshifts_total",
			Help: "Total number of seek capture frame rate downshifts",
		},
	)
)

// Encoder metrics
var (
	EncoderAvailabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_encoder_availability_checks_total",
			Help: "Total number of uncached encoder availability probes",
		},
		[]string{"encoder", "available"},
	)

	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidloop_encode_duration_seconds",
			Help:    "Encode call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"encoder"},
	)

	EncodeTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidloop_encode_timeouts_total",
			Help: "Total number of encode calls killed by the hard deadline",
		},
		[]string{"encoder"},
	)

	WorkerRespawnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidloop_worker_respawns_total",
			Help: "Total number of workers terminated and replaced after a timeout",
		},
	)
)

// History metrics
var (
	HistoryRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidloop_history_records",
			Help: "Number of records in the strategy history ring buffer",
		},
	)
)
