package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SegmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifsmith_segments_created_total",
		Help: "Total number of segments created in this session",
	})

	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifsmith_extractions_total",
		Help: "Total number of frame extractions, by outcome",
	}, []string{"outcome"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifsmith_frames_sampled_total",
		Help: "Total number of frames sampled across all extractions",
	})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifsmith_generations_total",
		Help: "Total number of GIF generations, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gifsmith_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	ActiveGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gifsmith_active_generations",
		Help: "Number of encode+caption joins currently in flight",
	})

	StaleResultsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifsmith_stale_results_discarded_total",
		Help: "Async results dropped because their generation token was superseded",
	})
)
