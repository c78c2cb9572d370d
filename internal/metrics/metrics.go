package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StageReference = "reference"
	StageClip      = "clip"
	StagePlayback  = "playback"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_sessions_active",
		Help: "Dictation sessions currently subscribed to a recognizer",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_sessions_total",
		Help: "Dictation sessions started",
	})

	SessionEnds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_session_ends_total",
		Help: "Dictation session terminations by outcome",
	}, []string{"outcome"})

	Utterances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_utterances_total",
		Help: "Final recognition results forwarded to the voice service",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_stage_duration_seconds",
		Help:    "Per-stage latency of the voice pipeline",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_errors_total",
		Help: "Voice pipeline failures by stage",
	}, []string{"stage", "error_type"})

	Playbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_playbacks_total",
		Help: "Clips handed to the playback sink",
	})
)
