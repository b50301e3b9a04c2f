package tts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentvoice_tts_synthesis_total",
		Help: "Total TTS synthesis requests by backend and status",
	}, []string{"backend", "status"})

	ttsSynthesisSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentvoice_tts_synthesis_seconds",
		Help:    "Time spent synthesizing one utterance",
		Buckets: prometheus.ExponentialBuckets(0.05, 1.6, 12),
	}, []string{"backend"})

	ttsPlaybackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentvoice_tts_playback_total",
		Help: "Local speaker playbacks by status",
	}, []string{"status"})
)

func observe(backend string, start time.Time, err error) {
	ttsSynthesisSeconds.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	ttsSynthesisTotal.WithLabelValues(backend, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
