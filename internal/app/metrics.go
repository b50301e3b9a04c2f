package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRoomsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentvoice_rooms_live",
		Help: "Rooms currently held in memory",
	})

	metricClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentvoice_clients_connected",
		Help: "WebSocket clients attached to a room",
	})

	metricPollersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentvoice_pollers_running",
		Help: "Output pollers currently running",
	})

	metricOutputBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentvoice_output_broadcasts_total",
		Help: "Output snapshots that changed and were broadcast",
	})

	metricPollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentvoice_poll_errors_total",
		Help: "Session backend errors swallowed by pollers",
	})

	metricMicLock = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentvoice_mic_lock_total",
		Help: "Mic lock operations by outcome",
	}, []string{"op", "result"})

	metricRouting = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentvoice_tts_routing_total",
		Help: "TTS routing decisions by attempted and final path",
	}, []string{"attempted", "path"})

	metricKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentvoice_clients_kicked_total",
		Help: "Clients detached because their send queue was full",
	})
)

func result(ok bool) string {
	if ok {
		return "granted"
	}
	return "denied"
}
