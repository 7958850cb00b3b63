package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_stream_requests_total",
			Help: "Streaming requests by transport",
		},
		[]string{"transport"}, // "chat" or "voice"
	)

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_stream_events_total",
			Help: "Provider stream events processed",
		},
		[]string{"kind"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_tool_calls_total",
			Help: "Tool call resolutions",
		},
		[]string{"action", "outcome"},
	)

	MessagesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_saved_total",
			Help: "Conversation log inserts",
		},
		[]string{"type", "outcome"},
	)
)
