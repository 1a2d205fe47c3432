package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the send protocol",
	})
	ConversationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_conversations_created_total",
		Help: "Conversations created lazily on first send",
	})
)

func Init() {
	prometheus.MustRegister(Connections, MessagesSent, ConversationsCreated)
}
