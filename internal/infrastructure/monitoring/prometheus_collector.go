package monitoring

import (
	"time"

	"pairlink/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	connectionsTotal    *prometheus.CounterVec
	disconnectionsTotal *prometheus.CounterVec
	messagesTotal       *prometheus.CounterVec
	relaysTotal         *prometheus.CounterVec
	pairingsTotal       *prometheus.CounterVec
	sendDroppedTotal    prometheus.Counter

	// Histograms
	connectionDuration prometheus.Histogram

	// Registry gauges
	peersConnected prometheus.Gauge
	roomsActive    *prometheus.GaugeVec
	pairKeysActive prometheus.Gauge
}

// NewPrometheusCollector registers the collector's metrics with reg.
// A nil reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_connections_total",
			Help: "Total number of websocket peers registered",
		}, []string{"identity"}),

		disconnectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_disconnections_total",
			Help: "Total number of peer teardowns by reason",
		}, []string{"reason"}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_messages_total",
			Help: "Inbound signaling messages by type",
		}, []string{"type"}),

		relaysTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_relays_total",
			Help: "Relayed messages by outcome",
		}, []string{"outcome"}),

		pairingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pairlink_pairings_total",
			Help: "Pairing operations by outcome",
		}, []string{"outcome"}),

		sendDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pairlink_send_dropped_total",
			Help: "Outbound frames dropped because a send queue was full",
		}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairlink_connection_duration_seconds",
			Help:    "Lifetime of peer connections",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		peersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_peers_connected",
			Help: "Number of connected peers",
		}),

		roomsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pairlink_rooms_active",
			Help: "Number of non-empty rooms by type",
		}, []string{"room_type"}),

		pairKeysActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pairlink_pair_keys_active",
			Help: "Number of outstanding pair keys",
		}),
	}
}

func (p *PrometheusCollector) RecordPeerConnected(reused bool) {
	identity := "new"
	if reused {
		identity = "reused"
	}
	p.connectionsTotal.WithLabelValues(identity).Inc()
}

func (p *PrometheusCollector) RecordPeerDisconnected(reason string, lifetime time.Duration) {
	p.disconnectionsTotal.WithLabelValues(reason).Inc()
	p.connectionDuration.Observe(lifetime.Seconds())
}

func (p *PrometheusCollector) RecordMessage(msgType string) {
	p.messagesTotal.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) RecordRelay(outcome string) {
	p.relaysTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordPairing(outcome string) {
	p.pairingsTotal.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordSendDropped() {
	p.sendDroppedTotal.Inc()
}

func (p *PrometheusCollector) UpdateRegistry(stats domain.RegistryStats) {
	p.peersConnected.Set(float64(stats.Peers))
	p.roomsActive.WithLabelValues(string(domain.RoomTypeIP)).Set(float64(stats.IPRooms))
	p.roomsActive.WithLabelValues(string(domain.RoomTypeSecret)).Set(float64(stats.SecretRooms))
	p.pairKeysActive.Set(float64(stats.PairKeys))
}
