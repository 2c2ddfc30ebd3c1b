package services

import (
	"maps"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
)

// MetricsService keeps in-process counters for the stats endpoint.
type MetricsService struct {
	mu sync.RWMutex

	connected     int64
	reused        int64
	disconnected  map[string]int64
	totalLifetime time.Duration

	messages    map[string]int64
	relays      map[string]int64
	pairings    map[string]int64
	sendDropped int64

	registry domain.RegistryStats
}

type MetricsSnapshot struct {
	PeersConnected      int64            `json:"peers_connected"`
	PeersReused         int64            `json:"peers_reused"`
	PeersDisconnected   map[string]int64 `json:"peers_disconnected"`
	AverageLifetimeSecs float64          `json:"average_lifetime_seconds"`
	Messages            map[string]int64 `json:"messages"`
	Relays              map[string]int64 `json:"relays"`
	Pairings            map[string]int64 `json:"pairings"`
	SendDropped         int64            `json:"send_dropped"`
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		disconnected: make(map[string]int64),
		messages:     make(map[string]int64),
		relays:       make(map[string]int64),
		pairings:     make(map[string]int64),
	}
}

func (m *MetricsService) RecordPeerConnected(reused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected++
	if reused {
		m.reused++
	}
}

func (m *MetricsService) RecordPeerDisconnected(reason string, lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected[reason]++
	m.totalLifetime += lifetime
}

func (m *MetricsService) RecordMessage(msgType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msgType]++
}

func (m *MetricsService) RecordRelay(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relays[outcome]++
}

func (m *MetricsService) RecordPairing(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairings[outcome]++
}

func (m *MetricsService) RecordSendDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDropped++
}

func (m *MetricsService) UpdateRegistry(stats domain.RegistryStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = stats
}

func (m *MetricsService) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, n := range m.disconnected {
		total += n
	}

	var avg float64
	if total > 0 {
		avg = m.totalLifetime.Seconds() / float64(total)
	}

	return MetricsSnapshot{
		PeersConnected:      m.connected,
		PeersReused:         m.reused,
		PeersDisconnected:   maps.Clone(m.disconnected),
		AverageLifetimeSecs: avg,
		Messages:            maps.Clone(m.messages),
		Relays:              maps.Clone(m.relays),
		Pairings:            maps.Clone(m.pairings),
		SendDropped:         m.sendDropped,
	}
}

// metricsFanout forwards every record to each wrapped recorder.
type metricsFanout []ports.MetricsRecorder

// NewMetricsFanout combines recorders, skipping nil ones. With no
// recorders the result discards everything.
func NewMetricsFanout(recorders ...ports.MetricsRecorder) ports.MetricsRecorder {
	out := make(metricsFanout, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (f metricsFanout) RecordPeerConnected(reused bool) {
	for _, r := range f {
		r.RecordPeerConnected(reused)
	}
}

func (f metricsFanout) RecordPeerDisconnected(reason string, lifetime time.Duration) {
	for _, r := range f {
		r.RecordPeerDisconnected(reason, lifetime)
	}
}

func (f metricsFanout) RecordMessage(msgType string) {
	for _, r := range f {
		r.RecordMessage(msgType)
	}
}

func (f metricsFanout) RecordRelay(outcome string) {
	for _, r := range f {
		r.RecordRelay(outcome)
	}
}

func (f metricsFanout) RecordPairing(outcome string) {
	for _, r := range f {
		r.RecordPairing(outcome)
	}
}

func (f metricsFanout) RecordSendDropped() {
	for _, r := range f {
		r.RecordSendDropped()
	}
}

func (f metricsFanout) UpdateRegistry(stats domain.RegistryStats) {
	for _, r := range f {
		r.UpdateRegistry(stats)
	}
}

func orNop(m ports.MetricsRecorder) ports.MetricsRecorder {
	if m == nil {
		return NewMetricsFanout()
	}
	return m
}
