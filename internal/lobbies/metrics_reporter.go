package lobbies

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/pkg/metrics"
)

// MetricsReporter 根据大厅事件维护 nohub_lobbies_total。
type MetricsReporter struct {
	lobbies *prometheus.GaugeVec
}

func NewMetricsReporter(m *metrics.Metrics) *MetricsReporter {
	return &MetricsReporter{lobbies: m.LobbiesTotal}
}

// Attach 订阅大厅的创建、删除与修改事件。
func (r *MetricsReporter) Attach(bus *events.Bus) {
	events.On(bus, events.LobbyCreate, func(lobby model.Lobby) error {
		r.gauge(lobby).Inc()
		return nil
	})
	events.On(bus, events.LobbyDelete, func(lobby model.Lobby) error {
		r.gauge(lobby).Dec()
		return nil
	})
	events.On(bus, events.LobbyChange, func(change model.LobbyChange) error {
		r.gauge(change.From).Dec()
		r.gauge(change.To).Inc()
		return nil
	})
}

func (r *MetricsReporter) gauge(lobby model.Lobby) prometheus.Gauge {
	return r.lobbies.WithLabelValues(metrics.LobbyLabels(lobby.IsLocked, lobby.IsVisible))
}
