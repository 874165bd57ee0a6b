package ws

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// engineCollector exports engine state as Prometheus metrics, reading the
// counter snapshot on scrape rather than instrumenting the write path.
type engineCollector struct {
	eng         *engine.Engine
	broadcaster *Broadcaster

	activeSession    *prometheus.Desc
	closedSessions   *prometheus.Desc
	cumulativeOffset *prometheus.Desc
	samplesIngested  *prometheus.Desc
	samplesDropped   *prometheus.Desc
	wsClients        *prometheus.Desc
}

func newEngineCollector(eng *engine.Engine, broadcaster *Broadcaster) prometheus.Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("apples2oranges", "engine", name),
			help,
			labels,
			nil,
		)
	}

	return &engineCollector{
		eng:              eng,
		broadcaster:      broadcaster,
		activeSession:    desc("active_session", "Whether the model currently has an open generation turn.", "model"),
		closedSessions:   desc("closed_sessions", "Number of sealed generation turns for the model.", "model"),
		cumulativeOffset: desc("cumulative_offset_seconds", "Accumulated generation time across closed turns.", "model"),
		samplesIngested:  desc("samples_ingested_total", "Telemetry samples attributed to a session.", "model"),
		samplesDropped:   desc("samples_dropped_total", "Telemetry samples dropped for lack of an active session.", "model"),
		wsClients:        desc("ws_clients", "Connected chart/UI WebSocket clients."),
	}
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSession
	ch <- c.closedSessions
	ch <- c.cumulativeOffset
	ch <- c.samplesIngested
	ch <- c.samplesDropped
	ch <- c.wsClients
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range telemetry.Models {
		stats := c.eng.Stats(m)
		tag := m.String()

		active := 0.0
		if stats.Active {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.activeSession, prometheus.GaugeValue, active, tag)
		ch <- prometheus.MustNewConstMetric(c.closedSessions, prometheus.GaugeValue, float64(stats.ClosedSessions), tag)
		ch <- prometheus.MustNewConstMetric(c.cumulativeOffset, prometheus.GaugeValue, stats.CumulativeOffset, tag)
		ch <- prometheus.MustNewConstMetric(c.samplesIngested, prometheus.CounterValue, float64(stats.SamplesIngested), tag)
		ch <- prometheus.MustNewConstMetric(c.samplesDropped, prometheus.CounterValue, float64(stats.SamplesDroppedNoTurn), tag)
	}

	if c.broadcaster != nil {
		ch <- prometheus.MustNewConstMetric(c.wsClients, prometheus.GaugeValue, float64(c.broadcaster.ClientCount()))
	}
}
