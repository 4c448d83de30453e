package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the collector access to live server state.
type LiveStats interface {
	QueueDepth() int
	SSESubscriberCount() int
}

// DBStatser exposes database/sql pool statistics. *sql.DB satisfies it.
type DBStatser interface {
	Stats() sql.DBStats
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	db    DBStatser
	stats LiveStats

	// Descriptors for scrape-time gauges.
	queueDepth     *prometheus.Desc
	sseSubscribers *prometheus.Desc
	dbOpenConns    *prometheus.Desc
	dbInUseConns   *prometheus.Desc
	dbIdleConns    *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// db may be nil (metrics will report 0). stats may be nil if no pool or
// event bus is running.
func NewCollector(db DBStatser, stats LiveStats) *Collector {
	return &Collector{
		db:    db,
		stats: stats,
		queueDepth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "transcription_queue_depth"),
			"Jobs currently waiting in the transcription queue.",
			nil, nil,
		),
		sseSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sse_subscribers_active"),
			"Current number of SSE subscribers.",
			nil, nil,
		),
		dbOpenConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "open_conns"),
			"Open store connections.",
			nil, nil,
		),
		dbInUseConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "in_use_conns"),
			"Store connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Idle store connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.sseSubscribers
	ch <- c.dbOpenConns
	ch <- c.dbInUseConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	// Live server state
	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(c.stats.QueueDepth()))
		ch <- prometheus.MustNewConstMetric(c.sseSubscribers, prometheus.GaugeValue, float64(c.stats.SSESubscriberCount()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.sseSubscribers, prometheus.GaugeValue, 0)
	}

	// Store pool stats
	if c.db != nil {
		stat := c.db.Stats()
		ch <- prometheus.MustNewConstMetric(c.dbOpenConns, prometheus.GaugeValue, float64(stat.OpenConnections))
		ch <- prometheus.MustNewConstMetric(c.dbInUseConns, prometheus.GaugeValue, float64(stat.InUse))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.Idle))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbOpenConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbInUseConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
