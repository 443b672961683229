package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections         = promauto.NewGauge(prometheus.GaugeOpts{Name: "sshtarpit_active_connections", Help: "Peers currently held in the tarpit"})
	ConnectionsTotal          = promauto.NewCounter(prometheus.CounterOpts{Name: "sshtarpit_connections_total", Help: "Accepted connections"})
	LinesSentTotal            = promauto.NewCounter(prometheus.CounterOpts{Name: "sshtarpit_lines_sent_total", Help: "Decoy lines written to peers"})
	BytesSentTotal            = promauto.NewCounter(prometheus.CounterOpts{Name: "sshtarpit_bytes_sent_total", Help: "Decoy bytes written to peers"})
	BufferRefreshTotal        = promauto.NewCounter(prometheus.CounterOpts{Name: "sshtarpit_buffer_refresh_total", Help: "Decoy buffer refreshes"})
	ErrorsTotal               = promauto.NewCounterVec(prometheus.CounterOpts{Name: "sshtarpit_errors_total", Help: "Errors by type"}, []string{"type"})
	ConnectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "sshtarpit_connection_duration_seconds", Help: "Time each peer spent in the tarpit", Buckets: prometheus.ExponentialBuckets(1, 2, 16)})
)
