// Package prometheus provides the Prometheus-backed implementations of
// the metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onlinetalk/onlinetalk/pkg/metrics"
)

// chatMetrics is the Prometheus implementation of metrics.ChatMetrics.
type chatMetrics struct {
	packets             *prometheus.CounterVec
	packetDuration      *prometheus.HistogramVec
	deliveries          *prometheus.CounterVec
	transferBytes       *prometheus.CounterVec
	activeConnections   prometheus.Gauge
	onlineUsers         prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsForced   prometheus.Counter
	writeQueueOverflows prometheus.Counter
}

// NewChatMetrics creates a new Prometheus-backed ChatMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewChatMetrics() metrics.ChatMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &chatMetrics{
		packets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "onlinetalk_packets_total",
				Help: "Total number of inbound packets by type and error code",
			},
			[]string{"type", "error_code"}, // error_code "" on success
		),
		packetDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "onlinetalk_packet_duration_milliseconds",
				Help: "Duration of packet handling in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - registry lookups
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms - single store write
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms - bcrypt, hashing
					500,  // 500ms
					1000, // 1s
				},
			},
			[]string{"type"},
		),
		deliveries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "onlinetalk_deliveries_total",
				Help: "Total number of server-initiated deliveries by kind",
			},
			[]string{"kind"}, // "message_live", "message_spool", "file_notice_live", "file_notice_spool"
		),
		transferBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "onlinetalk_transfer_bytes_total",
				Help: "Total file chunk bytes transferred by direction",
			},
			[]string{"direction"}, // "upload", "download"
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "onlinetalk_active_connections",
				Help: "Current number of open client connections",
			},
		),
		onlineUsers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "onlinetalk_online_users",
				Help: "Current number of logged-in users",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "onlinetalk_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "onlinetalk_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
		connectionsForced: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "onlinetalk_connections_force_closed_total",
				Help: "Total number of connections forcibly closed after shutdown timeout",
			},
		),
		writeQueueOverflows: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "onlinetalk_write_queue_overflows_total",
				Help: "Total number of connections dropped for exceeding the write queue cap",
			},
		),
	}
}

func (m *chatMetrics) RecordPacket(packetType string, duration time.Duration, errorCode string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(packetType, errorCode).Inc()
	m.packetDuration.WithLabelValues(packetType).Observe(duration.Seconds() * 1000)
}

func (m *chatMetrics) RecordDelivery(kind string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind).Inc()
}

func (m *chatMetrics) RecordUploadBytes(bytes uint64) {
	if m == nil {
		return
	}
	m.transferBytes.WithLabelValues("upload").Add(float64(bytes))
}

func (m *chatMetrics) RecordDownloadBytes(bytes uint64) {
	if m == nil {
		return
	}
	m.transferBytes.WithLabelValues("download").Add(float64(bytes))
}

func (m *chatMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *chatMetrics) SetOnlineUsers(count int32) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(count))
}

func (m *chatMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *chatMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *chatMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForced.Inc()
}

func (m *chatMetrics) RecordWriteQueueOverflow() {
	if m == nil {
		return
	}
	m.writeQueueOverflows.Inc()
}
