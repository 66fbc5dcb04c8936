package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosep_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiosep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadAdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosep_upload_admissions_total",
			Help: "Upload admission decisions by identity kind and outcome.",
		},
		[]string{"identity", "outcome"},
	)

	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiosep_checkouts_total",
			Help: "Completed simulated checkouts by plan.",
		},
		[]string{"plan"},
	)

	GuestSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audiosep_guest_sessions_total",
			Help: "Total number of guest sessions created.",
		},
	)

	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiosep_websocket_connections",
			Help: "Number of open websocket connections.",
		},
	)
)

// 上传准入结果
const (
	OutcomeAccepted      = "accepted"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UploadAdmissionsTotal,
		CheckoutsTotal,
		GuestSessionsTotal,
		WebSocketConnections,
	)
}
