package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_requests_total",
			Help: "Total number of one-time code requests by outcome.",
		},
		[]string{"result"},
	)

	OTPRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_redemptions_total",
			Help: "Total number of one-time code redemptions by outcome.",
		},
		[]string{"result"},
	)

	OTPSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_otp_swept_total",
			Help: "Total number of expired one-time codes removed by the sweeper.",
		},
	)

	OTPSweepErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_otp_sweep_errors_total",
			Help: "Total number of failed sweeps.",
		},
	)
)

// Outcome labels shared by the OTP counters.
const (
	ResultOK          = "ok"
	ResultInvalid     = "invalid"
	ResultNotFound    = "not_found"
	ResultDisabled    = "disabled"
	ResultUndelivered = "undelivered"
	ResultError       = "error"
)

// MustRegister registers every collector on the default registry with a constant
// service label. Collectors are usable before registration, so tests skip this.
func MustRegister(serviceName string) {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		OTPRequestsTotal,
		OTPRedemptionsTotal,
		OTPSweptTotal,
		OTPSweepErrorsTotal,
	)
}
