// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paygate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	OTPEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_otp_events_total",
			Help: "OTP lifecycle events",
		},
		[]string{"event"},
	)

	PaymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_payment_transitions_total",
			Help: "Payment request status transitions applied",
		},
		[]string{"to"},
	)

	GatewayCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_gateway_callbacks_total",
			Help: "Gateway callbacks by acknowledgement code",
		},
		[]string{"rsp_code"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_emails_total",
			Help: "Email requests leaving pending",
		},
		[]string{"kind", "result"},
	)

	TriggerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paygate_trigger_events_total",
			Help: "Creation events handled by the trigger workers",
		},
		[]string{"channel", "result"},
	)
)

// OTP event labels.
const (
	OTPIssued      = "issued"
	OTPResent      = "resent"
	OTPVerified    = "verified"
	OTPMismatch    = "mismatch"
	OTPExpired     = "expired"
	OTPLocked      = "locked"
	OTPRateLimited = "rate_limited"
)

func Handler() http.Handler {
	return promhttp.Handler()
}
