package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evento_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evento_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	quotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evento_quota_rejections_total",
		Help: "Creations refused because a tenant limit was reached",
	}, []string{"kind"})

	distributionRuns = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evento_distribution_run_duration_seconds",
		Help:    "Duration of reviewer distribution runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	distributionAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evento_distribution_assignments_total",
		Help: "Assignments created by distribution runs, by selection mode",
	}, []string{"mode"})

	distributionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evento_distribution_failed_submissions_total",
		Help: "Submissions left below the minimum number of reviewers",
	})

	certificatesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evento_certificates_total",
		Help: "Certificate issuance attempts by result",
	}, []string{"tipo", "result"})

	paymentWebhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evento_payment_webhooks_total",
		Help: "Payment notifications received by outcome",
	}, []string{"outcome"})

	externalCalls = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evento_external_call_duration_seconds",
		Help:    "Duration of calls to external services",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveQuotaRejection counts a refused creation of the given kind
func ObserveQuotaRejection(kind string) {
	quotaRejections.WithLabelValues(kind).Inc()
}

// ObserveDistribution records a finished distribution run
func ObserveDistribution(result string, duration time.Duration, strict, fallback, failed int) {
	distributionRuns.WithLabelValues(result).Observe(duration.Seconds())
	distributionAssignments.WithLabelValues("strict").Add(float64(strict))
	distributionAssignments.WithLabelValues("fallback").Add(float64(fallback))
	distributionFailures.Add(float64(failed))
}

// ObserveCertificate records a certificate issuance attempt
func ObserveCertificate(tipo, result string) {
	certificatesIssued.WithLabelValues(tipo, result).Inc()
}

// ObservePaymentWebhook records how a payment notification was handled
func ObservePaymentWebhook(outcome string) {
	paymentWebhooks.WithLabelValues(outcome).Inc()
}

// ObserveExternalCall records the duration of an outbound call
func ObserveExternalCall(service, result string, duration time.Duration) {
	externalCalls.WithLabelValues(service, result).Observe(duration.Seconds())
}
