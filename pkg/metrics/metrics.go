package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsConstructed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "documents_constructed_total", Help: "Number of documents validated from user data by class."},
		[]string{"class"},
	)
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "validation_failures_total", Help: "Number of field validation failures by class and field."},
		[]string{"class", "field"},
	)
	WireValuesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "wire_values_dropped_total", Help: "Number of stored values that could not be loaded, by class and field."},
		[]string{"class", "field"},
	)
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "store_operations_total", Help: "Number of repository operations by backend, operation and outcome."},
		[]string{"backend", "op", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "rate_limit_allowed_total", Help: "Number of allowed writes by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docmodel", Name: "rate_limit_rejected_total", Help: "Number of rejected writes by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsConstructed)
	reg.MustRegister(ValidationFailures)
	reg.MustRegister(WireValuesDropped)
	reg.MustRegister(StoreOperations)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}

// Observer feeds document construction and load events into the counters
// above. Install it with odm.SetObserver.
type Observer struct{}

func (Observer) DocumentConstructed(class string) {
	DocumentsConstructed.WithLabelValues(class).Inc()
}

func (Observer) ValidationFailed(class string, fields []string) {
	for _, f := range fields {
		ValidationFailures.WithLabelValues(class, f).Inc()
	}
}

func (Observer) WireValueDropped(class, field string) {
	WireValuesDropped.WithLabelValues(class, field).Inc()
}

// ObserveStore records the outcome of one repository operation.
func ObserveStore(backend, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreOperations.WithLabelValues(backend, op, outcome).Inc()
}
