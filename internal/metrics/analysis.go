package metrics

import "time"

// Callback outcome labels.
const (
	CallbackCompleted    = "completed"
	CallbackFailed       = "failed"
	CallbackDuplicate    = "duplicate"
	CallbackUnauthorized = "unauthorized"
	CallbackRejected     = "rejected"
	CallbackError        = "error"
)

// AnalysisSubmitted records a newly created analysis.
func AnalysisSubmitted() {
	AnalysesSubmitted.Inc()
}

// AnalysisFinalized records a processing analysis reaching status.
func AnalysisFinalized(status string) {
	AnalysesFinalized.WithLabelValues(status).Inc()
}

// AnalysisCompleted records the submit-to-callback turnaround of an analysis.
func AnalysisCompleted(turnaround time.Duration) {
	AnalysisTurnaround.Observe(turnaround.Seconds())
}

// QuotaRejected records an admission refused for quota.
func QuotaRejected() {
	QuotaRejections.Inc()
}

// UsageIncremented records a free-plan counter increment.
func UsageIncremented() {
	UsageIncrements.Inc()
}

// CallbackHandled records how an analyzer callback was handled.
func CallbackHandled(outcome string) {
	CallbacksTotal.WithLabelValues(outcome).Inc()
}

// DispatchObserved records one webhook delivery attempt.
func DispatchObserved(ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	DispatchesTotal.WithLabelValues(status).Inc()
	DispatchDuration.Observe(duration.Seconds())
}

// CacheLookup records a cache hit, miss or error.
func CacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}
