package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	NotesUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdnotes", Name: "notes_uploaded_total", Help: "Number of upload attempts by result."},
		[]string{"result"},
	)
	GrammarChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdnotes", Name: "grammar_checks_total", Help: "Number of grammar checks by engine and result."},
		[]string{"engine", "result"},
	)
	RemoteGrammarDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "mdnotes", Name: "remote_grammar_seconds", Help: "Latency of remote grammar calls, retries included.", Buckets: prometheus.ExponentialBuckets(0.25, 2, 8)},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "mdnotes", Name: "http_requests_total", Help: "Number of HTTP requests by method and status."},
		[]string{"method", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(NotesUploaded)
	reg.MustRegister(GrammarChecks)
	reg.MustRegister(RemoteGrammarDuration)
	reg.MustRegister(HTTPRequests)
}

// Result maps an error to the "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
