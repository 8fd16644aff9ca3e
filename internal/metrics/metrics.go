package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "choicebot_blocks_resolved_total",
			Help: "Persisted blocks resolved to the canonical shape, by source version and outcome.",
		},
		[]string{"version", "outcome"},
	)

	RuntimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "choicebot_runtime_events_total",
			Help: "Interaction events applied to active turns, by event type.",
		},
		[]string{"type"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "choicebot_submissions_total",
			Help: "Completed turns, by how the answer was given (item, selection, text).",
		},
		[]string{"source"},
	)

	TurnsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "choicebot_turns_started_total",
		Help: "Total number of choice turns started.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
