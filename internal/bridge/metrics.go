package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litertd",
		Subsystem: "bridge",
		Name:      "generations_total",
		Help:      "Total generations issued to the engine",
	})

	abortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litertd",
		Subsystem: "bridge",
		Name:      "aborts_total",
		Help:      "Total generations aborted by callers",
	})

	fragmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litertd",
		Subsystem: "bridge",
		Name:      "fragments_total",
		Help:      "Total partial-response fragments routed to sessions",
	})

	structuredAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litertd",
		Subsystem: "bridge",
		Name:      "structured_attempts_total",
		Help:      "Total structured-output generation attempts, including retries",
	})
)

func init() {
	prometheus.MustRegister(generationsStarted, abortsTotal, fragmentsTotal, structuredAttempts)
}
