// Package metrics records import outcomes as Prometheus metrics. A CLI run
// has no scrape endpoint, so the registry is written to a node_exporter
// textfile when the run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitesurvey-cli/internal/reconcile"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

const namespace = "sitesurvey"

// Recorder holds the import metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	imports  *prometheus.CounterVec
	entities *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Workbook imports by result.",
		}, []string{"result"}),
		entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Reconciled entities by kind and outcome.",
		}, []string{"entity", "outcome"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed imports by error kind.",
		}, []string{"kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Time to import one workbook.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveSuccess records a committed import.
func (r *Recorder) ObserveSuccess(res reconcile.Result, elapsed time.Duration) {
	r.imports.WithLabelValues("success").Inc()
	r.duration.WithLabelValues("success").Observe(elapsed.Seconds())
	r.addCounts("premises", res.Premises)
	r.addCounts("room", res.Rooms)
	r.addCounts("bed", res.Beds)
}

// ObserveFailure records a failed import, labelled by survey error kind or
// "internal" for infrastructure failures.
func (r *Recorder) ObserveFailure(err error, elapsed time.Duration) {
	r.imports.WithLabelValues("failure").Inc()
	r.duration.WithLabelValues("failure").Observe(elapsed.Seconds())
	kind := string(survey.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) addCounts(entity string, c reconcile.Counts) {
	r.entities.WithLabelValues(entity, string(reconcile.OutcomeCreated)).Add(float64(c.Created))
	r.entities.WithLabelValues(entity, string(reconcile.OutcomeUpdated)).Add(float64(c.Updated))
	r.entities.WithLabelValues(entity, string(reconcile.OutcomeUnchanged)).Add(float64(c.Unchanged))
}

// WriteTextfile writes the registry in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}
