package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts workflow outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imports              prometheus.Counter
	importedParticipants *prometheus.CounterVec
	uploads              prometheus.Counter
	marked               *prometheus.CounterVec
	promotions           prometheus.Counter
	missing              prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		imports: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_imports_total",
			Help: "number of committed event imports",
		}),
		importedParticipants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_imported_participants_total",
			Help: "participants linked by imports, by classification",
		}, []string{"classification"}),
		uploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_uploads_total",
			Help: "number of committed attendance uploads",
		}),
		marked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_participants_marked_total",
			Help: "participants marked by attendance uploads, by list",
		}, []string{"kind"}),
		promotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_blocklist_promotions_total",
			Help: "blocklist entries created by the no-show threshold",
		}),
		missing: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_missing_participants_total",
			Help: "uploaded emails that matched no known participant",
		}),
	}
}

func (m *Metrics) ImportCommitted(byClassification map[string]int) {
	if m == nil {
		return
	}
	m.imports.Inc()
	for class, n := range byClassification {
		m.importedParticipants.WithLabelValues(class).Add(float64(n))
	}
}

func (m *Metrics) UploadCommitted(markedByKind map[string]int, promotions, missing int) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	for kind, n := range markedByKind {
		m.marked.WithLabelValues(kind).Add(float64(n))
	}
	m.promotions.Add(float64(promotions))
	m.missing.Add(float64(missing))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
