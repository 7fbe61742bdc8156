// Package metrics exposes knowledge graph activity as Prometheus metrics.
//
// A Collector subscribes to the graph's event bus and counts lifecycle
// events. Size gauges read graph.Stats at scrape time.
//
// Metrics (with the default "kgraph" namespace):
//   - kgraph_events_total{event}: lifecycle events by name
//   - kgraph_inferred_relationships_total: relationships created by inference
//   - kgraph_merged_entities_total, kgraph_merged_relationships_total
//   - kgraph_merge_duplicates_total: entities folded into existing ones by merge
//   - kgraph_entities, kgraph_relationships, kgraph_average_degree (gauges)
//
// Example Usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg, "kgraph")
//	unsubscribe := m.Attach(bus)
//	defer unsubscribe()
//	m.WatchGraph(g)
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/orneryd/kgraph/pkg/events"
	"github.com/orneryd/kgraph/pkg/graph"
)

// DefaultNamespace is used when New is given an empty namespace.
const DefaultNamespace = "kgraph"

// StatsSource is what the size gauges read from; *graph.KnowledgeGraph
// satisfies it.
type StatsSource interface {
	Stats() graph.Stats
}

// Collector holds the graph metrics.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Collector struct {
	namespace string
	factory   promauto.Factory

	// EventsTotal counts lifecycle events. Labels: event
	EventsTotal *prometheus.CounterVec

	// InferredTotal counts relationships created by inference passes.
	InferredTotal prometheus.Counter

	// MergedEntitiesTotal counts entities inserted by merges.
	MergedEntitiesTotal prometheus.Counter

	// MergedRelationshipsTotal counts relationships inserted by merges.
	MergedRelationshipsTotal prometheus.Counter

	// MergeDuplicatesTotal counts incoming entities deduplicated by merges.
	MergeDuplicatesTotal prometheus.Counter
}

// New registers the event metrics with reg (the default registerer when
// nil).
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		namespace: namespace,
		factory:   factory,
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Knowledge graph lifecycle events by name",
		}, []string{"event"}),
		InferredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inferred_relationships_total",
			Help:      "Relationships created by inference",
		}),
		MergedEntitiesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_entities_total",
			Help:      "Entities inserted by merges",
		}),
		MergedRelationshipsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_relationships_total",
			Help:      "Relationships inserted by merges",
		}),
		MergeDuplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_duplicates_total",
			Help:      "Incoming entities deduplicated into existing ones by merges",
		}),
	}
}

// Handle records one event. It is an events.Handler.
func (c *Collector) Handle(e events.Event) {
	c.EventsTotal.WithLabelValues(string(e.Name)).Inc()

	switch e.Name {
	case events.InferenceComplete:
		c.InferredTotal.Add(float64(e.NewRelationships))
	case events.MergeComplete:
		c.MergedEntitiesTotal.Add(float64(e.EntitiesAdded))
		c.MergedRelationshipsTotal.Add(float64(e.RelationshipsAdded))
		c.MergeDuplicatesTotal.Add(float64(e.DuplicatesSkipped))
	}
}

// Attach subscribes the collector to every event on bus and returns the
// unsubscribe function.
func (c *Collector) Attach(bus *events.Bus) func() {
	return bus.Subscribe(c.Handle)
}

// WatchGraph registers gauges that read src's stats on every scrape. Call
// it once per collector.
func (c *Collector) WatchGraph(src StatsSource) {
	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "entities",
		Help:      "Entities currently in the graph",
	}, func() float64 { return float64(src.Stats().TotalEntities) })

	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "relationships",
		Help:      "Relationships currently in the graph",
	}, func() float64 { return float64(src.Stats().TotalRelationships) })

	c.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "average_degree",
		Help:      "Average entity degree (2 x relationships / entities)",
	}, func() float64 { return src.Stats().AverageDegree })
}
