// Package graph provides the in-memory knowledge graph engine.
//
// The KnowledgeGraph stores typed entities and typed, weighted relationships,
// keeps a per-entity adjacency index consistent with every mutation, and
// answers pattern queries, shortest-path and neighbor requests. It derives new
// relationships through rule-based inference and merges external snapshots
// (for example from federated peers) with deduplication.
//
// Example Usage:
//
//	g := graph.New(nil) // graph.DefaultConfig()
//
//	alice, _ := g.AddEntity(graph.EntityInput{Type: "person", Name: "Alice"})
//	acme, _ := g.AddEntity(graph.EntityInput{Type: "company", Name: "Acme"})
//
//	_, err := g.AddRelationship(graph.RelationshipInput{
//		SourceID: acme.ID,
//		TargetID: alice.ID,
//		Type:     "employs",
//		Weight:   1,
//	})
//	if errors.Is(err, graph.ErrCapacityExceeded) {
//		// graph is full
//	}
//
//	paths := g.Query(acme.ID, graph.GraphPattern{MaxDepth: 2})
//	path := g.ShortestPath(acme.ID, alice.ID)
//
// Invariants (hold after every public call returns):
//   - Every relationship's endpoints exist.
//   - The adjacency entry of X holds exactly the Y with a relationship X→Y,
//     or a bidirectional relationship between X and Y.
//   - Entity and relationship counts never exceed their maximums.
//   - With deduplication enabled, no two entities share (Name, Type).
//   - Removing an entity removes every incident relationship.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. One RWMutex guards the
//	whole data set; read operations share it. Lifecycle events are collected
//	while the lock is held and published after it is released, so a
//	subscriber may call back into the graph.
package graph

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/orneryd/kgraph/pkg/events"
	"github.com/orneryd/kgraph/pkg/inference"
)

// Config holds engine options.
type Config struct {
	// Enabled gates every mutating operation. Reads work either way.
	Enabled bool
	// MaxEntities is the hard entity limit (default 100,000).
	MaxEntities int
	// MaxRelationships is the hard relationship limit (default 500,000).
	MaxRelationships int
	// MaxInferenceDepth bounds forward-chaining rounds per inference pass and
	// is the default Query MaxDepth (default 5).
	MaxInferenceDepth int
	// AutoInference runs a full inference pass after every add.
	AutoInference bool
	// DeduplicateEntities merges adds that match an existing (Name, Type).
	DeduplicateEntities bool
}

// Defaults for Config.
const (
	DefaultMaxEntities       = 100000
	DefaultMaxRelationships  = 500000
	DefaultMaxInferenceDepth = 5
)

// DefaultConfig returns the default engine options.
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		MaxEntities:         DefaultMaxEntities,
		MaxRelationships:    DefaultMaxRelationships,
		MaxInferenceDepth:   DefaultMaxInferenceDepth,
		AutoInference:       false,
		DeduplicateEntities: true,
	}
}

// Option configures a KnowledgeGraph.
type Option func(*KnowledgeGraph)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(g *KnowledgeGraph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPublisher sets the lifecycle event sink, usually an *events.Bus.
func WithPublisher(p events.Publisher) Option {
	return func(g *KnowledgeGraph) {
		g.publisher = p
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *KnowledgeGraph) {
		if now != nil {
			g.now = now
		}
	}
}

type entityKey struct {
	name, typ string
}

// KnowledgeGraph is the in-memory graph engine. Create it with New.
type KnowledgeGraph struct {
	mu     sync.RWMutex
	config Config

	entities      map[string]*Entity
	relationships map[string]*Relationship

	// derived indexes
	adjacency map[string]map[string]struct{}
	outgoing  map[string]map[string]struct{} // entity -> relationship ids with entity as source
	incoming  map[string]map[string]struct{} // entity -> relationship ids with entity as target
	byKey     map[entityKey]string           // maintained only with deduplication

	rules          *inference.RuleSet
	inferenceCount int64
	inferring      bool
	seq            uint64

	pending   []events.Event
	publisher events.Publisher
	logger    *log.Logger
	now       func() time.Time
}

// New creates an empty graph. A nil config uses DefaultConfig(); zero
// numeric fields fall back to their defaults.
func New(config *Config, opts ...Option) *KnowledgeGraph {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = DefaultMaxEntities
	}
	if cfg.MaxRelationships <= 0 {
		cfg.MaxRelationships = DefaultMaxRelationships
	}
	if cfg.MaxInferenceDepth <= 0 {
		cfg.MaxInferenceDepth = DefaultMaxInferenceDepth
	}

	g := &KnowledgeGraph{
		config: cfg,
		rules:  inference.NewRuleSet(),
		logger: log.New(io.Discard),
		now:    time.Now,
	}
	g.reset()

	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *KnowledgeGraph) reset() {
	g.entities = make(map[string]*Entity)
	g.relationships = make(map[string]*Relationship)
	g.adjacency = make(map[string]map[string]struct{})
	g.outgoing = make(map[string]map[string]struct{})
	g.incoming = make(map[string]map[string]struct{})
	g.byKey = make(map[entityKey]string)
	g.rules.Reset()
	g.inferenceCount = 0
	g.seq = 0
}

// Config returns the effective configuration.
func (g *KnowledgeGraph) Config() Config {
	return g.config
}

// lock acquires the write lock. Pair with defer g.unlock().
func (g *KnowledgeGraph) lock() {
	g.mu.Lock()
}

// unlock releases the write lock, then publishes events queued while it was
// held.
func (g *KnowledgeGraph) unlock() {
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	if g.publisher != nil && len(pending) > 0 {
		g.publisher.Publish(pending...)
	}
}

func (g *KnowledgeGraph) emit(e events.Event) {
	e.Timestamp = g.now()
	g.pending = append(g.pending, e)
}

func (g *KnowledgeGraph) checkEnabled() error {
	if !g.config.Enabled {
		return ErrDisabled
	}
	return nil
}

func (g *KnowledgeGraph) nextSeq() uint64 {
	g.seq++
	return g.seq
}

// Stats returns counts, per-type histograms and the average degree.
func (g *KnowledgeGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		TotalEntities:      len(g.entities),
		TotalRelationships: len(g.relationships),
		TotalInferences:    g.inferenceCount,
		EntityTypes:        make(map[string]int),
		RelationshipTypes:  make(map[string]int),
	}
	for _, e := range g.entities {
		stats.EntityTypes[e.Type]++
	}
	for _, r := range g.relationships {
		stats.RelationshipTypes[r.Type]++
	}
	if stats.TotalEntities > 0 {
		stats.AverageDegree = float64(2*stats.TotalRelationships) / float64(stats.TotalEntities)
	}
	return stats
}

// Export returns a snapshot of every entity and relationship in insertion
// order. The snapshot shares no memory with the graph.
func (g *KnowledgeGraph) Export() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		Entities:      make([]Entity, 0, len(g.entities)),
		Relationships: make([]Relationship, 0, len(g.relationships)),
	}
	for _, e := range g.sortedEntities() {
		snap.Entities = append(snap.Entities, copyEntity(e))
	}
	for _, r := range g.sortedRelationships() {
		snap.Relationships = append(snap.Relationships, copyRelationship(r))
	}
	return snap
}

// Clear removes every entity, relationship and inference rule and resets the
// inference counter.
func (g *KnowledgeGraph) Clear() {
	g.lock()
	defer g.unlock()

	g.reset()
	g.logger.Info("knowledge graph cleared")
	g.emit(events.Event{Name: events.Cleared})
}

func (g *KnowledgeGraph) sortedEntities() []*Entity {
	out := make([]*Entity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (g *KnowledgeGraph) sortedRelationships() []*Relationship {
	out := make([]*Relationship, 0, len(g.relationships))
	for _, r := range g.relationships {
		out = append(out, r)
	}
	sortRelationships(out)
	return out
}

func sortRelationships(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool { return rels[i].seq < rels[j].seq })
}
