package graph

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/kgraph/pkg/events"
)

func newTestGraph(t *testing.T, mutate func(*Config), opts ...Option) *KnowledgeGraph {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, opts...)
}

func mustEntity(t *testing.T, g *KnowledgeGraph, typ, name string) Entity {
	t.Helper()
	e, err := g.AddEntity(EntityInput{Type: typ, Name: name})
	require.NoError(t, err)
	return e
}

func mustRel(t *testing.T, g *KnowledgeGraph, source, target, typ string, weight float64) Relationship {
	t.Helper()
	r, err := g.AddRelationship(RelationshipInput{SourceID: source, TargetID: target, Type: typ, Weight: weight})
	require.NoError(t, err)
	return r
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		g := New(nil)
		cfg := g.Config()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, DefaultMaxEntities, cfg.MaxEntities)
		assert.Equal(t, DefaultMaxRelationships, cfg.MaxRelationships)
		assert.Equal(t, DefaultMaxInferenceDepth, cfg.MaxInferenceDepth)
		assert.False(t, cfg.AutoInference)
		assert.True(t, cfg.DeduplicateEntities)
	})

	t.Run("zero limits fall back to defaults", func(t *testing.T) {
		g := New(&Config{Enabled: true})
		cfg := g.Config()
		assert.Equal(t, DefaultMaxEntities, cfg.MaxEntities)
		assert.Equal(t, DefaultMaxRelationships, cfg.MaxRelationships)
		assert.Equal(t, DefaultMaxInferenceDepth, cfg.MaxInferenceDepth)
	})

	t.Run("caller config is not aliased", func(t *testing.T) {
		cfg := DefaultConfig()
		g := New(cfg)
		cfg.MaxEntities = 1
		assert.Equal(t, DefaultMaxEntities, g.Config().MaxEntities)
	})
}

func TestAddEntity(t *testing.T) {
	t.Run("deduplicates by name and type", func(t *testing.T) {
		g := newTestGraph(t, nil, WithClock(stepClock()))

		first, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"age": 30}})
		require.NoError(t, err)
		second, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"city": "NYC"}})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, g.Stats().TotalEntities)
		assert.Equal(t, 30, second.Properties["age"])
		assert.Equal(t, "NYC", second.Properties["city"])
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
	})

	t.Run("incoming keys overwrite on merge", func(t *testing.T) {
		g := newTestGraph(t, nil)
		mustEntity(t, g, "person", "Alice")
		_, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"age": 30}})
		require.NoError(t, err)
		e, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"age": 31}})
		require.NoError(t, err)
		assert.Equal(t, 31, e.Properties["age"])
	})

	t.Run("same name different type is distinct", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "person", "Mercury")
		b := mustEntity(t, g, "planet", "Mercury")
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("dedup disabled inserts every time", func(t *testing.T) {
		g := newTestGraph(t, func(c *Config) { c.DeduplicateEntities = false })
		a := mustEntity(t, g, "person", "Alice")
		b := mustEntity(t, g, "person", "Alice")
		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, 2, g.Stats().TotalEntities)
	})

	t.Run("capacity enforced", func(t *testing.T) {
		g := newTestGraph(t, func(c *Config) { c.MaxEntities = 2 })
		mustEntity(t, g, "person", "Alice")
		mustEntity(t, g, "person", "Bob")

		_, err := g.AddEntity(EntityInput{Type: "person", Name: "Carol"})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, 2, g.Stats().TotalEntities)

		// a duplicate needs no new slot
		_, err = g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"x": 1}})
		assert.NoError(t, err)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		g := newTestGraph(t, nil)
		_, err := g.AddEntity(EntityInput{Type: "person"})
		assert.ErrorIs(t, err, ErrInvalidData)
		_, err = g.AddEntity(EntityInput{Name: "Alice"})
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("returned entity is a copy", func(t *testing.T) {
		g := newTestGraph(t, nil)
		props := map[string]any{"age": 30}
		e, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: props})
		require.NoError(t, err)

		e.Properties["age"] = 99
		props["age"] = 98

		stored, ok := g.GetEntity(e.ID)
		require.True(t, ok)
		assert.Equal(t, 30, stored.Properties["age"])
	})
}

func TestUpdateEntity(t *testing.T) {
	g := newTestGraph(t, nil)
	alice := mustEntity(t, g, "person", "Alice")
	mustEntity(t, g, "person", "Bob")

	t.Run("not found", func(t *testing.T) {
		_, err := g.UpdateEntity("missing", EntityUpdate{})
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("partial update", func(t *testing.T) {
		source := "crm"
		e, err := g.UpdateEntity(alice.ID, EntityUpdate{
			Source:     &source,
			Properties: map[string]any{"role": "admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice", e.Name)
		assert.Equal(t, "crm", e.Source)
		assert.Equal(t, "admin", e.Properties["role"])
	})

	t.Run("rename onto existing key rejected", func(t *testing.T) {
		bob := "Bob"
		_, err := g.UpdateEntity(alice.ID, EntityUpdate{Name: &bob})
		assert.ErrorIs(t, err, ErrDuplicateEntity)
	})

	t.Run("rename moves the dedup key", func(t *testing.T) {
		name := "Alicia"
		_, err := g.UpdateEntity(alice.ID, EntityUpdate{Name: &name})
		require.NoError(t, err)

		again, err := g.AddEntity(EntityInput{Type: "person", Name: "Alicia"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, again.ID)

		fresh := mustEntity(t, g, "person", "Alice")
		assert.NotEqual(t, alice.ID, fresh.ID)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		empty := ""
		_, err := g.UpdateEntity(alice.ID, EntityUpdate{Name: &empty})
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestAddRelationship(t *testing.T) {
	t.Run("endpoint validation", func(t *testing.T) {
		g := newTestGraph(t, nil)
		b := mustEntity(t, g, "person", "Bob")

		_, err := g.AddRelationship(RelationshipInput{SourceID: "missing", TargetID: b.ID, Type: "knows", Weight: 1})
		assert.ErrorIs(t, err, ErrEntityNotFound)
		_, err = g.AddRelationship(RelationshipInput{SourceID: b.ID, TargetID: "missing", Type: "knows", Weight: 1})
		assert.ErrorIs(t, err, ErrEntityNotFound)
		assert.Equal(t, 0, g.Stats().TotalRelationships)
	})

	t.Run("capacity enforced", func(t *testing.T) {
		g := newTestGraph(t, func(c *Config) { c.MaxRelationships = 1 })
		a := mustEntity(t, g, "person", "Alice")
		b := mustEntity(t, g, "person", "Bob")
		mustRel(t, g, a.ID, b.ID, "knows", 1)

		_, err := g.AddRelationship(RelationshipInput{SourceID: b.ID, TargetID: a.ID, Type: "knows"})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Empty(t, g.adjacency[b.ID])
	})

	t.Run("weights", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "person", "Alice")
		b := mustEntity(t, g, "person", "Bob")

		r := mustRel(t, g, a.ID, b.ID, "knows", 0)
		assert.Equal(t, DefaultWeight, r.Weight)

		for _, w := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := g.AddRelationship(RelationshipInput{SourceID: a.ID, TargetID: b.ID, Type: "knows", Weight: w})
			assert.ErrorIs(t, err, ErrInvalidData, "weight %v", w)
		}
		assert.Len(t, g.GetRelationships(a.ID, Outgoing), 1)
	})

	t.Run("multi-edges are kept", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "person", "Alice")
		b := mustEntity(t, g, "person", "Bob")
		mustRel(t, g, a.ID, b.ID, "knows", 1)
		mustRel(t, g, a.ID, b.ID, "knows", 1)
		assert.Len(t, g.GetRelationships(a.ID, Outgoing), 2)
	})
}

func TestAdjacencyIndex(t *testing.T) {
	g := newTestGraph(t, nil)
	a := mustEntity(t, g, "node", "A")
	b := mustEntity(t, g, "node", "B")
	c := mustEntity(t, g, "node", "C")

	ab := mustRel(t, g, a.ID, b.ID, "next", 1)
	_, err := g.AddRelationship(RelationshipInput{SourceID: b.ID, TargetID: c.ID, Type: "peer", Bidirectional: true})
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{b.ID: {}}, g.adjacency[a.ID])
	assert.Equal(t, map[string]struct{}{c.ID: {}}, g.adjacency[b.ID])
	assert.Equal(t, map[string]struct{}{b.ID: {}}, g.adjacency[c.ID])

	removed, err := g.RemoveRelationship(ab.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, g.adjacency[a.ID])
	assert.Equal(t, map[string]struct{}{c.ID: {}}, g.adjacency[b.ID])

	removed, err = g.RemoveRelationship(ab.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAdjacencyKeepsParallelEdge(t *testing.T) {
	g := newTestGraph(t, nil)
	a := mustEntity(t, g, "node", "A")
	b := mustEntity(t, g, "node", "B")
	first := mustRel(t, g, a.ID, b.ID, "x", 1)
	mustRel(t, g, a.ID, b.ID, "y", 1)

	_, err := g.RemoveRelationship(first.ID)
	require.NoError(t, err)
	assert.Contains(t, g.adjacency[a.ID], b.ID)
}

func TestRemoveEntity(t *testing.T) {
	t.Run("cascades to incident relationships", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "node", "A")
		b := mustEntity(t, g, "node", "B")
		mustRel(t, g, a.ID, b.ID, "next", 1)
		mustRel(t, g, b.ID, a.ID, "back", 1)

		removed, err := g.RemoveEntity(a.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		assert.Empty(t, g.GetRelationships(b.ID, Both))
		assert.Empty(t, g.Query(b.ID, GraphPattern{}))
		assert.Empty(t, g.adjacency[b.ID])
		assert.Equal(t, 0, g.Stats().TotalRelationships)
		_, ok := g.GetEntity(a.ID)
		assert.False(t, ok)
	})

	t.Run("self loop", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "node", "A")
		mustRel(t, g, a.ID, a.ID, "self", 1)

		removed, err := g.RemoveEntity(a.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 0, g.Stats().TotalRelationships)
	})

	t.Run("missing returns false", func(t *testing.T) {
		g := newTestGraph(t, nil)
		removed, err := g.RemoveEntity("missing")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("frees the dedup key", func(t *testing.T) {
		g := newTestGraph(t, nil)
		a := mustEntity(t, g, "person", "Alice")
		_, err := g.RemoveEntity(a.ID)
		require.NoError(t, err)
		again := mustEntity(t, g, "person", "Alice")
		assert.NotEqual(t, a.ID, again.ID)
	})
}

func TestGetRelationships(t *testing.T) {
	g := newTestGraph(t, nil)
	a := mustEntity(t, g, "node", "A")
	b := mustEntity(t, g, "node", "B")
	c := mustEntity(t, g, "node", "C")

	ab := mustRel(t, g, a.ID, b.ID, "next", 1)
	ca, err := g.AddRelationship(RelationshipInput{SourceID: c.ID, TargetID: a.ID, Type: "peer", Bidirectional: true})
	require.NoError(t, err)
	ba := mustRel(t, g, b.ID, a.ID, "back", 1)

	relIDs := func(rels []Relationship) []string {
		ids := make([]string, 0, len(rels))
		for _, r := range rels {
			ids = append(ids, r.ID)
		}
		return ids
	}

	tests := []struct {
		name      string
		entity    string
		direction Direction
		want      []string
	}{
		{"outgoing includes bidirectional target", a.ID, Outgoing, []string{ab.ID, ca.ID}},
		{"incoming", a.ID, Incoming, []string{ca.ID, ba.ID}},
		{"both", a.ID, Both, []string{ab.ID, ca.ID, ba.ID}},
		{"empty direction means both", a.ID, "", []string{ab.ID, ca.ID, ba.ID}},
		{"bidirectional source", c.ID, Outgoing, []string{ca.ID}},
		{"unknown entity", "missing", Both, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relIDs(g.GetRelationships(tt.entity, tt.direction)))
		})
	}
}

func TestFindEntities(t *testing.T) {
	g := newTestGraph(t, nil)
	_, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice Smith", Source: "crm"})
	require.NoError(t, err)
	_, err = g.AddEntity(EntityInput{Type: "person", Name: "Bob", Source: "chat"})
	require.NoError(t, err)
	_, err = g.AddEntity(EntityInput{Type: "company", Name: "Smith & Co", Source: "crm"})
	require.NoError(t, err)

	names := func(es []Entity) []string {
		out := make([]string, 0, len(es))
		for _, e := range es {
			out = append(out, e.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Alice Smith", "Bob", "Smith & Co"}, names(g.FindEntities(EntityFilter{})))
	assert.Equal(t, []string{"Alice Smith", "Bob"}, names(g.FindEntities(EntityFilter{Type: "person"})))
	assert.Equal(t, []string{"Alice Smith", "Smith & Co"}, names(g.FindEntities(EntityFilter{Name: "smith"})))
	assert.Equal(t, []string{"Smith & Co"}, names(g.FindEntities(EntityFilter{Source: "crm", Type: "company"})))
	assert.Empty(t, g.FindEntities(EntityFilter{Type: "planet"}))
}

func TestFindRelationships(t *testing.T) {
	g := newTestGraph(t, nil)
	acme := mustEntity(t, g, "company", "Acme")
	alice := mustEntity(t, g, "person", "Alice")
	bob := mustEntity(t, g, "person", "Bob")

	employs := mustRel(t, g, acme.ID, alice.ID, "employs", 1)
	knows := mustRel(t, g, alice.ID, bob.ID, "knows", 1)

	assert.Len(t, g.FindRelationships(RelationshipFilter{}), 2)

	got := g.FindRelationships(RelationshipFilter{Type: "knows"})
	require.Len(t, got, 1)
	assert.Equal(t, knows.ID, got[0].ID)

	got = g.FindRelationships(RelationshipFilter{SourceType: "company", TargetType: "person"})
	require.Len(t, got, 1)
	assert.Equal(t, employs.ID, got[0].ID)

	assert.Empty(t, g.FindRelationships(RelationshipFilter{SourceType: "planet"}))
}

func TestStats(t *testing.T) {
	g := newTestGraph(t, nil)
	assert.Equal(t, 0.0, g.Stats().AverageDegree)

	a := mustEntity(t, g, "person", "A")
	b := mustEntity(t, g, "person", "B")
	c := mustEntity(t, g, "company", "C")
	mustRel(t, g, a.ID, b.ID, "knows", 1)
	mustRel(t, g, c.ID, a.ID, "employs", 1)

	stats := g.Stats()
	assert.Equal(t, 3, stats.TotalEntities)
	assert.Equal(t, 2, stats.TotalRelationships)
	assert.Equal(t, map[string]int{"person": 2, "company": 1}, stats.EntityTypes)
	assert.Equal(t, map[string]int{"knows": 1, "employs": 1}, stats.RelationshipTypes)
	assert.InDelta(t, 4.0/3.0, stats.AverageDegree, 1e-9)
}

func TestExport(t *testing.T) {
	g := newTestGraph(t, nil)
	a, err := g.AddEntity(EntityInput{Type: "person", Name: "A", Properties: map[string]any{"k": "v"}})
	require.NoError(t, err)
	b := mustEntity(t, g, "person", "B")
	mustRel(t, g, a.ID, b.ID, "knows", 2)

	snap := g.Export()
	require.Len(t, snap.Entities, 2)
	require.Len(t, snap.Relationships, 1)
	assert.Equal(t, a.ID, snap.Entities[0].ID)
	assert.Equal(t, b.ID, snap.Entities[1].ID)

	snap.Entities[0].Properties["k"] = "changed"
	stored, _ := g.GetEntity(a.ID)
	assert.Equal(t, "v", stored.Properties["k"])
}

func TestClear(t *testing.T) {
	g := newTestGraph(t, nil)
	acme := mustEntity(t, g, "company", "Acme")
	alice := mustEntity(t, g, "person", "Alice")
	mustRel(t, g, acme.ID, alice.ID, "employs", 1)
	_, err := g.AddInferenceRule(employsPaysRule())
	require.NoError(t, err)
	_, err = g.RunInference()
	require.NoError(t, err)

	g.Clear()

	stats := g.Stats()
	assert.Zero(t, stats.TotalEntities)
	assert.Zero(t, stats.TotalRelationships)
	assert.Zero(t, stats.TotalInferences)
	assert.Empty(t, g.InferenceRules())
	assert.Empty(t, g.adjacency)

	// dedup index was reset too
	again := mustEntity(t, g, "person", "Alice")
	assert.NotEqual(t, alice.ID, again.ID)
}

func TestDisabledGraph(t *testing.T) {
	g := newTestGraph(t, func(c *Config) { c.Enabled = false })

	_, err := g.AddEntity(EntityInput{Type: "person", Name: "Alice"})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.AddRelationship(RelationshipInput{SourceID: "a", TargetID: "b", Type: "knows"})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.UpdateEntity("a", EntityUpdate{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.RemoveEntity("a")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.RunInference()
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.Merge(Snapshot{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.AddInferenceRule(employsPaysRule())
	assert.ErrorIs(t, err, ErrDisabled)

	assert.Empty(t, g.FindEntities(EntityFilter{}))
	assert.Zero(t, g.Stats().TotalEntities)
}

func TestEvents(t *testing.T) {
	bus := events.NewBus()
	g := newTestGraph(t, nil, WithPublisher(bus))

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	names := func() []events.Name {
		mu.Lock()
		defer mu.Unlock()
		out := make([]events.Name, 0, len(got))
		for _, e := range got {
			out = append(out, e.Name)
		}
		got = nil
		return out
	}

	a := mustEntity(t, g, "person", "Alice")
	b := mustEntity(t, g, "person", "Bob")
	assert.Equal(t, []events.Name{events.EntityAdded, events.EntityAdded}, names())

	mustEntity(t, g, "person", "Alice")
	assert.Equal(t, []events.Name{events.EntityUpdated}, names())

	r := mustRel(t, g, a.ID, b.ID, "knows", 1)
	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].RelationshipID)
	assert.Equal(t, a.ID, got[0].SourceID)
	assert.Equal(t, b.ID, got[0].TargetID)
	assert.Equal(t, "knows", got[0].RelationshipType)
	mu.Unlock()
	names()

	_, err := g.RemoveEntity(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.RelationshipRemoved, events.EntityRemoved}, names())

	_, err = g.Merge(Snapshot{})
	require.NoError(t, err)
	g.Clear()
	assert.Equal(t, []events.Name{events.MergeComplete, events.Cleared}, names())

	// failed mutations publish nothing
	_, err = g.AddRelationship(RelationshipInput{SourceID: "x", TargetID: "y", Type: "knows"})
	require.Error(t, err)
	assert.Empty(t, names())
}

func TestEventsPublishedAfterUnlock(t *testing.T) {
	bus := events.NewBus()
	g := newTestGraph(t, nil, WithPublisher(bus))

	var seen int
	bus.Subscribe(func(e events.Event) {
		// re-entering the graph from a handler must not deadlock
		seen = g.Stats().TotalEntities
	}, events.EntityAdded)

	mustEntity(t, g, "person", "Alice")
	assert.Equal(t, 1, seen)
}

func TestAsyncHandlerMutatesGraph(t *testing.T) {
	bus := events.NewBus(events.WithAsync(1))
	g := newTestGraph(t, nil, WithPublisher(bus))

	bus.Subscribe(func(e events.Event) {
		_, err := g.Merge(Snapshot{Entities: []Entity{
			{ID: "a", Type: "node", Name: "A"},
			{ID: "b", Type: "node", Name: "B"},
			{ID: "c", Type: "node", Name: "C"},
		}})
		assert.NoError(t, err)
	}, events.Cleared)

	g.Clear()

	done := make(chan struct{})
	go func() {
		bus.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("bus did not drain")
	}
	assert.Equal(t, 3, g.Stats().TotalEntities)
}

func TestConcurrentAccess(t *testing.T) {
	g := newTestGraph(t, nil)
	hub := mustEntity(t, g, "node", "hub")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e, err := g.AddEntity(EntityInput{Type: "node", Name: fmt.Sprintf("n-%d-%d", w, i)})
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := g.AddRelationship(RelationshipInput{SourceID: hub.ID, TargetID: e.ID, Type: "has"}); err != nil {
					t.Error(err)
					return
				}
				g.Neighbors(hub.ID, 1)
				g.Stats()
			}
		}(w)
	}
	wg.Wait()

	stats := g.Stats()
	assert.Equal(t, 401, stats.TotalEntities)
	assert.Equal(t, 400, stats.TotalRelationships)
	assert.Len(t, g.adjacency[hub.ID], 400)
}
