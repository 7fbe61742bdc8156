package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *KnowledgeGraph {
	t.Helper()
	g := newTestGraph(t, nil)
	acme := mustEntity(t, g, "company", "Acme")
	alice := mustEntity(t, g, "person", "Alice")
	bob := mustEntity(t, g, "person", "Bob")
	mustRel(t, g, acme.ID, alice.ID, "employs", 1)
	mustRel(t, g, acme.ID, bob.ID, "employs", 1)
	_, err := g.AddRelationship(RelationshipInput{SourceID: alice.ID, TargetID: bob.ID, Type: "knows", Weight: 0.7, Bidirectional: true})
	require.NoError(t, err)
	return g
}

func TestMergeRoundTrip(t *testing.T) {
	src := populated(t)
	snap := src.Export()

	dst := newTestGraph(t, nil)
	res, err := dst.Merge(snap)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{EntitiesAdded: 3, RelationshipsAdded: 3}, res)
	assert.Equal(t, src.Stats().TotalEntities, dst.Stats().TotalEntities)
	assert.Equal(t, src.Stats().TotalRelationships, dst.Stats().TotalRelationships)
	assert.Equal(t, src.Stats().RelationshipTypes, dst.Stats().RelationshipTypes)

	again, err := dst.Merge(snap)
	require.NoError(t, err)
	assert.Equal(t, len(snap.Entities), again.DuplicatesSkipped)
	assert.Zero(t, again.EntitiesAdded)
	assert.Zero(t, again.RelationshipsAdded)
	assert.Equal(t, len(snap.Relationships), again.RelationshipsSkipped)
	assert.Equal(t, 3, dst.Stats().TotalRelationships)
}

func TestMergeRemapsIDs(t *testing.T) {
	src := populated(t)
	snap := src.Export()

	dst := newTestGraph(t, nil)
	_, err := dst.Merge(snap)
	require.NoError(t, err)

	for _, e := range snap.Entities {
		_, ok := dst.GetEntity(e.ID)
		assert.False(t, ok, "incoming id %s must not be reused", e.ID)
	}

	acme := dst.FindEntities(EntityFilter{Type: "company"})
	require.Len(t, acme, 1)
	assert.Len(t, dst.GetRelationships(acme[0].ID, Outgoing), 2)

	knows := dst.FindRelationships(RelationshipFilter{Type: "knows"})
	require.Len(t, knows, 1)
	assert.True(t, knows[0].Bidirectional)
	assert.Equal(t, 0.7, knows[0].Weight)
}

func TestMergeKeepsTimestamps(t *testing.T) {
	created := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	dst := newTestGraph(t, nil)
	_, err := dst.Merge(Snapshot{
		Entities: []Entity{{ID: "x", Type: "person", Name: "Alice", CreatedAt: created, UpdatedAt: created}},
	})
	require.NoError(t, err)

	got := dst.FindEntities(EntityFilter{Name: "alice"})
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.Equal(created))
}

func TestMergeDeduplicatesIntoExisting(t *testing.T) {
	dst := newTestGraph(t, nil)
	local, err := dst.AddEntity(EntityInput{Type: "person", Name: "Alice", Properties: map[string]any{"age": 30}})
	require.NoError(t, err)
	carol := mustEntity(t, dst, "person", "Carol")

	res, err := dst.Merge(Snapshot{
		Entities: []Entity{
			{ID: "remote-alice", Type: "person", Name: "Alice", Properties: map[string]any{"city": "NYC"}},
			{ID: "remote-bob", Type: "person", Name: "Bob"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "remote-alice", TargetID: "remote-bob", Type: "knows", Weight: 1},
			// endpoint not in the snapshot but present locally
			{ID: "r2", SourceID: "remote-bob", TargetID: carol.ID, Type: "knows", Weight: 1},
			// endpoint nowhere
			{ID: "r3", SourceID: "remote-bob", TargetID: "ghost", Type: "knows", Weight: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, MergeResult{
		EntitiesAdded:        1,
		RelationshipsAdded:   2,
		DuplicatesSkipped:    1,
		RelationshipsSkipped: 1,
	}, res)

	alice, _ := dst.GetEntity(local.ID)
	assert.Equal(t, 30, alice.Properties["age"])
	assert.Equal(t, "NYC", alice.Properties["city"])
	assert.Len(t, dst.GetRelationships(local.ID, Outgoing), 1)
	assert.Len(t, dst.GetRelationships(carol.ID, Incoming), 1)
}

func TestMergeKeepsMultiEdgesWithinSnapshot(t *testing.T) {
	dst := newTestGraph(t, nil)
	mustEntity(t, dst, "node", "unrelated")

	res, err := dst.Merge(Snapshot{
		Entities: []Entity{
			{ID: "a", Type: "node", Name: "A"},
			{ID: "b", Type: "node", Name: "B"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "next", Weight: 1},
			{ID: "r2", SourceID: "a", TargetID: "b", Type: "next", Weight: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RelationshipsAdded)
	assert.Zero(t, res.RelationshipsSkipped)
}

func TestMergeSwallowsCapacity(t *testing.T) {
	dst := newTestGraph(t, func(c *Config) {
		c.MaxEntities = 2
		c.MaxRelationships = 1
	})

	res, err := dst.Merge(Snapshot{
		Entities: []Entity{
			{ID: "a", Type: "node", Name: "A"},
			{ID: "b", Type: "node", Name: "B"},
			{ID: "c", Type: "node", Name: "C"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "next"},
			{ID: "r2", SourceID: "b", TargetID: "a", Type: "next"},
			{ID: "r3", SourceID: "a", TargetID: "c", Type: "next"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntitiesAdded)
	assert.Equal(t, 1, res.RelationshipsAdded)
	assert.Equal(t, 2, res.RelationshipsSkipped)
	assert.Equal(t, 2, dst.Stats().TotalEntities)
	assert.Equal(t, 1, dst.Stats().TotalRelationships)
}

func TestMergeRunsAutoInference(t *testing.T) {
	dst := newTestGraph(t, func(c *Config) { c.AutoInference = true })
	_, err := dst.AddInferenceRule(employsPaysRule())
	require.NoError(t, err)

	_, err = dst.Merge(populated(t).Export())
	require.NoError(t, err)
	assert.Len(t, dst.FindRelationships(RelationshipFilter{Type: "pays"}), 2)
}

func TestMergeSkipsNonFiniteWeights(t *testing.T) {
	dst := newTestGraph(t, nil)
	res, err := dst.Merge(Snapshot{
		Entities: []Entity{
			{ID: "a", Type: "node", Name: "A"},
			{ID: "b", Type: "node", Name: "B"},
		},
		Relationships: []Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "next", Weight: math.NaN()},
			{ID: "r2", SourceID: "b", TargetID: "a", Type: "next", Weight: math.Inf(1)},
			{ID: "r3", SourceID: "a", TargetID: "b", Type: "prev", Weight: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RelationshipsAdded)
	assert.Equal(t, 2, res.RelationshipsSkipped)

	a := dst.FindEntities(EntityFilter{Name: "A"})
	b := dst.FindEntities(EntityFilter{Name: "B"})
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	path := dst.ShortestPath(a[0].ID, b[0].ID)
	require.NotNil(t, path)
	assert.Equal(t, 2.0, path.TotalWeight)
}
