package graph

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/kgraph/pkg/events"
)

// AddRelationship adds a relationship between two existing entities.
//
// The adjacency index is updated before returning: the target joins the
// source's neighbor set, and for bidirectional relationships the source joins
// the target's. With AutoInference configured, a full inference pass follows.
//
// Returns:
//   - the stored relationship (a copy)
//   - ErrInvalidData if a required field is missing or Weight is negative,
//     NaN or infinite
//   - ErrEntityNotFound if either endpoint is absent
//   - ErrCapacityExceeded if MaxRelationships is reached
//   - ErrDisabled if the graph is disabled
//
// Example:
//
//	rel, err := g.AddRelationship(graph.RelationshipInput{
//		SourceID: alice.ID,
//		TargetID: bob.ID,
//		Type:     "knows",
//		Weight:   0.8,
//		Bidirectional: true,
//	})
func (g *KnowledgeGraph) AddRelationship(in RelationshipInput) (Relationship, error) {
	if err := validate.Struct(in); err != nil {
		return Relationship{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return Relationship{}, err
	}

	r, err := g.insertRelationshipLocked(in, time.Time{})
	if err != nil {
		return Relationship{}, err
	}

	if g.config.AutoInference {
		g.runInferenceLocked()
	}
	return copyRelationship(r), nil
}

// RemoveRelationship removes a relationship and rebuilds the adjacency
// entries of its endpoints. Returns false if it does not exist.
func (g *KnowledgeGraph) RemoveRelationship(id string) (bool, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return false, err
	}
	return g.removeRelationshipLocked(id), nil
}

// GetRelationship returns a copy of a relationship.
func (g *KnowledgeGraph) GetRelationship(id string) (Relationship, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.relationships[id]
	if !ok {
		return Relationship{}, false
	}
	return copyRelationship(r), true
}

// GetRelationships returns the relationships incident to an entity in
// insertion order. Outgoing also includes bidirectional relationships whose
// target is the entity. An empty direction means Both.
func (g *KnowledgeGraph) GetRelationships(entityID string, direction Direction) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if direction == "" {
		direction = Both
	}

	selected := make(map[string]*Relationship)
	if direction == Outgoing || direction == Both {
		for relID := range g.outgoing[entityID] {
			selected[relID] = g.relationships[relID]
		}
	}
	for relID := range g.incoming[entityID] {
		r := g.relationships[relID]
		switch direction {
		case Incoming, Both:
			selected[relID] = r
		case Outgoing:
			if r.Bidirectional {
				selected[relID] = r
			}
		}
	}

	rels := make([]*Relationship, 0, len(selected))
	for _, r := range selected {
		rels = append(rels, r)
	}
	sortRelationships(rels)

	out := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		out = append(out, copyRelationship(r))
	}
	return out
}

// FindRelationships returns the relationships matching filter in insertion
// order.
func (g *KnowledgeGraph) FindRelationships(filter RelationshipFilter) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Relationship, 0)
	for _, r := range g.sortedRelationships() {
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.SourceType != "" {
			if src := g.entities[r.SourceID]; src == nil || src.Type != filter.SourceType {
				continue
			}
		}
		if filter.TargetType != "" {
			if tgt := g.entities[r.TargetID]; tgt == nil || tgt.Type != filter.TargetType {
				continue
			}
		}
		out = append(out, copyRelationship(r))
	}
	return out
}

// insertRelationshipLocked validates endpoints and capacity, then stores the
// relationship and updates the indexes. Nothing changes on error.
func (g *KnowledgeGraph) insertRelationshipLocked(in RelationshipInput, createdAt time.Time) (*Relationship, error) {
	if _, ok := g.entities[in.SourceID]; !ok {
		return nil, fmt.Errorf("%w: source %s", ErrEntityNotFound, in.SourceID)
	}
	if _, ok := g.entities[in.TargetID]; !ok {
		return nil, fmt.Errorf("%w: target %s", ErrEntityNotFound, in.TargetID)
	}
	if len(g.relationships) >= g.config.MaxRelationships {
		return nil, fmt.Errorf("%w: %d relationships", ErrCapacityExceeded, g.config.MaxRelationships)
	}
	if in.Weight < 0 || math.IsNaN(in.Weight) || math.IsInf(in.Weight, 0) {
		return nil, fmt.Errorf("%w: weight %v", ErrInvalidData, in.Weight)
	}

	weight := in.Weight
	if weight == 0 {
		weight = DefaultWeight
	}
	if createdAt.IsZero() {
		createdAt = g.now()
	}

	r := &Relationship{
		ID:            "rel-" + uuid.NewString(),
		SourceID:      in.SourceID,
		TargetID:      in.TargetID,
		Type:          in.Type,
		Weight:        weight,
		Properties:    copyProperties(in.Properties),
		Bidirectional: in.Bidirectional,
		CreatedAt:     createdAt,
		seq:           g.nextSeq(),
	}
	g.relationships[r.ID] = r
	indexAdd(g.outgoing, r.SourceID, r.ID)
	indexAdd(g.incoming, r.TargetID, r.ID)

	indexAdd(g.adjacency, r.SourceID, r.TargetID)
	if r.Bidirectional {
		indexAdd(g.adjacency, r.TargetID, r.SourceID)
	}

	g.logger.Debug("relationship added", "id", r.ID, "type", r.Type, "source", r.SourceID, "target", r.TargetID)
	g.emit(events.Event{
		Name:             events.RelationshipAdded,
		RelationshipID:   r.ID,
		SourceID:         r.SourceID,
		TargetID:         r.TargetID,
		RelationshipType: r.Type,
	})
	return r, nil
}

func (g *KnowledgeGraph) removeRelationshipLocked(id string) bool {
	r, ok := g.relationships[id]
	if !ok {
		return false
	}

	delete(g.relationships, id)
	indexRemove(g.outgoing, r.SourceID, id)
	indexRemove(g.incoming, r.TargetID, id)

	g.rebuildAdjacencyLocked(r.SourceID)
	if r.TargetID != r.SourceID {
		g.rebuildAdjacencyLocked(r.TargetID)
	}

	g.logger.Debug("relationship removed", "id", id)
	g.emit(events.Event{Name: events.RelationshipRemoved, RelationshipID: id})
	return true
}

// rebuildAdjacencyLocked recomputes an entity's neighbor set from its
// incident relationships.
func (g *KnowledgeGraph) rebuildAdjacencyLocked(entityID string) {
	if _, ok := g.entities[entityID]; !ok {
		return
	}

	neighbors := make(map[string]struct{})
	for relID := range g.outgoing[entityID] {
		neighbors[g.relationships[relID].TargetID] = struct{}{}
	}
	for relID := range g.incoming[entityID] {
		if r := g.relationships[relID]; r.Bidirectional {
			neighbors[r.SourceID] = struct{}{}
		}
	}
	g.adjacency[entityID] = neighbors
}

// hasRelationshipLocked reports whether a relationship of relType connects
// sourceID to targetID. When maxSeq is non-zero only relationships created at
// or before that sequence number count.
func (g *KnowledgeGraph) hasRelationshipLocked(sourceID, targetID, relType string, maxSeq uint64) bool {
	for relID := range g.outgoing[sourceID] {
		r := g.relationships[relID]
		if r.TargetID != targetID || r.Type != relType {
			continue
		}
		if maxSeq == 0 || r.seq <= maxSeq {
			return true
		}
	}
	return false
}

// hop is one traversable step from an entity.
type hop struct {
	rel *Relationship
	to  string
}

// hopsLocked returns the steps traversal may take from an entity, in
// relationship insertion order: outgoing relationships, plus bidirectional
// relationships where the entity is the target.
func (g *KnowledgeGraph) hopsLocked(entityID string) []hop {
	rels := make([]*Relationship, 0, len(g.outgoing[entityID]))
	for relID := range g.outgoing[entityID] {
		rels = append(rels, g.relationships[relID])
	}
	for relID := range g.incoming[entityID] {
		r := g.relationships[relID]
		if r.Bidirectional && r.SourceID != entityID {
			rels = append(rels, r)
		}
	}
	sortRelationships(rels)

	hops := make([]hop, 0, len(rels))
	for _, r := range rels {
		to := r.TargetID
		if to == entityID && r.SourceID != entityID {
			to = r.SourceID
		}
		hops = append(hops, hop{rel: r, to: to})
	}
	return hops
}

func indexAdd(index map[string]map[string]struct{}, key, value string) {
	set := index[key]
	if set == nil {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[value] = struct{}{}
}

func indexRemove(index map[string]map[string]struct{}, key, value string) {
	if set := index[key]; set != nil {
		delete(set, value)
	}
}
