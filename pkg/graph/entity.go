package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/kgraph/pkg/events"
)

// AddEntity adds an entity, or merges into an existing one.
//
// With deduplication enabled, an input whose (Name, Type) matches an existing
// entity merges its Properties into that entity (incoming keys overwrite),
// bumps UpdatedAt and returns it. No id is assigned and no capacity check is
// made in that case.
//
// Otherwise the entity is inserted with a new id after checking capacity.
// With AutoInference configured, a full inference pass follows.
//
// Returns:
//   - the stored entity (a copy)
//   - ErrInvalidData if Type or Name is empty
//   - ErrCapacityExceeded if MaxEntities is reached
//   - ErrDisabled if the graph is disabled
//
// Example:
//
//	alice, _ := g.AddEntity(graph.EntityInput{
//		Type:       "person",
//		Name:       "Alice",
//		Properties: map[string]any{"age": 30},
//	})
//	again, _ := g.AddEntity(graph.EntityInput{
//		Type:       "person",
//		Name:       "Alice",
//		Properties: map[string]any{"city": "NYC"},
//	})
//	// again.ID == alice.ID, again.Properties has both age and city
func (g *KnowledgeGraph) AddEntity(in EntityInput) (Entity, error) {
	if err := validate.Struct(in); err != nil {
		return Entity{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return Entity{}, err
	}

	if existing := g.findDuplicateLocked(in.Name, in.Type); existing != nil {
		g.mergePropertiesLocked(existing, in.Properties)
		g.logger.Debug("entity deduplicated", "id", existing.ID, "type", existing.Type, "name", existing.Name)
		return copyEntity(existing), nil
	}

	e, err := g.insertEntityLocked(in, time.Time{}, time.Time{})
	if err != nil {
		return Entity{}, err
	}

	if g.config.AutoInference {
		g.runInferenceLocked()
	}
	return copyEntity(e), nil
}

// UpdateEntity applies a partial update to an entity.
//
// Returns ErrEntityNotFound if the entity is absent, and ErrDuplicateEntity
// if deduplication is enabled and the new (Name, Type) already belongs to a
// different entity.
func (g *KnowledgeGraph) UpdateEntity(id string, update EntityUpdate) (Entity, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return Entity{}, err
	}

	e, ok := g.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}

	name, typ := e.Name, e.Type
	if update.Name != nil {
		name = *update.Name
	}
	if update.Type != nil {
		typ = *update.Type
	}
	if name == "" || typ == "" {
		return Entity{}, fmt.Errorf("%w: name and type must not be empty", ErrInvalidData)
	}

	if g.config.DeduplicateEntities && (name != e.Name || typ != e.Type) {
		if other, taken := g.byKey[entityKey{name, typ}]; taken && other != id {
			return Entity{}, fmt.Errorf("%w: %s/%s", ErrDuplicateEntity, typ, name)
		}
		delete(g.byKey, entityKey{e.Name, e.Type})
		g.byKey[entityKey{name, typ}] = id
	}

	e.Name, e.Type = name, typ
	if update.Source != nil {
		e.Source = *update.Source
	}
	for k, v := range update.Properties {
		e.Properties[k] = v
	}
	e.UpdatedAt = g.now()

	g.emit(events.Event{Name: events.EntityUpdated, EntityID: e.ID, EntityName: e.Name})
	return copyEntity(e), nil
}

// RemoveEntity removes an entity and every relationship incident to it.
// Returns false if the entity does not exist.
func (g *KnowledgeGraph) RemoveEntity(id string) (bool, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return false, err
	}

	e, ok := g.entities[id]
	if !ok {
		return false, nil
	}

	incident := make([]*Relationship, 0, len(g.outgoing[id])+len(g.incoming[id]))
	for relID := range g.outgoing[id] {
		incident = append(incident, g.relationships[relID])
	}
	for relID := range g.incoming[id] {
		if _, self := g.outgoing[id][relID]; !self {
			incident = append(incident, g.relationships[relID])
		}
	}
	sortRelationships(incident)
	for _, r := range incident {
		g.removeRelationshipLocked(r.ID)
	}

	delete(g.adjacency, id)
	delete(g.outgoing, id)
	delete(g.incoming, id)
	if g.config.DeduplicateEntities && g.byKey[entityKey{e.Name, e.Type}] == id {
		delete(g.byKey, entityKey{e.Name, e.Type})
	}
	delete(g.entities, id)

	g.logger.Debug("entity removed", "id", id, "relationships", len(incident))
	g.emit(events.Event{Name: events.EntityRemoved, EntityID: id})
	return true, nil
}

// GetEntity returns a copy of an entity.
func (g *KnowledgeGraph) GetEntity(id string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entities[id]
	if !ok {
		return Entity{}, false
	}
	return copyEntity(e), true
}

// FindEntities returns the entities matching filter in insertion order.
func (g *KnowledgeGraph) FindEntities(filter EntityFilter) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	name := strings.ToLower(filter.Name)
	out := make([]Entity, 0)
	for _, e := range g.sortedEntities() {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Source != "" && e.Source != filter.Source {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		out = append(out, copyEntity(e))
	}
	return out
}

// findDuplicateLocked returns the entity sharing (name, typ) when
// deduplication is enabled.
func (g *KnowledgeGraph) findDuplicateLocked(name, typ string) *Entity {
	if !g.config.DeduplicateEntities {
		return nil
	}
	id, ok := g.byKey[entityKey{name, typ}]
	if !ok {
		return nil
	}
	return g.entities[id]
}

func (g *KnowledgeGraph) mergePropertiesLocked(e *Entity, props map[string]any) {
	for k, v := range props {
		e.Properties[k] = v
	}
	e.UpdatedAt = g.now()
	g.emit(events.Event{Name: events.EntityUpdated, EntityID: e.ID, EntityName: e.Name})
}

// insertEntityLocked checks capacity and stores a new entity. Zero
// timestamps are replaced with the current time.
func (g *KnowledgeGraph) insertEntityLocked(in EntityInput, createdAt, updatedAt time.Time) (*Entity, error) {
	if len(g.entities) >= g.config.MaxEntities {
		return nil, fmt.Errorf("%w: %d entities", ErrCapacityExceeded, g.config.MaxEntities)
	}

	now := g.now()
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	e := &Entity{
		ID:         "ent-" + uuid.NewString(),
		Type:       in.Type,
		Name:       in.Name,
		Source:     in.Source,
		Properties: copyProperties(in.Properties),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		seq:        g.nextSeq(),
	}
	g.entities[e.ID] = e
	g.adjacency[e.ID] = make(map[string]struct{})
	if g.config.DeduplicateEntities {
		g.byKey[entityKey{e.Name, e.Type}] = e.ID
	}

	g.logger.Debug("entity added", "id", e.ID, "type", e.Type, "name", e.Name)
	g.emit(events.Event{Name: events.EntityAdded, EntityID: e.ID, EntityType: e.Type, EntityName: e.Name})
	return e, nil
}
