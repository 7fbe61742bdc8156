package graph

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultWeight is used for relationships created with a zero weight.
const DefaultWeight = 1.0

var validate = validator.New()

// Entity is a typed, named node in the graph.
//
// Identity is ID. (Name, Type) is a soft uniqueness key used only when
// deduplication is enabled.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Source     string         `json:"source,omitempty"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	seq uint64
}

// Relationship is a typed, weighted edge between two entities. It is directed
// unless Bidirectional is set, in which case traversal may cross it in either
// direction. A bidirectional relationship is still a single record.
type Relationship struct {
	ID            string         `json:"id"`
	SourceID      string         `json:"sourceId"`
	TargetID      string         `json:"targetId"`
	Type          string         `json:"type"`
	Weight        float64        `json:"weight"`
	Properties    map[string]any `json:"properties"`
	Bidirectional bool           `json:"bidirectional"`
	CreatedAt     time.Time      `json:"createdAt"`

	seq uint64
}

// EntityInput describes an entity to add.
type EntityInput struct {
	Type       string         `json:"type" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	Source     string         `json:"source,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EntityUpdate is a partial update. Nil fields are left unchanged; Properties
// are merged into the existing map, overwriting existing keys.
type EntityUpdate struct {
	Type       *string
	Name       *string
	Source     *string
	Properties map[string]any
}

// RelationshipInput describes a relationship to add. A zero Weight means
// DefaultWeight; weights must not be negative.
type RelationshipInput struct {
	SourceID      string         `json:"sourceId" validate:"required"`
	TargetID      string         `json:"targetId" validate:"required"`
	Type          string         `json:"type" validate:"required"`
	Weight        float64        `json:"weight" validate:"gte=0"`
	Properties    map[string]any `json:"properties,omitempty"`
	Bidirectional bool           `json:"bidirectional,omitempty"`
}

// EntityFilter narrows FindEntities. Empty fields match everything. Type and
// Source match exactly; Name matches as a case-insensitive substring.
type EntityFilter struct {
	Type   string
	Source string
	Name   string
}

// RelationshipFilter narrows FindRelationships. Empty fields match
// everything. SourceType and TargetType match the type of the resolved
// endpoint entities.
type RelationshipFilter struct {
	Type       string
	SourceType string
	TargetType string
}

// Direction selects relationships relative to an entity.
type Direction string

const (
	// Outgoing selects relationships whose source is the entity, plus
	// bidirectional relationships whose target is the entity.
	Outgoing Direction = "outgoing"
	// Incoming selects relationships whose target is the entity.
	Incoming Direction = "incoming"
	// Both selects every relationship incident to the entity.
	Both Direction = "both"
)

// QueryMode selects how Query enumerates paths.
type QueryMode int

const (
	// AllSimplePaths enumerates every simple path within the depth bounds.
	// Each frontier entry carries its own visited set, so an entity may be
	// reached again through a different route. Dense or cyclic graphs can
	// produce very many paths; bound MaxDepth or MaxPaths tightly.
	AllSimplePaths QueryMode = iota
	// FewestPaths shares one visited set across the traversal, so each
	// entity appears as a path end at most once, via its fewest-hop route.
	FewestPaths
)

// GraphPattern constrains a Query.
type GraphPattern struct {
	// EntityTypes, when non-empty, restricts every hop target to these types.
	EntityTypes []string
	// RelationshipTypes, when non-empty, restricts every hop to these types.
	RelationshipTypes []string
	// MinDepth is the minimum number of hops for an emitted path.
	MinDepth int
	// MaxDepth bounds expansion; 0 uses the graph's MaxInferenceDepth.
	MaxDepth int
	// MaxPaths stops the query after this many paths; 0 means unlimited.
	MaxPaths int
	// Mode selects the enumeration strategy.
	Mode QueryMode
}

// GraphPath is an ordered walk: Relationships[i] connects Entities[i] and
// Entities[i+1]. TotalWeight is the sum of relationship weights.
type GraphPath struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	TotalWeight   float64        `json:"totalWeight"`
}

// Len returns the number of hops in the path.
func (p *GraphPath) Len() int {
	return len(p.Relationships)
}

// String renders the path as entity names joined by relationship types.
func (p *GraphPath) String() string {
	if len(p.Entities) == 0 {
		return ""
	}
	s := p.Entities[0].Name
	for i, r := range p.Relationships {
		s += fmt.Sprintf(" -[%s]-> %s", r.Type, p.Entities[i+1].Name)
	}
	return s
}

// Stats summarizes the graph.
type Stats struct {
	TotalEntities      int            `json:"totalEntities"`
	TotalRelationships int            `json:"totalRelationships"`
	TotalInferences    int64          `json:"totalInferences"`
	EntityTypes        map[string]int `json:"entityTypes"`
	RelationshipTypes  map[string]int `json:"relationshipTypes"`
	AverageDegree      float64        `json:"averageDegree"`
}

// Snapshot is a plain copy of every entity and relationship, suitable as
// Merge input in another graph.
type Snapshot struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// MergeResult reports what Merge did.
type MergeResult struct {
	EntitiesAdded        int `json:"entitiesAdded"`
	RelationshipsAdded   int `json:"relationshipsAdded"`
	DuplicatesSkipped    int `json:"duplicatesSkipped"`
	RelationshipsSkipped int `json:"relationshipsSkipped"`
}

func copyProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func copyEntity(e *Entity) Entity {
	c := *e
	c.Properties = copyProperties(e.Properties)
	return c
}

func copyRelationship(r *Relationship) Relationship {
	c := *r
	c.Properties = copyProperties(r.Properties)
	return c
}
