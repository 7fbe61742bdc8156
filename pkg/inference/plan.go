package inference

// Edge is the minimal view of a relationship that planning needs.
type Edge struct {
	ID       string
	SourceID string
	TargetID string
	Type     string
}

// Graph resolves entity types and relationship existence for Plan.
type Graph interface {
	// EntityType returns the type of an entity, or false if it is absent.
	EntityType(id string) (string, bool)
	// HasRelationship reports whether a relationship of relType already
	// connects sourceID to targetID.
	HasRelationship(sourceID, targetID, relType string) bool
}

// Derivation is one relationship a rule wants created.
type Derivation struct {
	Rule                 Rule
	SourceRelationshipID string
	SourceID             string
	TargetID             string
	Type                 string
	Weight               float64
}

// Properties returns the provenance properties for the inferred relationship.
func (d Derivation) Properties() map[string]any {
	return map[string]any{
		PropInferred:             true,
		PropRuleID:               d.Rule.ID,
		PropRuleName:             d.Rule.Name,
		PropSourceRelationshipID: d.SourceRelationshipID,
	}
}

type derivedKey struct {
	source, target, relType string
}

// Plan returns the derivations one inference round produces.
//
// Rules are visited in the given order and, for each rule, edges in the given
// order. A derivation is skipped when the graph already holds a relationship
// of the inferred type between the same endpoints, or when an earlier
// derivation in this round already targets it, so applying the result never
// creates duplicates.
func Plan(rules []Rule, edges []Edge, g Graph) []Derivation {
	var out []Derivation
	planned := make(map[derivedKey]struct{})

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, e := range edges {
			if e.Type != rule.Condition.RelationshipType {
				continue
			}
			sourceType, ok := g.EntityType(e.SourceID)
			if !ok {
				continue
			}
			targetType, ok := g.EntityType(e.TargetID)
			if !ok {
				continue
			}
			if !rule.Matches(e.Type, sourceType, targetType) {
				continue
			}

			key := derivedKey{e.SourceID, e.TargetID, rule.Inference.RelationshipType}
			if _, dup := planned[key]; dup {
				continue
			}
			if g.HasRelationship(e.SourceID, e.TargetID, rule.Inference.RelationshipType) {
				continue
			}

			planned[key] = struct{}{}
			out = append(out, Derivation{
				Rule:                 rule,
				SourceRelationshipID: e.ID,
				SourceID:             e.SourceID,
				TargetID:             e.TargetID,
				Type:                 rule.Inference.RelationshipType,
				Weight:               rule.Inference.Weight,
			})
		}
	}

	return out
}
