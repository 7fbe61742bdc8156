package graph

import (
	"errors"
	"time"

	"github.com/orneryd/kgraph/pkg/events"
	"github.com/orneryd/kgraph/pkg/inference"
)

// AddInferenceRule registers a rule. A rule without an ID gets a generated
// one. Registering does not touch existing data; the rule first applies on
// the next inference pass.
//
// Example:
//
//	rule, err := g.AddInferenceRule(inference.Rule{
//		Name:    "employer pays employee",
//		Enabled: true,
//		Condition: inference.Condition{
//			RelationshipType: "employs",
//			SourceType:       "company",
//			TargetType:       "person",
//		},
//		Inference: inference.Action{RelationshipType: "pays", Weight: 1},
//	})
//	created, _ := g.RunInference() // one "pays" per matching "employs"
func (g *KnowledgeGraph) AddInferenceRule(rule inference.Rule) (inference.Rule, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return inference.Rule{}, err
	}

	stored, err := g.rules.Add(rule)
	if err != nil {
		return inference.Rule{}, err
	}

	g.logger.Debug("inference rule added", "id", stored.ID, "name", stored.Name)
	g.emit(events.Event{Name: events.InferenceRuleAdded, RuleID: stored.ID, RuleName: stored.Name})
	return stored, nil
}

// RemoveInferenceRule unregisters a rule. Relationships it already inferred
// stay in the graph. Returns false if the rule does not exist.
func (g *KnowledgeGraph) RemoveInferenceRule(id string) (bool, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return false, err
	}
	return g.rules.Remove(id), nil
}

// SetInferenceRuleEnabled enables or disables a rule.
func (g *KnowledgeGraph) SetInferenceRuleEnabled(id string, enabled bool) (inference.Rule, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return inference.Rule{}, err
	}
	return g.rules.SetEnabled(id, enabled)
}

// InferenceRules returns every registered rule in registration order.
func (g *KnowledgeGraph) InferenceRules() []inference.Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.rules.List()
}

// RunInference runs a full inference pass and returns the relationships it
// created.
//
// Each enabled rule fires on every relationship of its condition type whose
// endpoint types match, creating the inferred relationship unless one of the
// same type already connects the same endpoints. Rounds repeat, so inferred
// relationships may trigger further rules, until a round creates nothing or
// MaxInferenceDepth rounds have run. A second call with unchanged input
// therefore returns no relationships.
//
// Inference is best-effort: when the relationship limit is reached the pass
// stops and returns what it created so far without an error.
func (g *KnowledgeGraph) RunInference() ([]Relationship, error) {
	g.lock()
	defer g.unlock()

	if err := g.checkEnabled(); err != nil {
		return nil, err
	}

	created := g.runInferenceLocked()
	out := make([]Relationship, 0, len(created))
	for _, r := range created {
		out = append(out, copyRelationship(r))
	}
	return out, nil
}

// runInferenceLocked applies the enabled rules until a fixpoint or the round
// limit. Nested calls return immediately.
func (g *KnowledgeGraph) runInferenceLocked() []*Relationship {
	if g.inferring {
		return nil
	}
	g.inferring = true
	defer func() { g.inferring = false }()

	rules := g.rules.Enabled()
	var created []*Relationship

	if len(rules) > 0 {
	rounds:
		for round := 0; round < g.config.MaxInferenceDepth; round++ {
			derivations := inference.Plan(rules, g.edgesLocked(), lockedView{g})
			if len(derivations) == 0 {
				break
			}

			for _, d := range derivations {
				r, err := g.insertRelationshipLocked(RelationshipInput{
					SourceID:   d.SourceID,
					TargetID:   d.TargetID,
					Type:       d.Type,
					Weight:     d.Weight,
					Properties: d.Properties(),
				}, time.Time{})
				if err != nil {
					if errors.Is(err, ErrCapacityExceeded) {
						g.logger.Warn("inference stopped at relationship capacity",
							"rule", d.Rule.Name, "created", len(created))
						break rounds
					}
					g.logger.Warn("inferred relationship skipped", "rule", d.Rule.Name, "err", err)
					continue
				}
				g.inferenceCount++
				created = append(created, r)
			}
		}
	}

	g.logger.Info("inference complete", "new", len(created), "total", g.inferenceCount)
	g.emit(events.Event{
		Name:             events.InferenceComplete,
		NewRelationships: len(created),
		TotalInferences:  g.inferenceCount,
	})
	return created
}

// edgesLocked lists every relationship in insertion order for planning.
func (g *KnowledgeGraph) edgesLocked() []inference.Edge {
	rels := g.sortedRelationships()
	edges := make([]inference.Edge, 0, len(rels))
	for _, r := range rels {
		edges = append(edges, inference.Edge{
			ID:       r.ID,
			SourceID: r.SourceID,
			TargetID: r.TargetID,
			Type:     r.Type,
		})
	}
	return edges
}

// lockedView exposes the graph to inference.Plan while the write lock is
// held.
type lockedView struct {
	g *KnowledgeGraph
}

func (v lockedView) EntityType(id string) (string, bool) {
	e, ok := v.g.entities[id]
	if !ok {
		return "", false
	}
	return e.Type, true
}

func (v lockedView) HasRelationship(sourceID, targetID, relType string) bool {
	return v.g.hasRelationshipLocked(sourceID, targetID, relType, 0)
}

var _ inference.Graph = lockedView{}
