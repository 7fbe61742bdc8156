// Package inference provides rule-based relationship inference for the
// knowledge graph.
//
// A Rule is a declarative condition→action pair:
//
//	for any relationship of Condition.RelationshipType whose endpoints have
//	types Condition.SourceType / Condition.TargetType, ensure a relationship
//	of Inference.RelationshipType (weight Inference.Weight) exists between the
//	same two endpoints.
//
// This package holds no graph state. RuleSet is the rule registry, and Plan
// computes the derivations one forward-chaining round would create. The graph
// applies derivations through its normal relationship creation path, so
// capacity checks and adjacency maintenance apply to inferred relationships
// as well.
//
// Example Usage:
//
//	rules := inference.NewRuleSet()
//	rule, err := rules.Add(inference.Rule{
//		Name:    "employer pays employee",
//		Enabled: true,
//		Condition: inference.Condition{
//			RelationshipType: "employs",
//			SourceType:       "company",
//			TargetType:       "person",
//		},
//		Inference: inference.Action{RelationshipType: "pays", Weight: 1},
//	})
//
//	derivations := inference.Plan(rules.Enabled(), edges, view)
//	for _, d := range derivations {
//		fmt.Printf("%s -[%s]-> %s (rule %s)\n", d.SourceID, d.Type, d.TargetID, d.Rule.Name)
//	}
//
// ELI12:
//
// Think of rules like "if a company employs you, it pays you". The engine
// looks at every "employs" arrow in the graph and, wherever the arrow goes
// from a company to a person, draws a "pays" arrow too. Running it again
// draws nothing new because every "pays" arrow already exists.
package inference

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Property keys stamped on every inferred relationship.
const (
	PropInferred             = "_inferred"
	PropRuleID               = "_ruleId"
	PropRuleName             = "_ruleName"
	PropSourceRelationshipID = "_sourceRelationshipId"
)

var (
	// ErrRuleNotFound is returned when a rule id is not registered.
	ErrRuleNotFound = errors.New("inference rule not found")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid inference rule")
)

var ruleValidate = validator.New()

// Condition selects the relationships a rule fires on.
type Condition struct {
	RelationshipType string `json:"relationshipType" yaml:"relationship_type" validate:"required"`
	SourceType       string `json:"sourceType" yaml:"source_type" validate:"required"`
	TargetType       string `json:"targetType" yaml:"target_type" validate:"required"`
}

// Action describes the relationship a rule ensures exists. A Weight of 0
// follows the graph's zero-weight rule and yields graph.DefaultWeight (1.0);
// set an explicit weight to get any other value.
type Action struct {
	RelationshipType string  `json:"relationshipType" yaml:"relationship_type" validate:"required"`
	Weight           float64 `json:"weight" yaml:"weight" validate:"gte=0"`
}

// Rule is a registered inference rule.
type Rule struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name" validate:"required"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
	Condition Condition `json:"condition" yaml:"condition"`
	Inference Action    `json:"inference" yaml:"inference"`
}

// Validate checks that the rule is complete.
func (r Rule) Validate() error {
	if err := ruleValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// Matches reports whether a relationship of relType between entities of
// sourceType and targetType satisfies the rule's condition.
func (r Rule) Matches(relType, sourceType, targetType string) bool {
	return r.Condition.RelationshipType == relType &&
		r.Condition.SourceType == sourceType &&
		r.Condition.TargetType == targetType
}

// RuleSet is an insertion-ordered registry of rules.
//
// RuleSet is not safe for concurrent use; the knowledge graph guards it with
// its own lock.
type RuleSet struct {
	rules map[string]*Rule
	order []string
}

// NewRuleSet creates an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		rules: make(map[string]*Rule),
	}
}

// Add validates and registers a rule. A rule without an ID gets a generated
// one. Adding a rule whose ID is already registered replaces it in place.
func (s *RuleSet) Add(rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = "rule-" + uuid.NewString()
	}

	if _, exists := s.rules[rule.ID]; !exists {
		s.order = append(s.order, rule.ID)
	}
	stored := rule
	s.rules[rule.ID] = &stored
	return stored, nil
}

// Remove deletes a rule. Returns false if it was not registered.
func (s *RuleSet) Remove(id string) bool {
	if _, exists := s.rules[id]; !exists {
		return false
	}
	delete(s.rules, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of a registered rule.
func (s *RuleSet) Get(id string) (Rule, bool) {
	r, ok := s.rules[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// SetEnabled toggles a rule.
func (s *RuleSet) SetEnabled(id string, enabled bool) (Rule, error) {
	r, ok := s.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	r.Enabled = enabled
	return *r, nil
}

// List returns all rules in registration order.
func (s *RuleSet) List() []Rule {
	out := make([]Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.rules[id])
	}
	return out
}

// Enabled returns the enabled rules in registration order.
func (s *RuleSet) Enabled() []Rule {
	out := make([]Rule, 0, len(s.order))
	for _, id := range s.order {
		if r := s.rules[id]; r.Enabled {
			out = append(out, *r)
		}
	}
	return out
}

// Len returns the number of registered rules.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Reset removes every rule.
func (s *RuleSet) Reset() {
	s.rules = make(map[string]*Rule)
	s.order = nil
}
