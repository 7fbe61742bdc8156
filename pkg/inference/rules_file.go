package inference

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk layout of a rules file. Enabled is a pointer so an
// omitted key defaults to true.
type rulesFile struct {
	Rules []struct {
		ID        string    `yaml:"id"`
		Name      string    `yaml:"name"`
		Enabled   *bool     `yaml:"enabled"`
		Condition Condition `yaml:"condition"`
		Inference Action    `yaml:"inference"`
	} `yaml:"rules"`
}

// ParseRules decodes and validates rules from YAML.
//
// Example document:
//
//	rules:
//	  - name: employer pays employee
//	    condition:
//	      relationship_type: employs
//	      source_type: company
//	      target_type: person
//	    inference:
//	      relationship_type: pays
//	      weight: 1
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		r := Rule{
			ID:        fr.ID,
			Name:      fr.Name,
			Enabled:   fr.Enabled == nil || *fr.Enabled,
			Condition: fr.Condition,
			Inference: fr.Inference,
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data)
}

// ExampleRulesYAML is a commented rules file.
const ExampleRulesYAML = `# Inference rules for kgraph
rules:
  - name: employer pays employee
    condition:
      relationship_type: employs
      source_type: company
      target_type: person
    inference:
      relationship_type: pays
      weight: 1

  - name: author knows topic
    enabled: false
    condition:
      relationship_type: wrote
      source_type: person
      target_type: document
    inference:
      relationship_type: familiar_with
      weight: 0.5
`
