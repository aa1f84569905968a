// Package relationships links a parent entity to its freshly converted children.
package relationships

import (
	"fmt"

	"github.com/jmountifield/graph-cisco-meraki/pkg/expressions"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/targets"
)

// MappedRule emits a mapped relationship from a child entity to the well-known target of
// Schema.TargetType whenever Condition, a JMESPath expression over the child's properties, is truthy.
type MappedRule struct {
	Schema     models.MappedRelationshipSchema
	Condition  string
	FilterKeys [][]string
}

// DeviceConnectsInternet links devices with a public IP to the Internet.
var DeviceConnectsInternet = MappedRule{
	Schema:     models.DeviceConnectsInternet,
	Condition:  "publicIp",
	FilterKeys: targets.TypeAndKey,
}

type resolvedRule struct {
	MappedRule
	target models.TargetEntity
}

// Assembler emits parent HAS child for every child, then every mapped rule whose source type
// matches the child and whose condition holds.
type Assembler struct {
	class     string
	rules     []resolvedRule
	evaluator *expressions.Evaluator
}

// NewAssembler validates the rule conditions and resolves their targets up front so a bad rule
// fails at start-up.
func NewAssembler(rules ...MappedRule) (*Assembler, error) {
	evaluator := expressions.NewEvaluator()
	resolved := make([]resolvedRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Schema.SourceType == "" {
			return nil, fmt.Errorf("mapped rule %q has no source type", rule.Schema.Type)
		}
		if err := evaluator.Validate(rule.Condition); err != nil {
			return nil, fmt.Errorf("mapped rule %q has an invalid condition: %w", rule.Schema.Type, err)
		}
		target, ok := targets.Lookup(rule.Schema.TargetType)
		if !ok {
			return nil, fmt.Errorf("mapped rule %q targets unknown type %q", rule.Schema.Type, rule.Schema.TargetType)
		}
		resolved = append(resolved, resolvedRule{MappedRule: rule, target: target})
	}

	return &Assembler{
		class:     models.ClassHas,
		rules:     resolved,
		evaluator: evaluator,
	}, nil
}

// Assemble returns the relationships for one parent and its children, in child order.
func (a *Assembler) Assemble(parent *models.Entity, children []*models.Entity) ([]*models.Relationship, error) {
	relationships := make([]*models.Relationship, 0, len(children))
	for _, child := range children {
		relationships = append(relationships, models.NewDirectRelationship(parent, child, a.class))

		mapped, err := a.Mapped(child)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, mapped...)
	}
	return relationships, nil
}

// Mapped returns only the mapped relationships the rules produce for an entity.
func (a *Assembler) Mapped(entity *models.Entity) ([]*models.Relationship, error) {
	var relationships []*models.Relationship
	for _, rule := range a.rules {
		if rule.Schema.SourceType != entity.Type {
			continue
		}

		ok, err := a.evaluator.EvaluateBool(rule.Condition, entity.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s for %s: %w", rule.Schema.Type, entity.Key, err)
		}
		if !ok {
			continue
		}
		relationships = append(relationships, models.NewMappedRelationship(entity, rule.Schema, rule.target, rule.FilterKeys))
	}
	return relationships, nil
}
