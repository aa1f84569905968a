package graph

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
)

// Statement is one parameterized Cypher query.
type Statement struct {
	Kind   string
	Cypher string
	Params map[string]any
}

// BuildStatements turns a run's entities and relationships into UNWIND batches grouped by label.
// Entities come first so relationship endpoints always exist when matched.
func BuildStatements(runID string, entities []*models.Entity, relationships []*models.Relationship) []Statement {
	var statements []Statement
	statements = append(statements, entityStatements(runID, entities)...)
	statements = append(statements, directStatements(runID, relationships)...)
	statements = append(statements, mappedStatements(runID, relationships)...)
	return statements
}

func entityStatements(runID string, entities []*models.Entity) []Statement {
	byLabel := make(map[string][]map[string]any)
	for _, entity := range entities {
		label := sanitizeLabel(entity.Type)
		byLabel[label] = append(byLabel[label], map[string]any{
			"_key":  entity.Key,
			"props": nodeProperties(runID, entity),
		})
	}

	statements := make([]Statement, 0, len(byLabel))
	for _, label := range sortedKeys(byLabel) {
		statements = append(statements, Statement{
			Kind: "entity",
			Cypher: fmt.Sprintf(`
				UNWIND $batch AS row
				MERGE (e:%s {_key: row._key})
				SET e = row.props
			`, label),
			Params: map[string]any{"batch": byLabel[label]},
		})
	}
	return statements
}

func directStatements(runID string, relationships []*models.Relationship) []Statement {
	byLabel := make(map[string][]map[string]any)
	for _, rel := range relationships {
		if rel.IsMapped() {
			continue
		}
		label := relationshipLabel(rel.Class)
		byLabel[label] = append(byLabel[label], map[string]any{
			"_key":  rel.Key,
			"from":  rel.FromKey,
			"to":    rel.ToKey,
			"props": relationshipProperties(runID, rel),
		})
	}

	statements := make([]Statement, 0, len(byLabel))
	for _, label := range sortedKeys(byLabel) {
		statements = append(statements, Statement{
			Kind: "relationship",
			Cypher: fmt.Sprintf(`
				UNWIND $batch AS row
				MATCH (from {_key: row.from})
				MATCH (to {_key: row.to})
				MERGE (from)-[r:%s {_key: row._key}]->(to)
				SET r = row.props
			`, label),
			Params: map[string]any{"batch": byLabel[label]},
		})
	}
	return statements
}

// mappedStatements MERGE the target on its filter keys, then link it to the source in the mapped direction.
func mappedStatements(runID string, relationships []*models.Relationship) []Statement {
	type group struct {
		targetLabel string
		relLabel    string
		filterKeys  []string
		reverse     bool
	}

	groups := make(map[string]group)
	batches := make(map[string][]map[string]any)
	for _, rel := range relationships {
		if !rel.IsMapped() {
			continue
		}
		mapping := rel.Mapping
		target := mapping.TargetEntity

		filterKeys := flattenFilterKeys(mapping.TargetFilterKeys)
		filter := make(map[string]any, len(filterKeys))
		for _, key := range filterKeys {
			if v, ok := target.FilterValue(key); ok {
				filter[key] = propertyValue(v)
			}
		}

		g := group{
			targetLabel: sanitizeLabel(target.Type),
			relLabel:    relationshipLabel(rel.Class),
			filterKeys:  filterKeys,
			reverse:     mapping.Direction == models.DirectionReverse,
		}
		id := fmt.Sprintf("%s|%s|%s|%t", g.targetLabel, g.relLabel, strings.Join(filterKeys, ","), g.reverse)
		groups[id] = g
		batches[id] = append(batches[id], map[string]any{
			"_key":         rel.Key,
			"source":       mapping.SourceEntityKey,
			"filter":       filter,
			"target_props": targetProperties(target),
			"props":        relationshipProperties(runID, rel),
		})
	}

	statements := make([]Statement, 0, len(groups))
	for _, id := range sortedKeys(groups) {
		g := groups[id]

		matchers := make([]string, len(g.filterKeys))
		for i, key := range g.filterKeys {
			matchers[i] = fmt.Sprintf("%s: row.filter.%s", key, key)
		}

		pattern := "(source)-[r:%s {_key: row._key}]->(target)"
		if g.reverse {
			pattern = "(target)-[r:%s {_key: row._key}]->(source)"
		}

		statements = append(statements, Statement{
			Kind: "mapped_relationship",
			Cypher: fmt.Sprintf(`
				UNWIND $batch AS row
				MATCH (source {_key: row.source})
				MERGE (target:%s {%s})
				ON CREATE SET target += row.target_props
				MERGE `+pattern+`
				SET r = row.props
			`, g.targetLabel, strings.Join(matchers, ", "), g.relLabel),
			Params: map[string]any{"batch": batches[id]},
		})
	}
	return statements
}

func nodeProperties(runID string, entity *models.Entity) map[string]any {
	props := make(map[string]any, len(entity.Properties)+5)
	for k, v := range entity.Properties {
		if v == nil {
			continue
		}
		props[k] = propertyValue(v)
	}
	props["_key"] = entity.Key
	props["_type"] = entity.Type
	props["_class"] = slices.Clone(entity.Class)
	props["_run_id"] = runID
	if len(entity.Tags) > 0 {
		props["tags"] = slices.Clone(entity.Tags)
	}
	return props
}

func relationshipProperties(runID string, rel *models.Relationship) map[string]any {
	props := make(map[string]any, len(rel.Properties)+4)
	for k, v := range rel.Properties {
		if v == nil {
			continue
		}
		props[k] = propertyValue(v)
	}
	props["_key"] = rel.Key
	props["_type"] = rel.Type
	props["_class"] = rel.Class
	props["_run_id"] = runID
	return props
}

func targetProperties(target models.TargetEntity) map[string]any {
	props := make(map[string]any, len(target.Properties)+3)
	for k, v := range target.Properties {
		if v == nil {
			continue
		}
		props[k] = propertyValue(v)
	}
	props["_key"] = target.Key
	props["_type"] = target.Type
	props["_class"] = slices.Clone(target.Class)
	return props
}

// propertyValue keeps primitives and string lists, everything else is stored as JSON text.
func propertyValue(v any) any {
	switch val := v.(type) {
	case string, bool, int, int32, int64, float32, float64, []string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func flattenFilterKeys(filterKeys [][]string) []string {
	var keys []string
	for _, group := range filterKeys {
		for _, key := range group {
			if safe := sanitizeLabel(key); safe == key && !slices.Contains(keys, key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func relationshipLabel(class string) string {
	return sanitizeLabel(strings.ToUpper(class))
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Entity"
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
