package models

import (
	"fmt"
	"strings"
)

// Entity is a normalized graph node produced by a converter.
type Entity struct {
	Key        string     `json:"_key" yaml:"_key"`
	Type       string     `json:"_type" yaml:"_type"`
	Class      []string   `json:"_class" yaml:"_class"`
	Properties Properties `json:"properties" yaml:"properties"`
	Tags       []string   `json:"tags,omitempty" yaml:"tags,omitempty"`

	// RawSource is the record the entity was converted from. Read-only.
	RawSource RawRecord `json:"-" yaml:"-"`
	// Original is the record as fetched, before converters cleared fields such as tags on
	// RawSource. Duplicate detection compares it.
	Original RawRecord `json:"-" yaml:"-"`
}

// Get returns a property and whether it is present (a present property may hold nil).
func (e *Entity) Get(name string) (any, bool) {
	v, ok := e.Properties[name]
	return v, ok
}

// GetString returns a string property or "" when absent or not a string.
func (e *Entity) GetString(name string) string {
	s, _ := e.Properties[name].(string)
	return s
}

// RelationshipDirection is the direction of a mapped relationship relative to its source entity.
type RelationshipDirection string

const (
	DirectionForward RelationshipDirection = "FORWARD"
	DirectionReverse RelationshipDirection = "REVERSE"
)

// TargetEntity describes a node that is matched rather than converted, e.g. the Internet.
type TargetEntity struct {
	Key        string         `json:"_key" yaml:"_key"`
	Type       string         `json:"_type" yaml:"_type"`
	Class      []string       `json:"_class" yaml:"_class"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// FilterValue returns the value a target filter key resolves to on the descriptor.
func (t TargetEntity) FilterValue(key string) (any, bool) {
	switch key {
	case "_key":
		return t.Key, true
	case "_type":
		return t.Type, true
	case "_class":
		return t.Class, true
	}
	v, ok := t.Properties[key]
	return v, ok
}

// RelationshipMapping resolves a relationship target by matching filter keys against a descriptor.
type RelationshipMapping struct {
	SourceEntityKey  string                `json:"sourceEntityKey" yaml:"sourceEntityKey"`
	Direction        RelationshipDirection `json:"relationshipDirection" yaml:"relationshipDirection"`
	TargetFilterKeys [][]string            `json:"targetFilterKeys" yaml:"targetFilterKeys"`
	TargetEntity     TargetEntity          `json:"targetEntity" yaml:"targetEntity"`
}

// Relationship is either direct (FromKey/ToKey) or mapped (Mapping set).
type Relationship struct {
	Key        string               `json:"_key" yaml:"_key"`
	Type       string               `json:"_type" yaml:"_type"`
	Class      string               `json:"_class" yaml:"_class"`
	FromKey    string               `json:"_fromEntityKey,omitempty" yaml:"_fromEntityKey,omitempty"`
	ToKey      string               `json:"_toEntityKey,omitempty" yaml:"_toEntityKey,omitempty"`
	Mapping    *RelationshipMapping `json:"_mapping,omitempty" yaml:"_mapping,omitempty"`
	Properties map[string]any       `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// IsMapped reports whether the target is resolved by matching instead of by key.
func (r *Relationship) IsMapped() bool {
	return r.Mapping != nil
}

// SourceKey returns the key of the entity the relationship was emitted for.
func (r *Relationship) SourceKey() string {
	if r.Mapping != nil {
		return r.Mapping.SourceEntityKey
	}
	return r.FromKey
}

// NewDirectRelationship links two converted entities.
func NewDirectRelationship(from, to *Entity, class string) *Relationship {
	verb := strings.ToLower(class)
	return &Relationship{
		Key:     fmt.Sprintf("%s|%s|%s", from.Key, verb, to.Key),
		Type:    fmt.Sprintf("%s_%s_%s", from.Type, verb, trimPrefix(to.Type, from.Type)),
		Class:   class,
		FromKey: from.Key,
		ToKey:   to.Key,
	}
}

// NewMappedRelationship links a converted entity to a matched target.
func NewMappedRelationship(source *Entity, schema MappedRelationshipSchema, target TargetEntity, filterKeys [][]string) *Relationship {
	return &Relationship{
		Key:   fmt.Sprintf("%s|%s|%s|%s", source.Key, strings.ToLower(schema.Class), schema.Direction, target.Key),
		Type:  schema.Type,
		Class: schema.Class,
		Mapping: &RelationshipMapping{
			SourceEntityKey:  source.Key,
			Direction:        schema.Direction,
			TargetFilterKeys: filterKeys,
			TargetEntity:     target,
		},
	}
}

// trimPrefix drops the vendor prefix shared by both endpoint types, so
// meraki_network -> meraki_device becomes meraki_network_has_device.
func trimPrefix(toType, fromType string) string {
	prefix, _, ok := strings.Cut(fromType, "_")
	if !ok {
		return toType
	}
	if rest, found := strings.CutPrefix(toType, prefix+"_"); found {
		return rest
	}
	return toType
}
