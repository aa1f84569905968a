// Package targets holds well-known entities that are only ever relationship targets. They are
// never fetched or converted; mapped relationships find them by type and key.
package targets

import "github.com/jmountifield/graph-cisco-meraki/pkg/models"

// Internet is the global internet node.
var Internet = models.TargetEntity{
	Key:   "global:internet",
	Type:  "internet",
	Class: []string{"Internet", "Network"},
	Properties: map[string]any{
		"displayName": "Internet",
		"CIDR":        "0.0.0.0/0",
		"CIDRv6":      "::/0",
		"public":      true,
	},
}

// TypeAndKey matches a target by its type and key.
var TypeAndKey = [][]string{{"_type", "_key"}}

var registry = map[string]models.TargetEntity{
	Internet.Type: Internet,
}

// Lookup returns the well-known target of a type.
func Lookup(targetType string) (models.TargetEntity, bool) {
	t, ok := registry[targetType]
	return t, ok
}
