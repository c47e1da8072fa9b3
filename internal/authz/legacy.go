package authz

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// LegacyTable maps legacy level -> module -> allowed action tokens.
type LegacyTable map[string]map[string][]string

// DefaultLegacyTable is the hand-maintained rule table for accounts that
// predate role assignment. Admin levels are absent: they bypass lookups.
var DefaultLegacyTable = LegacyTable{
	"manager": {
		"candidates":  {"view.all", "create", "edit.all", "delete"},
		"jobs":        {"view.all", "create", "edit.all", "delete"},
		"submissions": {"view.all", "create", "edit.all", "delete"},
		"companies":   {"view.all", "create", "edit.all"},
		"contacts":    {"view.all", "create", "edit.all"},
		"interviews":  {"view.all", "create", "edit.all"},
		"placements":  {"view.all", "create", "edit.all"},
		"reports":     {"view.all"},
	},
	"recruiter": {
		"candidates":  {"view.own", "create", "edit.own"},
		"jobs":        {"view.all"},
		"submissions": {"view.own", "create", "edit.own"},
		"companies":   {"view.all"},
		"contacts":    {"view.all", "create", "edit.own"},
		"interviews":  {"view.own", "create", "edit.own"},
		"placements":  {"view.own"},
	},
	"sourcer": {
		"candidates": {"view.own", "create", "edit.own"},
		"jobs":       {"view.all"},
	},
	"viewer": {
		"candidates": {"view.all"},
		"jobs":       {"view.all"},
		"companies":  {"view.all"},
	},
}

// LoadLegacyTable decodes a YAML document shaped like DefaultLegacyTable.
func LoadLegacyTable(r io.Reader) (LegacyTable, error) {
	var table LegacyTable
	if err := yaml.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("authz: decode legacy table: %w", err)
	}
	return table, nil
}

// LegacyProvider serves permissions from a compiled LegacyTable.
type LegacyProvider struct {
	levels map[string]PermissionSet
}

// NewLegacyProvider parses every token of table once.
func NewLegacyProvider(table LegacyTable) (*LegacyProvider, error) {
	levels := make(map[string]PermissionSet, len(table))
	for level, modules := range table {
		set := make(PermissionSet)
		for module, tokens := range modules {
			for _, token := range tokens {
				code, err := ParseAction(module, token)
				if err != nil {
					return nil, fmt.Errorf("legacy level %q: %w", level, err)
				}
				set[code] = struct{}{}
			}
		}
		levels[NormalizeToken(level)] = set
	}
	return &LegacyProvider{levels: levels}, nil
}

// PermissionsFor implements RuleProvider. The compiled set is shared and
// must be treated as read-only.
func (p *LegacyProvider) PermissionsFor(_ context.Context, actor *Actor) (PermissionSet, error) {
	src := actor.Source()
	if src.Kind != SourceKindLegacy {
		return PermissionSet{}, nil
	}
	set, ok := p.levels[src.Level]
	if !ok {
		return PermissionSet{}, nil
	}
	return set, nil
}
