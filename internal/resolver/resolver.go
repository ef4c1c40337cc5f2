// Package resolver turns one parsed spreadsheet row plus a mapping into a
// change set grouped by destination entity, ready for the sync engine.
package resolver

import (
	"strings"

	"pim-service/internal/models"
)

// ChangeSet is the per-row, per-entity grouping of resolved values.
type ChangeSet struct {
	Product           map[string]string
	Logistics         map[string]string
	SpecsAdditions    []models.SpecEntry
	FeaturesAdditions []string
	TagsAdditions     []string
}

// IsEmpty reports whether nothing was resolved from the row.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Product) == 0 && len(cs.Logistics) == 0 &&
		len(cs.SpecsAdditions) == 0 && len(cs.FeaturesAdditions) == 0 && len(cs.TagsAdditions) == 0
}

// Resolve routes every mapped cell of a row to its destination entity.
//
// Absent and empty cells are skipped identically: a blank cell never nulls
// out persisted data. Product and logistics fields are direct assignments
// where the last entry for a field wins. Cell values are not re-parsed as
// numbers; they flow through as the codec produced them.
func Resolve(row map[string]string, entries []models.MappingEntry) ChangeSet {
	cs := ChangeSet{
		Product:   make(map[string]string),
		Logistics: make(map[string]string),
	}

	for _, entry := range entries {
		value, ok := row[entry.SourceColumn]
		if !ok || value == "" {
			continue
		}

		fixed, dynamic := entry.Binding()
		if dynamic != nil {
			switch dynamic.Entity {
			case models.TargetSpecifications:
				cs.SpecsAdditions = append(cs.SpecsAdditions, models.SpecEntry{
					Key:   dynamic.Key,
					Value: value,
					Unit:  "",
				})
			case models.TargetFeatures:
				cs.FeaturesAdditions = append(cs.FeaturesAdditions, value)
			case models.TargetTags:
				cs.TagsAdditions = append(cs.TagsAdditions, splitTags(value)...)
			}
			continue
		}

		switch fixed.Entity {
		case models.TargetProduct:
			cs.Product[fixed.Field] = value
		case models.TargetLogistics:
			cs.Logistics[fixed.Field] = value
		case models.TargetFeatures:
			cs.FeaturesAdditions = append(cs.FeaturesAdditions, value)
		case models.TargetTags:
			cs.TagsAdditions = append(cs.TagsAdditions, splitTags(value)...)
		}
	}

	return cs
}

// splitTags tokenizes a comma-separated cell: trimmed, order preserved,
// empty tokens dropped, no case normalization.
func splitTags(value string) []string {
	parts := strings.Split(value, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
