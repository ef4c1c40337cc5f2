// Package catalog is the static registry of importable/exportable fields and
// the single rule set for mapping validation. The same rules run as
// non-blocking warnings at template save time and as a hard precondition at
// import time.
package catalog

import (
	"fmt"

	"pim-service/internal/models"
)

var fields = []models.FieldDefinition{
	{Label: "Item Number", TargetEntity: models.TargetProduct, TargetField: "item_no", Required: true},
	{Label: "Product Name", TargetEntity: models.TargetProduct, TargetField: "name"},
	{Label: "Description", TargetEntity: models.TargetProduct, TargetField: "description"},
	{Label: "EAN", TargetEntity: models.TargetProduct, TargetField: "ean"},
	{Label: "Brand", TargetEntity: models.TargetProduct, TargetField: "brand"},
	{Label: "Primary Category", TargetEntity: models.TargetProduct, TargetField: "primary_cat"},
	{Label: "Secondary Category", TargetEntity: models.TargetProduct, TargetField: "secondary_cat"},

	{Label: "Variant Name", TargetEntity: models.TargetLogistics, TargetField: "variant_name"},
	{Label: "Net Length (mm)", TargetEntity: models.TargetLogistics, TargetField: "net_length_mm"},
	{Label: "Net Width (mm)", TargetEntity: models.TargetLogistics, TargetField: "net_width_mm"},
	{Label: "Net Height (mm)", TargetEntity: models.TargetLogistics, TargetField: "net_height_mm"},
	{Label: "Net Weight (kg)", TargetEntity: models.TargetLogistics, TargetField: "net_weight_kg"},
	{Label: "Gross Length (mm)", TargetEntity: models.TargetLogistics, TargetField: "gross_length_mm"},
	{Label: "Gross Width (mm)", TargetEntity: models.TargetLogistics, TargetField: "gross_width_mm"},
	{Label: "Gross Height (mm)", TargetEntity: models.TargetLogistics, TargetField: "gross_height_mm"},
	{Label: "Gross Weight (kg)", TargetEntity: models.TargetLogistics, TargetField: "gross_weight_kg"},
	{Label: "Carton Length (mm)", TargetEntity: models.TargetLogistics, TargetField: "carton_length_mm"},
	{Label: "Carton Width (mm)", TargetEntity: models.TargetLogistics, TargetField: "carton_width_mm"},
	{Label: "Carton Height (mm)", TargetEntity: models.TargetLogistics, TargetField: "carton_height_mm"},
	{Label: "Carton Weight (kg)", TargetEntity: models.TargetLogistics, TargetField: "carton_weight_kg"},
	{Label: "Pallet Quantity", TargetEntity: models.TargetLogistics, TargetField: "pallet_quantity"},

	{Label: "Specification (JSON key)", TargetEntity: models.TargetSpecifications, TargetField: "json_spec", IsDynamicKey: true},
	{Label: "Feature (list entry)", TargetEntity: models.TargetFeatures, TargetField: "json_feature", IsDynamicKey: true},
	{Label: "Tags (comma separated)", TargetEntity: models.TargetTags, TargetField: "json_tags", IsDynamicKey: true},
}

// ListFields returns the static field definitions. No side effects, no errors.
func ListFields() []models.FieldDefinition {
	out := make([]models.FieldDefinition, len(fields))
	copy(out, fields)
	return out
}

// KnownField reports whether entity/field names a fixed catalog column.
func KnownField(entity models.TargetEntity, field string) bool {
	for _, f := range fields {
		if !f.IsDynamicKey && f.TargetEntity == entity && f.TargetField == field {
			return true
		}
	}
	return false
}

// ValidateMapping checks a mapping against the catalog rules and returns
// human-readable problems. An empty result means the mapping is usable for
// import. Saving a template with problems is allowed; using one is not.
func ValidateMapping(entries []models.MappingEntry) []string {
	var problems []string

	keyBindings := 0
	for i, e := range entries {
		if e.SourceColumn == "" {
			problems = append(problems, fmt.Sprintf("entry %d: source column header is empty", i+1))
		}
		if e.IsNaturalKey() {
			keyBindings++
		}

		fixed, dynamic := e.Binding()
		switch {
		case dynamic != nil:
			switch dynamic.Entity {
			case models.TargetSpecifications, models.TargetFeatures, models.TargetTags:
				if dynamic.Key == "" {
					problems = append(problems, fmt.Sprintf("entry %d: dynamic key name is empty", i+1))
				}
			default:
				problems = append(problems, fmt.Sprintf("entry %d: entity %q does not accept dynamic keys", i+1, dynamic.Entity))
			}
		case fixed != nil:
			if !KnownField(fixed.Entity, fixed.Field) {
				problems = append(problems, fmt.Sprintf("entry %d: unknown field %q for entity %q", i+1, fixed.Field, fixed.Entity))
			}
		}
	}

	if keyBindings == 0 {
		problems = append(problems, fmt.Sprintf("mapping has no %s binding; the template cannot be used for import", models.NaturalKeyField))
	} else if keyBindings > 1 {
		problems = append(problems, fmt.Sprintf("mapping binds %s more than once", models.NaturalKeyField))
	}

	return problems
}

// NaturalKeyColumn returns the source column header bound to the product
// natural key, or false when the mapping has none.
func NaturalKeyColumn(entries []models.MappingEntry) (string, bool) {
	for _, e := range entries {
		if e.IsNaturalKey() {
			return e.SourceColumn, true
		}
	}
	return "", false
}
