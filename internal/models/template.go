package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TargetEntity identifies the destination of a mapped column.
type TargetEntity string

const (
	TargetProduct        TargetEntity = "product"
	TargetLogistics      TargetEntity = "logistics"
	TargetSpecifications TargetEntity = "specifications"
	TargetFeatures       TargetEntity = "features"
	TargetTags           TargetEntity = "tags"
)

// NaturalKeyField is the product column used to resolve update-vs-create
// during import. Every usable mapping must bind it exactly once.
const NaturalKeyField = "item_no"

// MappingEntry binds one spreadsheet column to a destination field.
//
// For fixed-field entries TargetField names a catalog column. For dynamic-key
// entries (specifications) TargetField is a free-text JSON key chosen by the
// template author. Consumers must not read TargetField directly for routing;
// Binding() is the single place that interprets the distinction.
type MappingEntry struct {
	SourceColumn string       `json:"sourceColumn"`
	TargetEntity TargetEntity `json:"targetEntity"`
	TargetField  string       `json:"targetField"`
	IsDynamicKey bool         `json:"isDynamicKey,omitempty"`
}

// FixedBinding is a mapping entry resolved to a catalog column.
type FixedBinding struct {
	Entity TargetEntity
	Field  string
}

// DynamicBinding is a mapping entry whose target is a user-chosen JSON key.
type DynamicBinding struct {
	Entity TargetEntity
	Key    string
}

// Binding interprets the entry as either a fixed column or a dynamic key.
// Exactly one of the returned values is non-nil.
func (e MappingEntry) Binding() (*FixedBinding, *DynamicBinding) {
	if e.IsDynamicKey {
		return nil, &DynamicBinding{Entity: e.TargetEntity, Key: e.TargetField}
	}
	return &FixedBinding{Entity: e.TargetEntity, Field: e.TargetField}, nil
}

// IsNaturalKey reports whether the entry binds the product natural key.
func (e MappingEntry) IsNaturalKey() bool {
	return !e.IsDynamicKey && e.TargetEntity == TargetProduct && e.TargetField == NaturalKeyField
}

// MappingConfig type for PostgreSQL JSONB holding the ordered entry list
type MappingConfig []MappingEntry

func (m MappingConfig) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MappingConfig) Scan(value interface{}) error {
	if value == nil {
		*m = make(MappingConfig, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// ImportTemplate is a named, reusable column-to-field mapping. Templates are
// created by an admin and consumed many times; they are never mutated during
// an import or spreadsheet session.
type ImportTemplate struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string        `json:"name" gorm:"not null"`
	Description *string       `json:"description,omitempty"`
	Mapping     MappingConfig `json:"mapping" gorm:"type:jsonb"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// TableName returns the table name for the ImportTemplate model
func (ImportTemplate) TableName() string {
	return "import_templates"
}

// CreateTemplateRequest represents a request to create a mapping template
type CreateTemplateRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description *string        `json:"description,omitempty"`
	Mapping     []MappingEntry `json:"mapping" binding:"required"`
}

// UpdateTemplateRequest represents a request to update a mapping template
type UpdateTemplateRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Mapping     []MappingEntry `json:"mapping,omitempty"`
}

// TemplateResponse wraps a single template. Warnings carry non-blocking
// validation problems: incomplete mappings may be saved but not used.
type TemplateResponse struct {
	Success  bool            `json:"success"`
	Data     *ImportTemplate `json:"data"`
	Warnings []string        `json:"warnings,omitempty"`
	Message  *string         `json:"message,omitempty"`
}

type TemplateListResponse struct {
	Success bool             `json:"success"`
	Data    []ImportTemplate `json:"data"`
}

// FieldDefinition describes one importable/exportable field for the
// mapping-builder UI. Static, loaded once, immutable.
type FieldDefinition struct {
	Label        string       `json:"label"`
	TargetEntity TargetEntity `json:"targetEntity"`
	TargetField  string       `json:"targetField"`
	IsDynamicKey bool         `json:"isDynamicKey"`
	Required     bool         `json:"required"`
}

type FieldListResponse struct {
	Success bool              `json:"success"`
	Data    []FieldDefinition `json:"data"`
}
