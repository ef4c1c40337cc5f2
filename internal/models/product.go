package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// StringList type for PostgreSQL JSONB holding a flat string array
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = make(StringList, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// SpecEntry is one technical-specification attribute of a product.
type SpecEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// SpecList type for PostgreSQL JSONB holding the specs array
type SpecList []SpecEntry

func (l SpecList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *SpecList) Scan(value interface{}) error {
	if value == nil {
		*l = make(SpecList, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// ProductRecord is the primary product entity. Identity for import
// synchronization is the natural key (item_no), never the generated id.
type ProductRecord struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ItemNo       string    `json:"itemNo" gorm:"column:item_no;not null;uniqueIndex:idx_products_item_no"`
	Name         string    `json:"name"`
	EAN          *string   `json:"ean,omitempty" gorm:"column:ean"`
	Brand        *string   `json:"brand,omitempty" gorm:"index"`
	Description  *string   `json:"description,omitempty"`
	PrimaryCat   *string   `json:"primaryCat,omitempty" gorm:"column:primary_cat"`
	SecondaryCat *string   `json:"secondaryCat,omitempty" gorm:"column:secondary_cat"`
	Active       bool      `json:"active" gorm:"default:true"`
	EOL          bool      `json:"eol" gorm:"column:eol;default:false"`

	Logistics      []*LogisticsVariant `json:"logistics,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Specifications *Specifications     `json:"specifications,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Features       *Features           `json:"features,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Tags           *Tags               `json:"tags,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LogisticsVariant is one packaging/logistics configuration of a product.
// A product owns an ordered list of variants (1:N); exactly one is default.
// Dimension and weight columns stay string-typed: cell values flow through
// from the spreadsheet without numeric re-parsing.
type LogisticsVariant struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID   uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	VariantName string    `json:"variantName" gorm:"column:variant_name"`
	IsDefault   bool      `json:"isDefault" gorm:"column:is_default;default:false"`

	NetLengthMM    *string `json:"netLengthMm,omitempty" gorm:"column:net_length_mm"`
	NetWidthMM     *string `json:"netWidthMm,omitempty" gorm:"column:net_width_mm"`
	NetHeightMM    *string `json:"netHeightMm,omitempty" gorm:"column:net_height_mm"`
	NetWeightKG    *string `json:"netWeightKg,omitempty" gorm:"column:net_weight_kg"`
	GrossLengthMM  *string `json:"grossLengthMm,omitempty" gorm:"column:gross_length_mm"`
	GrossWidthMM   *string `json:"grossWidthMm,omitempty" gorm:"column:gross_width_mm"`
	GrossHeightMM  *string `json:"grossHeightMm,omitempty" gorm:"column:gross_height_mm"`
	GrossWeightKG  *string `json:"grossWeightKg,omitempty" gorm:"column:gross_weight_kg"`
	CartonLengthMM *string `json:"cartonLengthMm,omitempty" gorm:"column:carton_length_mm"`
	CartonWidthMM  *string `json:"cartonWidthMm,omitempty" gorm:"column:carton_width_mm"`
	CartonHeightMM *string `json:"cartonHeightMm,omitempty" gorm:"column:carton_height_mm"`
	CartonWeightKG *string `json:"cartonWeightKg,omitempty" gorm:"column:carton_weight_kg"`
	PalletQuantity *string `json:"palletQuantity,omitempty" gorm:"column:pallet_quantity"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Specifications holds the technical attributes of a product as a single
// JSONB array row, keyed unique on product_id and replaced wholesale on save.
type Specifications struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_specifications_product_id"`
	Specs     SpecList  `json:"specs" gorm:"type:jsonb"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Features holds the marketing feature bullet list, one row per product.
type Features struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID    uuid.UUID  `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_features_product_id"`
	FeaturesList StringList `json:"featuresList" gorm:"column:features_list;type:jsonb"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Tags holds the search tag list, one row per product.
type Tags struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID  `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_tags_product_id"`
	TagsList  StringList `json:"tagsList" gorm:"column:tags_list;type:jsonb"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	ItemNo       string                    `json:"itemNo" binding:"required"`
	Name         string                    `json:"name" binding:"required"`
	EAN          *string                   `json:"ean,omitempty"`
	Brand        *string                   `json:"brand,omitempty"`
	Description  *string                   `json:"description,omitempty"`
	PrimaryCat   *string                   `json:"primaryCat,omitempty"`
	SecondaryCat *string                   `json:"secondaryCat,omitempty"`
	Active       *bool                     `json:"active,omitempty"`
	EOL          *bool                     `json:"eol,omitempty"`
	Logistics    []LogisticsVariantPayload `json:"logistics,omitempty"`
	Specs        []SpecEntry               `json:"specs,omitempty"`
	FeaturesList []string                  `json:"featuresList,omitempty"`
	TagsList     []string                  `json:"tagsList,omitempty"`
}

// UpdateProductRequest represents a request to update a product.
// The natural key is immutable after creation and is not accepted here.
type UpdateProductRequest struct {
	Name         *string                   `json:"name,omitempty"`
	EAN          *string                   `json:"ean,omitempty"`
	Brand        *string                   `json:"brand,omitempty"`
	Description  *string                   `json:"description,omitempty"`
	PrimaryCat   *string                   `json:"primaryCat,omitempty"`
	SecondaryCat *string                   `json:"secondaryCat,omitempty"`
	Active       *bool                     `json:"active,omitempty"`
	EOL          *bool                     `json:"eol,omitempty"`
	Logistics    []LogisticsVariantPayload `json:"logistics,omitempty"`
	Specs        []SpecEntry               `json:"specs,omitempty"`
	FeaturesList []string                  `json:"featuresList,omitempty"`
	TagsList     []string                  `json:"tagsList,omitempty"`
}

// LogisticsVariantPayload is an incoming variant from an edit surface.
// ID is nil for new variants; position in the list decides the default flag.
type LogisticsVariantPayload struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	VariantName string     `json:"variantName"`

	NetLengthMM    *string `json:"netLengthMm,omitempty"`
	NetWidthMM     *string `json:"netWidthMm,omitempty"`
	NetHeightMM    *string `json:"netHeightMm,omitempty"`
	NetWeightKG    *string `json:"netWeightKg,omitempty"`
	GrossLengthMM  *string `json:"grossLengthMm,omitempty"`
	GrossWidthMM   *string `json:"grossWidthMm,omitempty"`
	GrossHeightMM  *string `json:"grossHeightMm,omitempty"`
	GrossWeightKG  *string `json:"grossWeightKg,omitempty"`
	CartonLengthMM *string `json:"cartonLengthMm,omitempty"`
	CartonWidthMM  *string `json:"cartonWidthMm,omitempty"`
	CartonHeightMM *string `json:"cartonHeightMm,omitempty"`
	CartonWeightKG *string `json:"cartonWeightKg,omitempty"`
	PalletQuantity *string `json:"palletQuantity,omitempty"`
}

// Response types
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ProductResponse struct {
	Success bool           `json:"success"`
	Data    *ProductRecord `json:"data"`
	Message *string        `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []ProductRecord `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the ProductRecord model
func (ProductRecord) TableName() string {
	return "products"
}

// TableName returns the table name for the LogisticsVariant model
func (LogisticsVariant) TableName() string {
	return "logistics_variants"
}

// TableName returns the table name for the Specifications model
func (Specifications) TableName() string {
	return "specifications"
}

// TableName returns the table name for the Features model
func (Features) TableName() string {
	return "features"
}

// TableName returns the table name for the Tags model
func (Tags) TableName() string {
	return "tags"
}
