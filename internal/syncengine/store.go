package syncengine

import (
	"context"

	"github.com/google/uuid"

	"pim-service/internal/models"
)

// Store is the generic tabular contract the engine runs against. The
// repository package provides the real implementation; tests substitute mocks.
type Store interface {
	// GetProductByItemNo returns ErrNotFound when no product has the key.
	GetProductByItemNo(ctx context.Context, itemNo string) (*models.ProductRecord, error)
	// CreateProduct inserts a new product row and fills in the generated id.
	// A unique violation on item_no is returned as ErrDuplicateKeyRace.
	CreateProduct(ctx context.Context, product *models.ProductRecord) error
	// UpdateProductFields patches named columns of an existing product.
	UpdateProductFields(ctx context.Context, productID uuid.UUID, fields map[string]interface{}) error

	// ListVariantIDs returns the ids of every persisted variant of a product.
	ListVariantIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error)
	// DeleteVariants removes the given variant rows of a product.
	DeleteVariants(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) error
	// UpsertVariant creates or updates one variant keyed by its own id.
	UpsertVariant(ctx context.Context, variant *models.LogisticsVariant) error
	// GetDefaultVariant returns the default variant, or ErrNotFound.
	GetDefaultVariant(ctx context.Context, productID uuid.UUID) (*models.LogisticsVariant, error)
	// UpdateVariantFields patches named columns of one variant.
	UpdateVariantFields(ctx context.Context, variantID uuid.UUID, fields map[string]interface{}) error

	// ReplaceSpecifications upserts the specs row keyed on product_id.
	ReplaceSpecifications(ctx context.Context, productID uuid.UUID, specs models.SpecList) error
	// ReplaceFeatures upserts the features row keyed on product_id.
	ReplaceFeatures(ctx context.Context, productID uuid.UUID, list models.StringList) error
	// ReplaceTags upserts the tags row keyed on product_id.
	ReplaceTags(ctx context.Context, productID uuid.UUID, list models.StringList) error
}
