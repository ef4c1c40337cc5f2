package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pim-service/internal/models"
	"pim-service/internal/syncengine"
)

// Cache TTL constants
const (
	TemplateCacheTTL = 10 * time.Minute // Templates change rarely
	ProductCacheTTL  = 2 * time.Minute  // Product rows churn during imports
)

const pgUniqueViolation = "23505"

// PimRepository is the gorm-backed store for products, logistics variants,
// per-product aggregates and import templates. Implements syncengine.Store.
type PimRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

var _ syncengine.Store = (*PimRepository)(nil)

func NewPimRepository(db *gorm.DB, redisClient *redis.Client) *PimRepository {
	return &PimRepository{db: db, redis: redisClient}
}

// cacheGet loads a cached JSON value; a nil Redis client or any Redis error
// degrades to a miss.
func (r *PimRepository) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if r.redis == nil {
		return false
	}
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (r *PimRepository) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r.redis == nil {
		return
	}
	if data, err := json.Marshal(value); err == nil {
		_ = r.redis.Set(ctx, key, data, ttl).Err()
	}
}

func (r *PimRepository) cacheDelete(ctx context.Context, keys ...string) {
	if r.redis == nil || len(keys) == 0 {
		return
	}
	_ = r.redis.Del(ctx, keys...).Err()
}

// invalidateTemplateCaches drops the template list and one template entry.
func (r *PimRepository) invalidateTemplateCaches(ctx context.Context, templateID uuid.UUID) {
	r.cacheDelete(ctx, "pim:templates:list", fmt.Sprintf("pim:template:%s", templateID))
}

// Product operations

// GetProductByItemNo resolves a product by its natural key.
func (r *PimRepository) GetProductByItemNo(ctx context.Context, itemNo string) (*models.ProductRecord, error) {
	var product models.ProductRecord
	err := r.db.WithContext(ctx).Where("item_no = ?", itemNo).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncengine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product row. A unique violation on item_no means a
// concurrent import won the create race.
func (r *PimRepository) CreateProduct(ctx context.Context, product *models.ProductRecord) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Create(product).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: item_no %s", syncengine.ErrDuplicateKeyRace, product.ItemNo)
	}
	return err
}

// UpdateProductFields patches named columns; the natural key is never in the
// patch (callers strip it).
func (r *PimRepository) UpdateProductFields(ctx context.Context, productID uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	err := r.db.WithContext(ctx).Model(&models.ProductRecord{}).
		Where("id = ?", productID).
		Updates(fields).Error
	if err == nil {
		r.cacheDelete(ctx, fmt.Sprintf("pim:product:%s", productID))
	}
	return err
}

// GetProductByID loads one product with all relations preloaded.
func (r *PimRepository) GetProductByID(ctx context.Context, productID uuid.UUID) (*models.ProductRecord, error) {
	var product models.ProductRecord
	err := r.db.WithContext(ctx).
		Preload("Logistics", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_default DESC, created_at ASC")
		}).
		Preload("Specifications").
		Preload("Features").
		Preload("Tags").
		Where("id = ?", productID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncengine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts pages through products with relations, for the list and
// spreadsheet views.
func (r *PimRepository) GetProducts(ctx context.Context, page, limit int) ([]models.ProductRecord, int64, error) {
	var products []models.ProductRecord
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.ProductRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Logistics", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_default DESC, created_at ASC")
		}).
		Preload("Specifications").
		Preload("Features").
		Preload("Tags").
		Order("item_no ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// DeleteProduct removes a product; dependents go with it via FK cascade.
func (r *PimRepository) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", productID).Delete(&models.ProductRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncengine.ErrNotFound
	}
	r.cacheDelete(ctx, fmt.Sprintf("pim:product:%s", productID))
	return nil
}

// Logistics variant operations

// ListVariantIDs returns every persisted variant id of a product.
func (r *PimRepository) ListVariantIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.LogisticsVariant{}).
		Where("product_id = ?", productID).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteVariants removes the given variants of a product. Scoped to the
// product id so a stale id list cannot touch another product's rows.
func (r *PimRepository) DeleteVariants(ctx context.Context, productID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("product_id = ? AND id IN ?", productID, ids).
		Delete(&models.LogisticsVariant{}).Error
}

// UpsertVariant creates or updates one variant keyed by its own id.
func (r *PimRepository) UpsertVariant(ctx context.Context, variant *models.LogisticsVariant) error {
	variant.UpdatedAt = time.Now()
	if variant.CreatedAt.IsZero() {
		variant.CreatedAt = variant.UpdatedAt
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(variant).Error
}

// GetDefaultVariant returns the product's default variant.
func (r *PimRepository) GetDefaultVariant(ctx context.Context, productID uuid.UUID) (*models.LogisticsVariant, error) {
	var variant models.LogisticsVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_default = ?", productID, true).
		Order("created_at ASC").
		First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncengine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// UpdateVariantFields patches named columns of one variant.
func (r *PimRepository) UpdateVariantFields(ctx context.Context, variantID uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.LogisticsVariant{}).
		Where("id = ?", variantID).
		Updates(fields).Error
}

// Aggregate operations: one row per product, whole payload replaced

// ReplaceSpecifications upserts the specs row keyed on product_id.
func (r *PimRepository) ReplaceSpecifications(ctx context.Context, productID uuid.UUID, specs models.SpecList) error {
	row := models.Specifications{
		ID:        uuid.New(),
		ProductID: productID,
		Specs:     specs,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"specs", "updated_at"}),
		}).
		Create(&row).Error
}

// ReplaceFeatures upserts the features row keyed on product_id.
func (r *PimRepository) ReplaceFeatures(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	row := models.Features{
		ID:           uuid.New(),
		ProductID:    productID,
		FeaturesList: list,
		UpdatedAt:    time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"features_list", "updated_at"}),
		}).
		Create(&row).Error
}

// ReplaceTags upserts the tags row keyed on product_id.
func (r *PimRepository) ReplaceTags(ctx context.Context, productID uuid.UUID, list models.StringList) error {
	row := models.Tags{
		ID:        uuid.New(),
		ProductID: productID,
		TagsList:  list,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tags_list", "updated_at"}),
		}).
		Create(&row).Error
}

// Template operations

// CreateTemplate persists a new mapping template.
func (r *PimRepository) CreateTemplate(ctx context.Context, template *models.ImportTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	template.CreatedAt = time.Now()
	template.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Create(template).Error
	if err == nil {
		r.invalidateTemplateCaches(ctx, template.ID)
	}
	return err
}

// GetTemplate loads one template, cache-aside.
func (r *PimRepository) GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.ImportTemplate, error) {
	cacheKey := fmt.Sprintf("pim:template:%s", templateID)

	var cached models.ImportTemplate
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var template models.ImportTemplate
	err := r.db.WithContext(ctx).Where("id = ?", templateID).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncengine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, &template, TemplateCacheTTL)
	return &template, nil
}

// ListTemplates returns all templates, cache-aside.
func (r *PimRepository) ListTemplates(ctx context.Context) ([]models.ImportTemplate, error) {
	var cached []models.ImportTemplate
	if r.cacheGet(ctx, "pim:templates:list", &cached) {
		return cached, nil
	}

	var templates []models.ImportTemplate
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, err
	}

	r.cacheSet(ctx, "pim:templates:list", templates, TemplateCacheTTL)
	return templates, nil
}

// UpdateTemplate overwrites name, description and mapping of a template.
func (r *PimRepository) UpdateTemplate(ctx context.Context, template *models.ImportTemplate) error {
	template.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).Model(&models.ImportTemplate{}).
		Where("id = ?", template.ID).
		Updates(map[string]interface{}{
			"name":        template.Name,
			"description": template.Description,
			"mapping":     template.Mapping,
			"updated_at":  template.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncengine.ErrNotFound
	}
	r.invalidateTemplateCaches(ctx, template.ID)
	return nil
}

// DeleteTemplate removes a template.
func (r *PimRepository) DeleteTemplate(ctx context.Context, templateID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", templateID).Delete(&models.ImportTemplate{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncengine.ErrNotFound
	}
	r.invalidateTemplateCaches(ctx, templateID)
	return nil
}

// isUniqueViolation reports a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
