package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pim-service/internal/bulkedit"
	"pim-service/internal/config"
	"pim-service/internal/events"
	"pim-service/internal/models"
	"pim-service/internal/repository"
	"pim-service/internal/syncengine"
)

type ProductsHandler struct {
	repo            *repository.PimRepository
	engine          *syncengine.Engine
	eventsPublisher *events.Publisher
	cfg             *config.Config
	logger          *logrus.Logger
}

func NewProductsHandler(repo *repository.PimRepository, engine *syncengine.Engine, eventsPublisher *events.Publisher, cfg *config.Config, logger *logrus.Logger) *ProductsHandler {
	return &ProductsHandler{
		repo:            repo,
		engine:          engine,
		eventsPublisher: eventsPublisher,
		cfg:             cfg,
		logger:          logger,
	}
}

// GetProducts lists products with all relations, paginated
// GET /api/v1/products
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.cfg.DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = h.cfg.DefaultPageSize
	}
	if limit > h.cfg.MaxPageSize {
		limit = h.cfg.MaxPageSize
	}

	products, total, err := h.repo.GetProducts(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to fetch products",
			},
		})
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success: true,
		Data:    products,
		Pagination: &models.PaginationInfo{
			Page:        page,
			Limit:       limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrevious: page > 1,
		},
	})
}

// GetProduct returns one product with relations
// GET /api/v1/products/:id
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// CreateProduct creates a product with its initial variant list and
// aggregates. The variant list goes through the same reconciliation as
// every other save path.
// POST /api/v1/products
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	product := &models.ProductRecord{
		ID:           uuid.New(),
		ItemNo:       req.ItemNo,
		Name:         req.Name,
		EAN:          req.EAN,
		Brand:        req.Brand,
		Description:  req.Description,
		PrimaryCat:   req.PrimaryCat,
		SecondaryCat: req.SecondaryCat,
		Active:       true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if req.EOL != nil {
		product.EOL = *req.EOL
	}

	ctx := c.Request.Context()
	if err := h.repo.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, syncengine.ErrDuplicateKeyRace) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "DUPLICATE_ITEM_NO",
					Message: "A product with this item number already exists",
					Field:   "itemNo",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create product",
			},
		})
		return
	}

	h.applyDependents(c, product.ID, req.Logistics, req.Specs, req.FeaturesList, req.TagsList)

	created, err := h.repo.GetProductByID(ctx, product.ID)
	if err != nil {
		created = product
	}
	h.eventsPublisher.PublishProductChange(ctx, events.SubjectProductCreated, created)

	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    created,
	})
}

// UpdateProduct patches product fields and reconciles dependents. The item
// number is immutable and not accepted in the request body.
// PUT /api/v1/products/:id
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.EAN != nil {
		updates["ean"] = *req.EAN
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PrimaryCat != nil {
		updates["primary_cat"] = *req.PrimaryCat
	}
	if req.SecondaryCat != nil {
		updates["secondary_cat"] = *req.SecondaryCat
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.EOL != nil {
		updates["eol"] = *req.EOL
	}

	ctx := c.Request.Context()
	if len(updates) > 0 {
		if err := h.repo.UpdateProductFields(ctx, product.ID, updates); err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "UPDATE_FAILED",
					Message: "Failed to update product",
				},
			})
			return
		}
	}

	h.applyDependents(c, product.ID, req.Logistics, req.Specs, req.FeaturesList, req.TagsList)

	updated, err := h.repo.GetProductByID(ctx, product.ID)
	if err != nil {
		updated = product
	}
	h.eventsPublisher.PublishProductChange(ctx, events.SubjectProductUpdated, updated)

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    updated,
	})
}

// DeleteProduct removes a product and, via cascade, its variants and
// aggregates
// DELETE /api/v1/products/:id
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	product, ok := h.loadProduct(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.DeleteProduct(ctx, product.ID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete product",
			},
		})
		return
	}
	h.eventsPublisher.PublishProductChange(ctx, events.SubjectProductDeleted, product)

	message := "Product deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// BulkSave applies buffered spreadsheet edits through a template mapping.
// Each record is saved independently; one failure never blocks the rest.
// POST /api/v1/products/bulk-save
func (h *ProductsHandler) BulkSave(c *gin.Context) {
	var req models.BulkSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid templateId",
				Field:   "templateId",
			},
		})
		return
	}

	ctx := c.Request.Context()
	template, err := h.repo.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, syncengine.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Template not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to fetch template",
			},
		})
		return
	}

	// Load the targeted records; unknown ids fail individually, the rest
	// proceed.
	var loadFailures []models.BulkSaveFailure
	records := make([]models.ProductRecord, 0, len(req.Records))
	for _, rec := range req.Records {
		productID, err := uuid.Parse(rec.ID)
		if err != nil {
			loadFailures = append(loadFailures, models.BulkSaveFailure{ID: rec.ID, Error: "invalid record id"})
			continue
		}
		product, err := h.repo.GetProductByID(ctx, productID)
		if err != nil {
			loadFailures = append(loadFailures, models.BulkSaveFailure{ID: rec.ID, Error: "product not found"})
			continue
		}
		records = append(records, *product)
	}

	session := bulkedit.NewSession(h.engine, h.logger)
	if err := session.EnterBulkEdit(records); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "BULK_SAVE_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	for _, rec := range req.Records {
		for field, value := range rec.Fields {
			if field == models.NaturalKeyField {
				continue
			}
			// unknown record ids were already reported above
			_ = session.SetField(rec.ID, field, value)
		}
	}

	result, err := session.SaveAll(ctx, template)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "BULK_SAVE_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	failed := append(loadFailures, result.Failed...)
	c.JSON(http.StatusOK, models.BulkSaveResponse{
		Success:   len(failed) == 0,
		Succeeded: result.Succeeded,
		Failed:    failed,
	})
}

// applyDependents reconciles variants and aggregates after a product write.
// Sub-entity failures do not fail the request; they are logged and the reload
// that follows reflects whatever applied.
func (h *ProductsHandler) applyDependents(c *gin.Context, productID uuid.UUID, logistics []models.LogisticsVariantPayload, specs []models.SpecEntry, featuresList, tagsList []string) {
	ctx := c.Request.Context()
	warn := func(entity string, err error) {
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"product_id": productID,
				"entity":     entity,
			}).WithError(err).Warn("dependent save failed")
		}
	}

	if logistics != nil {
		warn("logistics", h.engine.SyncLogisticsVariants(ctx, productID, logistics))
	}
	if specs != nil {
		warn("specifications", h.engine.ReplaceAggregate(ctx, productID, syncengine.AggregateSpecifications, models.SpecList(specs)))
	}
	if featuresList != nil {
		warn("features", h.engine.ReplaceAggregate(ctx, productID, syncengine.AggregateFeatures, models.StringList(featuresList)))
	}
	if tagsList != nil {
		warn("tags", h.engine.ReplaceAggregate(ctx, productID, syncengine.AggregateTags, models.StringList(tagsList)))
	}
}

// loadProduct resolves the :id path parameter, writing the error response
// itself on failure.
func (h *ProductsHandler) loadProduct(c *gin.Context) (*models.ProductRecord, bool) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid product ID format",
			},
		})
		return nil, false
	}

	product, err := h.repo.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, syncengine.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Product not found",
				},
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to fetch product",
			},
		})
		return nil, false
	}

	return product, true
}
