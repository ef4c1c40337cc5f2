package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pim-service/internal/catalog"
	"pim-service/internal/codec"
	"pim-service/internal/models"
	"pim-service/internal/repository"
	"pim-service/internal/syncengine"
)

type TemplatesHandler struct {
	repo *repository.PimRepository
}

func NewTemplatesHandler(repo *repository.PimRepository) *TemplatesHandler {
	return &TemplatesHandler{repo: repo}
}

// CreateTemplate saves a new mapping template. Saving is lenient: an
// incomplete mapping is persisted and its problems returned as warnings.
// POST /api/v1/templates
func (h *TemplatesHandler) CreateTemplate(c *gin.Context) {
	var req models.CreateTemplateRequest
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

	template := &models.ImportTemplate{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Mapping:     models.MappingConfig(req.Mapping),
	}

	if err := h.repo.CreateTemplate(c.Request.Context(), template); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create template",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.TemplateResponse{
		Success:  true,
		Data:     template,
		Warnings: catalog.ValidateMapping(template.Mapping),
	})
}

// GetTemplates lists all saved templates
// GET /api/v1/templates
func (h *TemplatesHandler) GetTemplates(c *gin.Context) {
	templates, err := h.repo.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to fetch templates",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.TemplateListResponse{
		Success: true,
		Data:    templates,
	})
}

// GetTemplate returns one template with its current validation warnings
// GET /api/v1/templates/:id
func (h *TemplatesHandler) GetTemplate(c *gin.Context) {
	template, ok := h.loadTemplate(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, models.TemplateResponse{
		Success:  true,
		Data:     template,
		Warnings: catalog.ValidateMapping(template.Mapping),
	})
}

// UpdateTemplate overwrites name, description or mapping of a template
// PUT /api/v1/templates/:id
func (h *TemplatesHandler) UpdateTemplate(c *gin.Context) {
	template, ok := h.loadTemplate(c)
	if !ok {
		return
	}

	var req models.UpdateTemplateRequest
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

	if req.Name != nil {
		template.Name = *req.Name
	}
	if req.Description != nil {
		template.Description = req.Description
	}
	if req.Mapping != nil {
		template.Mapping = models.MappingConfig(req.Mapping)
	}

	if err := h.repo.UpdateTemplate(c.Request.Context(), template); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UPDATE_FAILED",
				Message: "Failed to update template",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.TemplateResponse{
		Success:  true,
		Data:     template,
		Warnings: catalog.ValidateMapping(template.Mapping),
	})
}

// DeleteTemplate removes a template
// DELETE /api/v1/templates/:id
func (h *TemplatesHandler) DeleteTemplate(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid template ID format",
			},
		})
		return
	}

	if err := h.repo.DeleteTemplate(c.Request.Context(), templateID); err != nil {
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
				Code:    "DELETE_FAILED",
				Message: "Failed to delete template",
			},
		})
		return
	}

	message := "Template deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// DownloadTemplateFile generates a header-only spreadsheet whose columns are
// the template's source columns in mapping order.
// GET /api/v1/templates/:id/file?format=csv|xlsx
func (h *TemplatesHandler) DownloadTemplateFile(c *gin.Context) {
	template, ok := h.loadTemplate(c)
	if !ok {
		return
	}

	format := models.ImportFormat(c.DefaultQuery("format", "xlsx"))
	if format != models.ImportFormatCSV && format != models.ImportFormatXLSX {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNSUPPORTED_FORMAT",
				Message: "Format must be csv or xlsx",
				Field:   "format",
			},
		})
		return
	}

	filename := fmt.Sprintf("%s_template.%s", sanitizeFilename(template.Name), format)
	if format == models.ImportFormatCSV {
		c.Header("Content-Type", "text/csv")
	} else {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := codec.EmitTemplate(template.Mapping, format, c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "GENERATE_FAILED",
				Message: "Failed to generate template file",
			},
		})
	}
}

// loadTemplate resolves the :id path parameter, writing the error response
// itself on failure.
func (h *TemplatesHandler) loadTemplate(c *gin.Context) (*models.ImportTemplate, bool) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid template ID format",
			},
		})
		return nil, false
	}

	template, err := h.repo.GetTemplate(c.Request.Context(), templateID)
	if err != nil {
		if errors.Is(err, syncengine.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Template not found",
				},
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to fetch template",
			},
		})
		return nil, false
	}

	return template, true
}

// sanitizeFilename keeps download filenames header-safe.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "\"", "")
	if name == "" {
		name = "mapping"
	}
	return name
}
