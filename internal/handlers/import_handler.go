package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pim-service/internal/catalog"
	"pim-service/internal/codec"
	"pim-service/internal/events"
	"pim-service/internal/importer"
	"pim-service/internal/models"
	"pim-service/internal/repository"
	"pim-service/internal/syncengine"
)

type ImportHandler struct {
	repo            *repository.PimRepository
	importer        *importer.Importer
	eventsPublisher *events.Publisher
}

func NewImportHandler(repo *repository.PimRepository, imp *importer.Importer, eventsPublisher *events.Publisher) *ImportHandler {
	return &ImportHandler{
		repo:            repo,
		importer:        imp,
		eventsPublisher: eventsPublisher,
	}
}

// ImportProducts runs a template-driven import on an uploaded spreadsheet.
// The template must validate cleanly before use; saving incomplete templates
// is allowed but using one here is not. A client disconnect cancels the run
// between rows.
// POST /api/v1/products/import (multipart: file, templateId)
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	templateID, err := uuid.Parse(c.PostForm("templateId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid or missing templateId",
				Field:   "templateId",
			},
		})
		return
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

	if warnings := catalog.ValidateMapping(template.Mapping); len(warnings) > 0 {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "TEMPLATE_INCOMPLETE",
				Message: warnings[0],
				Field:   "templateId",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "No file uploaded",
				Field:   "file",
			},
		})
		return
	}

	format, ok := codec.FormatFromFilename(fileHeader.Filename)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNSUPPORTED_FORMAT",
				Message: "File must be .csv or .xlsx",
				Field:   "file",
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "READ_FAILED",
				Message: "Failed to read uploaded file",
			},
		})
		return
	}
	defer file.Close()

	rows, err := codec.Parse(file, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "PARSE_ERROR",
				Message: err.Error(),
				Field:   "file",
			},
		})
		return
	}

	report := h.importer.Run(c.Request.Context(), rows, template)
	h.eventsPublisher.PublishImportCompleted(c.Request.Context(), template.ID, report)

	c.JSON(http.StatusOK, models.ImportResponse{
		Success: true,
		Summary: report.Summary(),
		Report:  report,
	})
}
