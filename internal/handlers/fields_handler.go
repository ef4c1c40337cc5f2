package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pim-service/internal/catalog"
	"pim-service/internal/models"
)

type FieldsHandler struct{}

func NewFieldsHandler() *FieldsHandler {
	return &FieldsHandler{}
}

// GetFields returns the field catalog for the mapping builder
// GET /api/v1/fields
func (h *FieldsHandler) GetFields(c *gin.Context) {
	c.JSON(http.StatusOK, models.FieldListResponse{
		Success: true,
		Data:    catalog.ListFields(),
	})
}
