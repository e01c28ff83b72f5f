package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
	"github.com/noah-isme/sma-academic-api/pkg/response"
)

type deletionService interface {
	DeleteOrDeactivate(ctx context.Context, ref models.EntityRef) (*models.DeleteOutcome, error)
}

var deletableEntities = map[string]models.EntityKind{
	"classes":  models.EntityClass,
	"teachers": models.EntityTeacher,
	"students": models.EntityStudent,
}

// DeletionHandler exposes the guarded delete endpoint.
type DeletionHandler struct {
	service deletionService
}

// NewDeletionHandler builds a new handler.
func NewDeletionHandler(service deletionService) *DeletionHandler {
	return &DeletionHandler{service: service}
}

// Delete godoc
// @Summary Delete a class, teacher or student, or deactivate it when rows depend on it
// @Tags Lifecycle
// @Produce json
// @Param entity path string true "classes, teachers or students"
// @Param id path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /{entity}/{id} [delete]
func (h *DeletionHandler) Delete(c *gin.Context) {
	kind, ok := deletableEntities[c.Param("entity")]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown resource %q", c.Param("entity"))))
		return
	}
	outcome, err := h.service.DeleteOrDeactivate(c.Request.Context(), models.Ref(kind, c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
