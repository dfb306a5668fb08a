package api

import (
	"net/http"
	"strconv"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/service"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler serves the read-only catalog endpoints.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService}
}

// ExerciseResponse is the DTO for returning catalog entries.
type ExerciseResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PrimaryMuscles []string  `json:"primaryMuscles,omitempty"`
	IsCustom       bool      `json:"isCustom"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MapExerciseToResponse converts a domain.Exercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.Exercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:             ex.ID.Hex(),
		Name:           ex.Name,
		PrimaryMuscles: ex.PrimaryMuscles,
		IsCustom:       ex.IsCustom,
		CreatedAt:      ex.CreatedAt,
		UpdatedAt:      ex.UpdatedAt,
	}
}

// ListExercises handles GET /exercises?search=&limit=. The catalog is shared
// and deduplicated; this endpoint never writes to it.
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	search := c.Query("search")
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			abortWithError(c, http.StatusBadRequest, "Invalid limit parameter.")
			return
		}
		limit = parsed
	}

	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), search, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve exercises.")
		return
	}

	responses := make([]ExerciseResponse, len(exercises))
	for i := range exercises {
		responses[i] = MapExerciseToResponse(&exercises[i])
	}
	c.JSON(http.StatusOK, responses)
}
