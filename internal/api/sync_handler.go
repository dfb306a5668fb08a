package api

import (
	"errors"
	"net/http"

	"fitsync/sync-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncHandler holds the sync service dependency.
type SyncHandler struct {
	syncService service.SyncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// Sync handles POST /sync: one full sync session for the authenticated user.
// Payloads violating the size/field limits are rejected wholesale with every
// violation enumerated; nothing is partially applied.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req service.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Malformed sync payload: "+err.Error())
		return
	}

	userID, ok := userIDFromRequest(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncUserData(c.Request.Context(), userID, &req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      "Sync payload validation failed.",
				"violations": verr.Violations,
			})
			return
		}
		// The session is already marked failed with a structured error;
		// the client retries on its next sync window.
		abortWithError(c, http.StatusInternalServerError, "Sync failed.")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSyncStatus handles GET /sync/status.
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	userID, ok := userIDFromRequest(c)
	if !ok {
		return
	}

	meta, err := h.syncService.GetSyncStatus(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrSyncNotFound) {
			abortWithError(c, http.StatusNotFound, "No sync sessions recorded for this user.")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve sync status.")
		return
	}

	c.JSON(http.StatusOK, meta)
}

// GetDevices handles GET /devices.
func (h *SyncHandler) GetDevices(c *gin.Context) {
	userID, ok := userIDFromRequest(c)
	if !ok {
		return
	}

	devices, err := h.syncService.GetDevices(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve devices.")
		return
	}

	c.JSON(http.StatusOK, devices)
}

// userIDFromRequest extracts and parses the trusted user id set by
// AuthMiddleware, aborting the request on failure.
func userIDFromRequest(c *gin.Context) (primitive.ObjectID, bool) {
	userIDStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format in token.")
		return primitive.NilObjectID, false
	}
	return userID, true
}
