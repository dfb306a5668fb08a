package api

import (
	"net/http"

	"fitsync/sync-server/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the HTTP surface. Every route except the health check
// runs behind the JWT middleware supplying the trusted user id.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	syncService service.SyncService,
	exerciseService service.ExerciseService,
) {
	syncHandler := NewSyncHandler(syncService)
	exerciseHandler := NewExerciseHandler(exerciseService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		// --- Sync Routes ---
		syncGroup := protected.Group("/sync")
		{
			// POST /api/v1/sync - one full push/pull sync session
			syncGroup.POST("", syncHandler.Sync)
			// GET /api/v1/sync/status - current session state and counters
			syncGroup.GET("/status", syncHandler.GetSyncStatus)
		}

		// GET /api/v1/devices - the caller's registered devices
		protected.GET("/devices", syncHandler.GetDevices)

		// GET /api/v1/exercises - read-only canonical catalog
		protected.GET("/exercises", exerciseHandler.ListExercises)
	}
}
