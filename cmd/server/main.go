package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitsync/sync-server/internal/api"
	"fitsync/sync-server/internal/config"
	"fitsync/sync-server/internal/repository/mongo"
	"fitsync/sync-server/internal/service"
	"fitsync/sync-server/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Workout Sync Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureWorkoutIndexes(ctx, appDB.Collection("workouts"))
		mongo.EnsureWorkoutExerciseIndexes(ctx, appDB.Collection("workout_exercises"))
		mongo.EnsureExerciseSetIndexes(ctx, appDB.Collection("exercise_sets"))
		mongo.EnsureExerciseIndexes(ctx, appDB.Collection("exercises"))
		mongo.EnsureDeviceIndexes(ctx, appDB.Collection("devices"))
		mongo.EnsureSyncMetadataIndexes(ctx, appDB.Collection("sync_metadata"))
		mongo.EnsureConflictIndexes(ctx, appDB.Collection("sync_conflicts"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Conflict Archive (optional) ---
	var archive storage.ConflictArchive
	if cfg.S3.Enabled {
		log.Println("Initializing S3 conflict archive...")
		archive, err = storage.NewS3Archive(cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 conflict archive: %v", err)
		}
	} else {
		log.Println("Conflict archive disabled.")
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	workoutExerciseRepo := mongo.NewMongoWorkoutExerciseRepository(appDB)
	exerciseSetRepo := mongo.NewMongoExerciseSetRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	deviceRepo := mongo.NewMongoDeviceRepository(appDB)
	syncMetadataRepo := mongo.NewMongoSyncMetadataRepository(appDB)
	conflictRepo := mongo.NewMongoConflictLogRepository(appDB)
	changeFeedRepo := mongo.NewMongoChangeFeedRepository(appDB)
	txManager := mongo.NewMongoTxManager(dbClient)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	library := service.NewExerciseLibrary(exerciseRepo)
	reconciler := service.NewReconciler(workoutRepo, workoutExerciseRepo, exerciseSetRepo)
	feed := service.NewChangeFeed(changeFeedRepo)
	syncService := service.NewSyncService(
		workoutRepo, deviceRepo, syncMetadataRepo, conflictRepo,
		txManager, library, reconciler, feed, archive,
	)
	exerciseService := service.NewExerciseService(exerciseRepo)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, syncService, exerciseService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
