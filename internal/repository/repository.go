package repository

import (
	"context"
	"time"

	"fitsync/sync-server/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer. ErrDuplicateKey is the structured
// classification of unique-index violations; callers drive retry policy off
// errors.Is against it, never off error-message text.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxManager runs a function inside one database transaction. Every repository
// call made with the callback's context joins that transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// WorkoutRepository defines the interface for workout rows.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	Update(ctx context.Context, workout *domain.Workout) error
	// UpdateTotals refreshes only the computed volume/set/rep totals (and the
	// server-side timestamp), for merges where the workout-level fields lost
	// conflict resolution but the subtree still changed.
	UpdateTotals(ctx context.Context, id primitive.ObjectID, totalVolume float64, totalSets, totalReps int) error
	// GetByClientIDs batch-fetches the user's workouts matching any of the
	// given client ids (single query, one round trip per sync session).
	GetByClientIDs(ctx context.Context, userID primitive.ObjectID, clientIDs []string) ([]domain.Workout, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
}

// WorkoutExerciseRepository defines the interface for exercise instances
// inside workouts.
type WorkoutExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.WorkoutExercise) (primitive.ObjectID, error)
	Update(ctx context.Context, exercise *domain.WorkoutExercise) error
	GetByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ExerciseSetRepository defines the interface for performed sets.
type ExerciseSetRepository interface {
	Create(ctx context.Context, set *domain.ExerciseSet) (primitive.ObjectID, error)
	Update(ctx context.Context, set *domain.ExerciseSet) error
	GetByWorkoutExerciseIDs(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.ExerciseSet, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DeleteByWorkoutExerciseID cascades an exercise-instance deletion.
	DeleteByWorkoutExerciseID(ctx context.Context, workoutExerciseID primitive.ObjectID) error
}

// ExerciseRepository defines the interface for the canonical exercise catalog.
// The sync subsystem only ever looks up by exact name and lazily inserts;
// List backs the read-only catalog endpoint.
type ExerciseRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Exercise, error)
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	List(ctx context.Context, search string, limit int64) ([]domain.Exercise, error)
}

// DeviceRepository defines the interface for per-device metadata.
type DeviceRepository interface {
	Upsert(ctx context.Context, device *domain.Device) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Device, error)
}

// SyncMetadataRepository tracks the single per-user sync session row.
type SyncMetadataRepository interface {
	MarkSyncing(ctx context.Context, userID primitive.ObjectID, deviceID, sessionID string) error
	MarkCompleted(ctx context.Context, userID primitive.ObjectID, deviceID string) error
	MarkFailed(ctx context.Context, userID primitive.ObjectID, deviceID string, syncErr domain.SyncError) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.SyncMetadata, error)
}

// ConflictLogRepository is append-only storage for conflict audit records.
type ConflictLogRepository interface {
	Append(ctx context.Context, records []domain.ConflictRecord) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.ConflictRecord, error)
}

// ChangeFeedRepository reads the denormalized workout tree rows changed since
// a given server timestamp, ordered by workout date, then exercise position,
// then set number.
type ChangeFeedRepository interface {
	RowsSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.WorkoutTreeRow, error)
}
