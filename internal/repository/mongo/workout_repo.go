package mongo

import (
	"context"
	"errors"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutCollectionName = "workouts"

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// Create inserts a new workout row.
func (r *mongoWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID || workout.ClientID == "" {
		return primitive.NilObjectID, errors.New("workout requires userId and clientId")
	}
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	workout.LastSyncedAt = now

	result, err := r.collection.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout ID")
	}
	return insertedID, nil
}

// Update overwrites the workout-level fields (not the nested collections).
func (r *mongoWorkoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == primitive.NilObjectID {
		return errors.New("workout ID is required for update")
	}

	now := time.Now().UTC()
	filter := bson.M{"_id": workout.ID}
	updateDoc := bson.M{
		"$set": bson.M{
			"name":            workout.Name,
			"date":            workout.Date,
			"durationSeconds": workout.DurationSeconds,
			"isCompleted":     workout.IsCompleted,
			"startTime":       workout.StartTime,
			"endTime":         workout.EndTime,
			"totalVolume":     workout.TotalVolume,
			"totalSets":       workout.TotalSets,
			"totalReps":       workout.TotalReps,
			"clientUpdatedAt": workout.ClientUpdatedAt,
			"updatedAt":       now,
			"lastSyncedAt":    now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	workout.UpdatedAt = now
	workout.LastSyncedAt = now
	return nil
}

// UpdateTotals refreshes the computed totals and server-side timestamps
// without touching the user-editable workout fields.
func (r *mongoWorkoutRepository) UpdateTotals(ctx context.Context, id primitive.ObjectID, totalVolume float64, totalSets, totalReps int) error {
	now := time.Now().UTC()
	updateDoc := bson.M{
		"$set": bson.M{
			"totalVolume":  totalVolume,
			"totalSets":    totalSets,
			"totalReps":    totalReps,
			"updatedAt":    now,
			"lastSyncedAt": now,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, updateDoc)
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByClientIDs batch-fetches the user's workouts for the given client ids
// in a single query.
func (r *mongoWorkoutRepository) GetByClientIDs(ctx context.Context, userID primitive.ObjectID, clientIDs []string) ([]domain.Workout, error) {
	if len(clientIDs) == 0 {
		return []domain.Workout{}, nil
	}
	filter := bson.M{
		"userId":   userID,
		"clientId": bson.M{"$in": clientIDs},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var workouts []domain.Workout
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// GetByID retrieves a single workout by its server id.
func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One server row per logical client workout.
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "clientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Change feed: server-side modifications newer than a sync point.
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
