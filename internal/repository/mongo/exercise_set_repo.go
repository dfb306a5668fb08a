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

const exerciseSetCollectionName = "exercise_sets"

// mongoExerciseSetRepository implements repository.ExerciseSetRepository
type mongoExerciseSetRepository struct {
	collection *mongo.Collection
}

// NewMongoExerciseSetRepository creates a new set repository.
func NewMongoExerciseSetRepository(db *mongo.Database) repository.ExerciseSetRepository {
	return &mongoExerciseSetRepository{
		collection: db.Collection(exerciseSetCollectionName),
	}
}

// Create inserts a new performed set.
func (r *mongoExerciseSetRepository) Create(ctx context.Context, set *domain.ExerciseSet) (primitive.ObjectID, error) {
	if set.WorkoutExerciseID == primitive.NilObjectID || set.ClientID == "" {
		return primitive.NilObjectID, errors.New("set requires workoutExerciseId and clientId")
	}
	set.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, set)
	if err != nil {
		return primitive.NilObjectID, mapWriteError(err)
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted set ID")
	}
	return insertedID, nil
}

// Update overwrites the mutable fields of a set.
func (r *mongoExerciseSetRepository) Update(ctx context.Context, set *domain.ExerciseSet) error {
	if set.ID == primitive.NilObjectID {
		return errors.New("set ID is required for update")
	}

	now := time.Now().UTC()
	updateDoc := bson.M{
		"$set": bson.M{
			"setNumber":       set.SetNumber,
			"reps":            set.Reps,
			"weight":          set.Weight,
			"setType":         set.SetType,
			"rpe":             set.RPE,
			"clientUpdatedAt": set.ClientUpdatedAt,
			"updatedAt":       now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": set.ID}, updateDoc)
	if err != nil {
		return mapWriteError(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	set.UpdatedAt = now
	return nil
}

// GetByWorkoutExerciseIDs batch-fetches the sets of several exercise
// instances in one query, ordered by set number.
func (r *mongoExerciseSetRepository) GetByWorkoutExerciseIDs(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.ExerciseSet, error) {
	if len(workoutExerciseIDs) == 0 {
		return []domain.ExerciseSet{}, nil
	}
	filter := bson.M{"workoutExerciseId": bson.M{"$in": workoutExerciseIDs}}
	findOptions := options.Find().SetSort(bson.D{{Key: "setNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sets []domain.ExerciseSet
	if err = cursor.All(ctx, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Delete removes one set.
func (r *mongoExerciseSetRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByWorkoutExerciseID removes every set of one exercise instance.
func (r *mongoExerciseSetRepository) DeleteByWorkoutExerciseID(ctx context.Context, workoutExerciseID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"workoutExerciseId": workoutExerciseID})
	return err
}

// EnsureExerciseSetIndexes creates necessary indexes. Call during startup.
func EnsureExerciseSetIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "clientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "setNumber", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
