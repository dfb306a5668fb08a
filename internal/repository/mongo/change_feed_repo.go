package mongo

import (
	"context"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// mongoChangeFeedRepository implements repository.ChangeFeedRepository with a
// single aggregation across the three workout-tree collections.
type mongoChangeFeedRepository struct {
	workouts *mongo.Collection
}

// NewMongoChangeFeedRepository creates a new change feed repository.
func NewMongoChangeFeedRepository(db *mongo.Database) repository.ChangeFeedRepository {
	return &mongoChangeFeedRepository{
		workouts: db.Collection(workoutCollectionName),
	}
}

// RowsSince runs one joined read: workouts whose server-side updatedAt is
// strictly newer than since, unwound across their exercise instances and
// sets. The unwinds preserve empty levels so a bare workout still yields one
// row. Ordering is workout date, exercise position, set number; the service
// layer folds the flat stream back into a tree.
func (r *mongoChangeFeedRepository) RowsSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.WorkoutTreeRow, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId":    userID,
			"updatedAt": bson.M{"$gt": since},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         workoutExerciseCollectionName,
			"localField":   "_id",
			"foreignField": "workoutId",
			"as":           "exercise",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$exercise",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         exerciseSetCollectionName,
			"localField":   "exercise._id",
			"foreignField": "workoutExerciseId",
			"as":           "set",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$set",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "date", Value: 1},
			{Key: "_id", Value: 1},
			{Key: "exercise.position", Value: 1},
			{Key: "set.setNumber", Value: 1},
		}}},
	}

	cursor, err := r.workouts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []domain.WorkoutTreeRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
