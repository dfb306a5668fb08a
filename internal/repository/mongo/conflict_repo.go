package mongo

import (
	"context"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conflictCollectionName = "sync_conflicts"

// mongoConflictLogRepository implements repository.ConflictLogRepository.
// Pure append; records are never updated or removed by this subsystem.
type mongoConflictLogRepository struct {
	collection *mongo.Collection
}

// NewMongoConflictLogRepository creates a new conflict log repository.
func NewMongoConflictLogRepository(db *mongo.Database) repository.ConflictLogRepository {
	return &mongoConflictLogRepository{
		collection: db.Collection(conflictCollectionName),
	}
}

// Append inserts the given records in one batch.
func (r *mongoConflictLogRepository) Append(ctx context.Context, records []domain.ConflictRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(records))
	for i := range records {
		records[i].ID = primitive.NewObjectID()
		records[i].CreatedAt = now
		docs[i] = records[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return mapWriteError(err)
}

// GetByUserID lists a user's most recent conflict records for review tooling.
func (r *mongoConflictLogRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.ConflictRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.ConflictRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// EnsureConflictIndexes creates necessary indexes. Call during startup.
func EnsureConflictIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
