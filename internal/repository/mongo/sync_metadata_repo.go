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

const syncMetadataCollectionName = "sync_metadata"

// mongoSyncMetadataRepository implements repository.SyncMetadataRepository.
// All three transitions upsert, so the row is created on first contact and
// never deleted afterwards.
type mongoSyncMetadataRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncMetadataRepository creates a new sync metadata repository.
func NewMongoSyncMetadataRepository(db *mongo.Database) repository.SyncMetadataRepository {
	return &mongoSyncMetadataRepository{
		collection: db.Collection(syncMetadataCollectionName),
	}
}

// MarkSyncing records the start of a sync session.
func (r *mongoSyncMetadataRepository) MarkSyncing(ctx context.Context, userID primitive.ObjectID, deviceID, sessionID string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"status":            domain.SyncStatusSyncing,
			"lastSyncStartedAt": now,
			"lastDeviceId":      deviceID,
			"lastSessionId":     sessionID,
			"updatedAt":         now,
		},
		"$setOnInsert": bson.M{
			"userId":    userID,
			"createdAt": now,
		},
	}
	return r.upsert(ctx, userID, update)
}

// MarkCompleted records a successful session and bumps the counters.
func (r *mongoSyncMetadataRepository) MarkCompleted(ctx context.Context, userID primitive.ObjectID, deviceID string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"status":              domain.SyncStatusCompleted,
			"lastSyncCompletedAt": now,
			"lastDeviceId":        deviceID,
			"lastError":           nil,
			"updatedAt":           now,
		},
		"$inc": bson.M{
			"totalSyncs":      1,
			"successfulSyncs": 1,
		},
		"$setOnInsert": bson.M{
			"userId":    userID,
			"createdAt": now,
		},
	}
	return r.upsert(ctx, userID, update)
}

// MarkFailed records a failed session with its structured error.
func (r *mongoSyncMetadataRepository) MarkFailed(ctx context.Context, userID primitive.ObjectID, deviceID string, syncErr domain.SyncError) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"status":       domain.SyncStatusFailed,
			"lastDeviceId": deviceID,
			"lastError":    syncErr,
			"updatedAt":    now,
		},
		"$inc": bson.M{
			"totalSyncs":  1,
			"failedSyncs": 1,
		},
		"$setOnInsert": bson.M{
			"userId":    userID,
			"createdAt": now,
		},
	}
	return r.upsert(ctx, userID, update)
}

// GetByUserID fetches the user's metadata row.
func (r *mongoSyncMetadataRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.SyncMetadata, error) {
	var meta domain.SyncMetadata
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &meta, nil
}

func (r *mongoSyncMetadataRepository) upsert(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"userId": userID}, update, options.Update().SetUpsert(true))
	return mapWriteError(err)
}

// EnsureSyncMetadataIndexes creates necessary indexes. Call during startup.
func EnsureSyncMetadataIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
