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

const deviceCollectionName = "devices"

// mongoDeviceRepository implements repository.DeviceRepository
type mongoDeviceRepository struct {
	collection *mongo.Collection
}

// NewMongoDeviceRepository creates a new device repository.
func NewMongoDeviceRepository(db *mongo.Database) repository.DeviceRepository {
	return &mongoDeviceRepository{
		collection: db.Collection(deviceCollectionName),
	}
}

// Upsert refreshes the metadata of an existing (userId, deviceId) row or
// inserts a new one on first contact.
func (r *mongoDeviceRepository) Upsert(ctx context.Context, device *domain.Device) error {
	if device.UserID == primitive.NilObjectID || device.DeviceID == "" {
		return errors.New("device requires userId and deviceId")
	}

	now := time.Now().UTC()
	filter := bson.M{"userId": device.UserID, "deviceId": device.DeviceID}
	update := bson.M{
		"$set": bson.M{
			"name":         device.Name,
			"platform":     device.Platform,
			"appVersion":   device.AppVersion,
			"osVersion":    device.OSVersion,
			"pushToken":    device.PushToken,
			"lastActiveAt": now,
			"lastSyncAt":   now,
		},
		"$setOnInsert": bson.M{
			"userId":    device.UserID,
			"deviceId":  device.DeviceID,
			"createdAt": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return mapWriteError(err)
	}
	device.LastActiveAt = now
	device.LastSyncAt = now
	return nil
}

// GetByUserID lists a user's registered devices, most recently active first.
func (r *mongoDeviceRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Device, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "lastActiveAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []domain.Device
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// EnsureDeviceIndexes creates necessary indexes. Call during startup.
func EnsureDeviceIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "deviceId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
