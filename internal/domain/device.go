package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Placeholder recorded when a device omits platform or version info; an
// incomplete deviceInfo block must never fail a sync.
const DeviceInfoUnknown = "unknown"

// Device is one row per (user, device identifier). Metadata is refreshed on
// every sync from that device.
type Device struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	DeviceID   string             `bson:"deviceId" json:"deviceId"` // client-chosen identifier
	Name       string             `bson:"name,omitempty" json:"name,omitempty"`
	Platform   string             `bson:"platform" json:"platform"`
	AppVersion string             `bson:"appVersion" json:"appVersion"`
	OSVersion  string             `bson:"osVersion,omitempty" json:"osVersion,omitempty"`
	PushToken  string             `bson:"pushToken,omitempty" json:"pushToken,omitempty"`

	LastActiveAt time.Time `bson:"lastActiveAt" json:"lastActiveAt"`
	LastSyncAt   time.Time `bson:"lastSyncAt" json:"lastSyncAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
