package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exercise is a canonical, name-unique catalog entry shared across all users.
// It is created lazily the first time a previously-unseen exercise name is
// synced (flagged custom in that case) and never removed by the sync
// subsystem. Per-workout exercise instances keep their own denormalized name
// snapshot, so catalog edits do not rewrite workout history.
type Exercise struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"` // unique, case-sensitive
	PrimaryMuscles []string           `bson:"primaryMuscles,omitempty" json:"primaryMuscles,omitempty"`
	IsCustom       bool               `bson:"isCustom" json:"isCustom"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
