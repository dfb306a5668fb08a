package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SetType distinguishes warm-up sets from working sets.
type SetType string

const (
	SetTypeWarmup  SetType = "warmup"
	SetTypeWorking SetType = "working"
)

// Workout represents one training session recorded on a client device.
// (UserID, ClientID) is unique: exactly one server row per logical client workout.
// ClientID is generated on the device and is the idempotency key across devices;
// ID is the server-assigned primary key.
type Workout struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	ClientID        string             `bson:"clientId" json:"clientId"`
	Name            string             `bson:"name,omitempty" json:"name,omitempty"`
	Date            time.Time          `bson:"date" json:"date"`
	DurationSeconds *int               `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
	IsCompleted     bool               `bson:"isCompleted" json:"isCompleted"`
	StartTime       *time.Time         `bson:"startTime,omitempty" json:"startTime,omitempty"`
	EndTime         *time.Time         `bson:"endTime,omitempty" json:"endTime,omitempty"`

	// Totals are recomputed server-side whenever the subtree changes.
	TotalVolume float64 `bson:"totalVolume" json:"totalVolume"`
	TotalSets   int     `bson:"totalSets" json:"totalSets"`
	TotalReps   int     `bson:"totalReps" json:"totalReps"`

	// ClientUpdatedAt is the device's last-modified timestamp and drives
	// conflict resolution; UpdatedAt is the server-side last-modified
	// timestamp and drives the change feed.
	ClientUpdatedAt time.Time `bson:"clientUpdatedAt" json:"clientUpdatedAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
	LastSyncedAt    time.Time `bson:"lastSyncedAt" json:"lastSyncedAt"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// WorkoutExercise is a performed exercise instance within a workout. Name and
// PrimaryMuscles are a snapshot taken at performance time, intentionally
// decoupled from later edits to the canonical catalog entry it references.
// (WorkoutID, ClientID) is unique.
type WorkoutExercise struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutID      primitive.ObjectID `bson:"workoutId" json:"workoutId"`
	ExerciseID     primitive.ObjectID `bson:"exerciseId" json:"exerciseId"` // canonical catalog entry
	ClientID       string             `bson:"clientId" json:"clientId"`
	Position       int                `bson:"position" json:"position"` // array order at last write
	Name           string             `bson:"name" json:"name"`
	PrimaryMuscles []string           `bson:"primaryMuscles,omitempty" json:"primaryMuscles,omitempty"`

	ClientUpdatedAt time.Time `bson:"clientUpdatedAt" json:"clientUpdatedAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

// ExerciseSet is one performed set within an exercise instance.
// (WorkoutExerciseID, ClientID) is unique.
type ExerciseSet struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutExerciseID primitive.ObjectID `bson:"workoutExerciseId" json:"workoutExerciseId"`
	ClientID          string             `bson:"clientId" json:"clientId"`
	SetNumber         int                `bson:"setNumber" json:"setNumber"`
	Reps              int                `bson:"reps" json:"reps"`
	Weight            float64            `bson:"weight" json:"weight"`
	SetType           SetType            `bson:"setType" json:"setType"`
	RPE               *float64           `bson:"rpe,omitempty" json:"rpe,omitempty"` // perceived effort, optional

	ClientUpdatedAt time.Time `bson:"clientUpdatedAt" json:"clientUpdatedAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}
