package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncStatus is the state of a user's current/last sync session.
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// Resolution is the outcome of comparing a client and a server timestamp.
type Resolution string

const (
	ResolutionClientWins Resolution = "client_wins"
	ResolutionServerWins Resolution = "server_wins"
)

// EntityType discriminates the levels of the workout tree in conflict records.
type EntityType string

const (
	EntityTypeWorkout  EntityType = "workout"
	EntityTypeExercise EntityType = "exercise"
	EntityTypeSet      EntityType = "set"
)

// SyncError is the structured error stored on the metadata row when a sync
// session fails.
type SyncError struct {
	Code      string    `bson:"code" json:"code"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// SyncMetadata is one row per user recording sync session state transitions
// and running counters. Created on first contact, updated forever, never
// deleted.
type SyncMetadata struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Status SyncStatus         `bson:"status" json:"status"`

	TotalSyncs      int `bson:"totalSyncs" json:"totalSyncs"`
	SuccessfulSyncs int `bson:"successfulSyncs" json:"successfulSyncs"`
	FailedSyncs     int `bson:"failedSyncs" json:"failedSyncs"`

	LastSyncStartedAt   *time.Time `bson:"lastSyncStartedAt,omitempty" json:"lastSyncStartedAt,omitempty"`
	LastSyncCompletedAt *time.Time `bson:"lastSyncCompletedAt,omitempty" json:"lastSyncCompletedAt,omitempty"`
	LastError           *SyncError `bson:"lastError,omitempty" json:"lastError,omitempty"`
	LastDeviceID        string     `bson:"lastDeviceId,omitempty" json:"lastDeviceId,omitempty"`
	LastSessionID       string     `bson:"lastSessionId,omitempty" json:"lastSessionId,omitempty"`

	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// WorkoutSnapshot captures workout-level fields (no children) on one side of
// a conflict.
type WorkoutSnapshot struct {
	ClientID        string     `bson:"clientId" json:"clientId"`
	Name            string     `bson:"name,omitempty" json:"name,omitempty"`
	Date            time.Time  `bson:"date" json:"date"`
	DurationSeconds *int       `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
	IsCompleted     bool       `bson:"isCompleted" json:"isCompleted"`
	StartTime       *time.Time `bson:"startTime,omitempty" json:"startTime,omitempty"`
	EndTime         *time.Time `bson:"endTime,omitempty" json:"endTime,omitempty"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// ExerciseSnapshot captures one side of an exercise-instance conflict.
type ExerciseSnapshot struct {
	ClientID       string    `bson:"clientId" json:"clientId"`
	Name           string    `bson:"name" json:"name"`
	PrimaryMuscles []string  `bson:"primaryMuscles,omitempty" json:"primaryMuscles,omitempty"`
	Position       int       `bson:"position" json:"position"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SetSnapshot captures one side of a set conflict.
type SetSnapshot struct {
	ClientID  string    `bson:"clientId" json:"clientId"`
	SetNumber int       `bson:"setNumber" json:"setNumber"`
	Reps      int       `bson:"reps" json:"reps"`
	Weight    float64   `bson:"weight" json:"weight"`
	SetType   SetType   `bson:"setType" json:"setType"`
	RPE       *float64  `bson:"rpe,omitempty" json:"rpe,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ConflictSnapshot is a tagged union: exactly one field is non-nil, matching
// the EntityType of the record that carries it.
type ConflictSnapshot struct {
	Workout  *WorkoutSnapshot  `bson:"workout,omitempty" json:"workout,omitempty"`
	Exercise *ExerciseSnapshot `bson:"exercise,omitempty" json:"exercise,omitempty"`
	Set      *SetSnapshot      `bson:"set,omitempty" json:"set,omitempty"`
}

// ConflictRecord is an append-only audit entry for a losing side of conflict
// resolution. Never mutated by this subsystem; ReviewOutcome may be filled in
// later by manual review tooling.
type ConflictRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	EntityType EntityType         `bson:"entityType" json:"entityType"`
	EntityID   string             `bson:"entityId" json:"entityId"` // client id of the entity

	ClientData      ConflictSnapshot `bson:"clientData" json:"clientData"`
	ServerData      ConflictSnapshot `bson:"serverData" json:"serverData"`
	ClientTimestamp time.Time        `bson:"clientTimestamp" json:"clientTimestamp"`
	ServerTimestamp time.Time        `bson:"serverTimestamp" json:"serverTimestamp"`
	Resolution      Resolution       `bson:"resolution" json:"resolution"`

	ReviewOutcome *string   `bson:"reviewOutcome,omitempty" json:"reviewOutcome,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}
