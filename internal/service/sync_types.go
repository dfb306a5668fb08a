package service

import (
	"fmt"
	"time"

	"fitsync/sync-server/internal/domain"
)

// Payload limits. Violating payloads are rejected wholesale before any
// mutation, with every violation enumerated (capped for the response).
const (
	MaxDeviceIDLength      = 100
	MaxWorkoutsPerSync     = 100
	MaxExercisesPerWorkout = 50
	MaxSetsPerExercise     = 20
	MaxExerciseNameLength  = 100
	MaxRepsPerSet          = 10000
	MaxWeightPerSet        = 10000
	MaxReportedViolations  = 20
)

// Date unmarshals both bare calendar dates ("2026-01-01") and full RFC 3339
// timestamps, since older app builds send workout dates without a time part.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	s = s[1 : len(s)-1]
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.UTC().Format(time.RFC3339) + `"`), nil
}

// DeviceInfo is the optional device metadata block of a sync request.
type DeviceInfo struct {
	Name       string `json:"name,omitempty"`
	Type       string `json:"type"`
	AppVersion string `json:"appVersion"`
	OSVersion  string `json:"osVersion,omitempty"`
	PushToken  string `json:"pushToken,omitempty"`
}

// SetSyncData is one performed set as submitted by (and returned to) clients.
type SetSyncData struct {
	ClientID  string         `json:"clientId"`
	SetNumber int            `json:"setNumber,omitempty"`
	Reps      int            `json:"reps"`
	Weight    float64        `json:"weight"`
	SetType   domain.SetType `json:"setType"`
	RPE       *float64       `json:"rpe,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ExerciseSyncData is one performed exercise instance with its sets.
type ExerciseSyncData struct {
	ClientID       string        `json:"clientId"`
	ExerciseName   string        `json:"exerciseName"`
	PrimaryMuscles []string      `json:"primaryMuscles,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Sets           []SetSyncData `json:"sets"`
}

// WorkoutSyncData is one workout tree as submitted by (and returned to)
// clients. UpdatedAt is the device-local last-modified timestamp driving
// conflict resolution.
type WorkoutSyncData struct {
	ClientID        string             `json:"clientId"`
	Name            string             `json:"name,omitempty"`
	Date            Date               `json:"date"`
	DurationSeconds *int               `json:"durationSeconds,omitempty"`
	IsCompleted     bool               `json:"isCompleted"`
	StartTime       *time.Time         `json:"startTime,omitempty"`
	EndTime         *time.Time         `json:"endTime,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Exercises       []ExerciseSyncData `json:"exercises"`
}

// SyncRequest is the full payload of one sync call.
type SyncRequest struct {
	DeviceID          string            `json:"deviceId" binding:"required,max=100"`
	DeviceInfo        *DeviceInfo       `json:"deviceInfo,omitempty"`
	LastSyncTimestamp *time.Time        `json:"lastSyncTimestamp,omitempty"`
	Workouts          []WorkoutSyncData `json:"workouts"`
}

// SyncConflict is one resolved conflict reported back to the caller.
type SyncConflict struct {
	EntityType domain.EntityType       `json:"entityType"`
	EntityID   string                  `json:"entityId"`
	ClientData domain.ConflictSnapshot `json:"clientData"`
	ServerData domain.ConflictSnapshot `json:"serverData"`
	Resolution domain.Resolution       `json:"resolution"`
}

// ServerData is the server's view of everything newer than the client's last
// sync point.
type ServerData struct {
	Workouts       []WorkoutSyncData `json:"workouts"`
	LastServerSync time.Time         `json:"lastServerSync"`
}

// SyncStats summarizes one sync session.
type SyncStats struct {
	Uploaded   int `json:"uploaded"`
	Downloaded int `json:"downloaded"`
	Conflicts  int `json:"conflicts"`
}

// SyncResult is the response of one sync call.
type SyncResult struct {
	Success    bool           `json:"success"`
	SyncedAt   time.Time      `json:"syncedAt"`
	Conflicts  []SyncConflict `json:"conflicts,omitempty"`
	ServerData *ServerData    `json:"serverData,omitempty"`
	Stats      *SyncStats     `json:"stats,omitempty"`
}

// ValidationError reports every payload violation found before any mutation
// was attempted.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sync payload validation failed: %d violation(s)", len(e.Violations))
}

// Validate checks the whole payload against the size and field limits. All
// violations are collected (capped at MaxReportedViolations) so the client
// can fix them in one round trip; nothing is partially applied.
func (r *SyncRequest) Validate() *ValidationError {
	var v violations

	if r.DeviceID == "" {
		v.addf("deviceId: required")
	} else if len(r.DeviceID) > MaxDeviceIDLength {
		v.addf("deviceId: exceeds %d characters", MaxDeviceIDLength)
	}
	if len(r.Workouts) > MaxWorkoutsPerSync {
		v.addf("workouts: exceeds %d entries", MaxWorkoutsPerSync)
	}

	for i := range r.Workouts {
		w := &r.Workouts[i]
		if w.ClientID == "" {
			v.addf("workouts[%d].clientId: required", i)
		}
		if w.UpdatedAt.IsZero() {
			v.addf("workouts[%d].updatedAt: required", i)
		}
		if len(w.Exercises) > MaxExercisesPerWorkout {
			v.addf("workouts[%d].exercises: exceeds %d entries", i, MaxExercisesPerWorkout)
		}
		for j := range w.Exercises {
			e := &w.Exercises[j]
			if e.ClientID == "" {
				v.addf("workouts[%d].exercises[%d].clientId: required", i, j)
			}
			if e.ExerciseName == "" {
				v.addf("workouts[%d].exercises[%d].exerciseName: required", i, j)
			} else if len(e.ExerciseName) > MaxExerciseNameLength {
				v.addf("workouts[%d].exercises[%d].exerciseName: exceeds %d characters", i, j, MaxExerciseNameLength)
			}
			if e.UpdatedAt.IsZero() {
				v.addf("workouts[%d].exercises[%d].updatedAt: required", i, j)
			}
			if len(e.Sets) > MaxSetsPerExercise {
				v.addf("workouts[%d].exercises[%d].sets: exceeds %d entries", i, j, MaxSetsPerExercise)
			}
			for k := range e.Sets {
				set := &e.Sets[k]
				if set.ClientID == "" {
					v.addf("workouts[%d].exercises[%d].sets[%d].clientId: required", i, j, k)
				}
				if set.Reps < 0 || set.Reps > MaxRepsPerSet {
					v.addf("workouts[%d].exercises[%d].sets[%d].reps: must be between 0 and %d", i, j, k, MaxRepsPerSet)
				}
				if set.Weight < 0 || set.Weight > MaxWeightPerSet {
					v.addf("workouts[%d].exercises[%d].sets[%d].weight: must be between 0 and %d", i, j, k, MaxWeightPerSet)
				}
				if set.SetType != domain.SetTypeWarmup && set.SetType != domain.SetTypeWorking {
					v.addf("workouts[%d].exercises[%d].sets[%d].setType: must be %q or %q", i, j, k, domain.SetTypeWarmup, domain.SetTypeWorking)
				}
				if set.UpdatedAt.IsZero() {
					v.addf("workouts[%d].exercises[%d].sets[%d].updatedAt: required", i, j, k)
				}
			}
		}
	}

	if v.total == 0 {
		return nil
	}
	return &ValidationError{Violations: v.messages}
}

// violations accumulates messages up to the reporting cap while still
// counting the rest.
type violations struct {
	messages []string
	total    int
}

func (v *violations) addf(format string, args ...interface{}) {
	v.total++
	if len(v.messages) < MaxReportedViolations {
		v.messages = append(v.messages, fmt.Sprintf(format, args...))
	}
}
