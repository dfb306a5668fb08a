package service

import (
	"context"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChangeFeed computes the server-side changes a client is missing: everything
// modified on the server after the client's last known sync point, returned
// as full nested workout trees.
type ChangeFeed struct {
	rows repository.ChangeFeedRepository
}

// NewChangeFeed creates a new change feed over the given read repository.
func NewChangeFeed(rows repository.ChangeFeedRepository) *ChangeFeed {
	return &ChangeFeed{rows: rows}
}

// ChangesSince returns the user's workouts whose server-side timestamp is
// strictly newer than since (the epoch when the client has never synced),
// ordered by workout date.
func (f *ChangeFeed) ChangesSince(ctx context.Context, userID primitive.ObjectID, since *time.Time) ([]WorkoutSyncData, error) {
	cutoff := time.Unix(0, 0).UTC()
	if since != nil {
		cutoff = *since
	}
	rows, err := f.rows.RowsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}
	return FoldWorkoutRows(rows), nil
}

// FoldWorkoutRows rebuilds nested workout trees from the denormalized join
// stream. The join repeats workout and exercise fields once per set, so rows
// are folded keyed by server id: exactly one entry per distinct workout and
// exercise regardless of fan-out. Row order (workout date, exercise position,
// set number) is preserved.
func FoldWorkoutRows(rows []domain.WorkoutTreeRow) []WorkoutSyncData {
	workouts := make([]WorkoutSyncData, 0)
	workoutIdx := make(map[primitive.ObjectID]int)
	exerciseIdx := make(map[primitive.ObjectID]map[primitive.ObjectID]int)

	for i := range rows {
		row := &rows[i]
		wi, ok := workoutIdx[row.Workout.ID]
		if !ok {
			wi = len(workouts)
			workoutIdx[row.Workout.ID] = wi
			exerciseIdx[row.Workout.ID] = make(map[primitive.ObjectID]int)
			workouts = append(workouts, WorkoutSyncData{
				ClientID:        row.Workout.ClientID,
				Name:            row.Workout.Name,
				Date:            Date{row.Workout.Date},
				DurationSeconds: row.Workout.DurationSeconds,
				IsCompleted:     row.Workout.IsCompleted,
				StartTime:       row.Workout.StartTime,
				EndTime:         row.Workout.EndTime,
				UpdatedAt:       row.Workout.ClientUpdatedAt,
				Exercises:       []ExerciseSyncData{},
			})
		}

		if row.Exercise == nil {
			continue
		}
		ei, ok := exerciseIdx[row.Workout.ID][row.Exercise.ID]
		if !ok {
			ei = len(workouts[wi].Exercises)
			exerciseIdx[row.Workout.ID][row.Exercise.ID] = ei
			workouts[wi].Exercises = append(workouts[wi].Exercises, ExerciseSyncData{
				ClientID:       row.Exercise.ClientID,
				ExerciseName:   row.Exercise.Name,
				PrimaryMuscles: row.Exercise.PrimaryMuscles,
				UpdatedAt:      row.Exercise.ClientUpdatedAt,
				Sets:           []SetSyncData{},
			})
		}

		if row.Set == nil {
			continue
		}
		workouts[wi].Exercises[ei].Sets = append(workouts[wi].Exercises[ei].Sets, SetSyncData{
			ClientID:  row.Set.ClientID,
			SetNumber: row.Set.SetNumber,
			Reps:      row.Set.Reps,
			Weight:    row.Set.Weight,
			SetType:   row.Set.SetType,
			RPE:       row.Set.RPE,
			UpdatedAt: row.Set.ClientUpdatedAt,
		})
	}
	return workouts
}
