package service

import (
	"context"
	"errors"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseLibrary resolves free-text exercise names to canonical catalog ids,
// creating custom-origin entries the first time a name is seen. Resolution
// runs before the workout's write transaction to keep catalog creation out of
// it.
type ExerciseLibrary struct {
	exercises repository.ExerciseRepository
}

// NewExerciseLibrary creates a new library resolver.
func NewExerciseLibrary(exercises repository.ExerciseRepository) *ExerciseLibrary {
	return &ExerciseLibrary{exercises: exercises}
}

// Resolve returns the catalog id for an exact, case-sensitive name match,
// inserting a new custom entry when the name is unseen. Two concurrent syncs
// can race to create the same brand-new entry; the loser's insert fails on
// the unique name index and is resolved by re-fetching the winner's row.
func (l *ExerciseLibrary) Resolve(ctx context.Context, name string, primaryMuscles []string) (primitive.ObjectID, error) {
	existing, err := l.exercises.GetByName(ctx, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, err
	}

	id, err := l.exercises.Create(ctx, &domain.Exercise{
		Name:           name,
		PrimaryMuscles: primaryMuscles,
		IsCustom:       true,
	})
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return primitive.NilObjectID, err
	}

	// Lost the creation race; the row exists now.
	existing, err = l.exercises.GetByName(ctx, name)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return existing.ID, nil
}

// ResolveAll resolves every exercise name of one incoming workout, keyed by
// name. Duplicate names within a workout resolve once.
func (l *ExerciseLibrary) ResolveAll(ctx context.Context, workout *WorkoutSyncData) (map[string]primitive.ObjectID, error) {
	ids := make(map[string]primitive.ObjectID, len(workout.Exercises))
	for i := range workout.Exercises {
		ex := &workout.Exercises[i]
		if _, ok := ids[ex.ExerciseName]; ok {
			continue
		}
		id, err := l.Resolve(ctx, ex.ExerciseName, ex.PrimaryMuscles)
		if err != nil {
			return nil, err
		}
		ids[ex.ExerciseName] = id
	}
	return ids, nil
}
