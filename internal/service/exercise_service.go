package service

import (
	"context"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"
)

const defaultExerciseListLimit = 50

// ExerciseService serves read-only views of the canonical exercise catalog.
// It shares the catalog collection with the sync path but performs no writes;
// catalog entries are only ever created through ExerciseLibrary's lazy
// resolution during sync.
type ExerciseService interface {
	ListExercises(ctx context.Context, search string, limit int64) ([]domain.Exercise, error)
}

type exerciseService struct {
	exercises repository.ExerciseRepository
}

// NewExerciseService creates a new read-only catalog service.
func NewExerciseService(exercises repository.ExerciseRepository) ExerciseService {
	return &exerciseService{exercises: exercises}
}

// ListExercises returns catalog entries ordered by name, optionally filtered
// by a substring search.
func (s *exerciseService) ListExercises(ctx context.Context, search string, limit int64) ([]domain.Exercise, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultExerciseListLimit
	}
	return s.exercises.List(ctx, search, limit)
}
