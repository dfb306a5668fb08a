package service

import (
	"context"
	"fmt"
	"testing"

	"fitsync/sync-server/internal/domain"
)

func TestListExercisesClampsLimit(t *testing.T) {
	f := newFixture()
	for i := 0; i < defaultExerciseListLimit+10; i++ {
		f.store.seedCatalog(domain.Exercise{Name: fmt.Sprintf("Exercise %03d", i)})
	}
	svc := NewExerciseService(f.catalog)

	testCases := []struct {
		name  string
		limit int64
		want  int
	}{
		{"zero limit uses default", 0, defaultExerciseListLimit},
		{"negative limit uses default", -5, defaultExerciseListLimit},
		{"limit above cap uses default", 500, defaultExerciseListLimit},
		{"explicit small limit", 10, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exercises, err := svc.ListExercises(context.Background(), "", tc.limit)
			if err != nil {
				t.Fatalf("ListExercises returned error: %v", err)
			}
			if len(exercises) != tc.want {
				t.Errorf("got %d exercises, want %d", len(exercises), tc.want)
			}
		})
	}
}
