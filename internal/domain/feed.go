package domain

// WorkoutTreeRow is one denormalized row of the change-feed read: a workout
// joined with at most one of its exercise instances and at most one of that
// instance's sets. A workout with no exercises yields a single row with both
// pointers nil; the join repeats workout and exercise fields across set rows,
// and the feed folds them back into a nested tree keyed by server id.
type WorkoutTreeRow struct {
	Workout  Workout          `bson:",inline"`
	Exercise *WorkoutExercise `bson:"exercise,omitempty"`
	Set      *ExerciseSet     `bson:"set,omitempty"`
}
