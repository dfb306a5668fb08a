package service

import (
	"context"
	"fmt"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reconciler merges one incoming workout subtree into the corresponding
// server subtree, or creates it fresh. Conflict decisions are made by
// ResolveConflict at every level independently; the caller wraps each
// ReconcileWorkout call in one transaction so the whole subtree's accepted
// mutations commit or abort together.
type Reconciler struct {
	workouts  repository.WorkoutRepository
	instances repository.WorkoutExerciseRepository
	sets      repository.ExerciseSetRepository
}

// NewReconciler creates a new reconciler over the given persistence handles.
func NewReconciler(
	workouts repository.WorkoutRepository,
	instances repository.WorkoutExerciseRepository,
	sets repository.ExerciseSetRepository,
) *Reconciler {
	return &Reconciler{
		workouts:  workouts,
		instances: instances,
		sets:      sets,
	}
}

// ReconcileOutcome describes what one workout's reconciliation did.
type ReconcileOutcome struct {
	Created bool
	// Changed is true when the subtree accepted at least one mutation
	// (creation, winning update, fresh insert, or implicit deletion).
	// Replaying an unchanged payload leaves it false.
	Changed   bool
	Conflicts []domain.ConflictRecord
}

// ReconcileWorkout merges one incoming workout into server state. existing is
// the pre-fetched server workout for the same client id, or nil for the
// create path. catalog maps every exercise name of the incoming workout to
// its canonical catalog id, resolved before the surrounding transaction
// began.
func (r *Reconciler) ReconcileWorkout(
	ctx context.Context,
	userID primitive.ObjectID,
	incoming *WorkoutSyncData,
	existing *domain.Workout,
	catalog map[string]primitive.ObjectID,
) (*ReconcileOutcome, error) {
	if existing == nil {
		return r.createWorkout(ctx, userID, incoming, catalog)
	}
	return r.mergeWorkout(ctx, userID, incoming, existing, catalog)
}

// createWorkout inserts the full subtree: workout, exercise instances in
// array order, sets numbered by array index.
func (r *Reconciler) createWorkout(
	ctx context.Context,
	userID primitive.ObjectID,
	incoming *WorkoutSyncData,
	catalog map[string]primitive.ObjectID,
) (*ReconcileOutcome, error) {
	volume, setCount, repCount := payloadTotals(incoming)

	workout := &domain.Workout{
		UserID:          userID,
		ClientID:        incoming.ClientID,
		Name:            incoming.Name,
		Date:            incoming.Date.Time,
		DurationSeconds: incoming.DurationSeconds,
		IsCompleted:     incoming.IsCompleted,
		StartTime:       incoming.StartTime,
		EndTime:         incoming.EndTime,
		TotalVolume:     volume,
		TotalSets:       setCount,
		TotalReps:       repCount,
		ClientUpdatedAt: incoming.UpdatedAt,
	}
	workoutID, err := r.workouts.Create(ctx, workout)
	if err != nil {
		return nil, fmt.Errorf("create workout %s: %w", incoming.ClientID, err)
	}

	for i := range incoming.Exercises {
		if err := r.insertExercise(ctx, workoutID, &incoming.Exercises[i], i, catalog); err != nil {
			return nil, err
		}
	}

	return &ReconcileOutcome{Created: true, Changed: true}, nil
}

// mergeWorkout applies conflict resolution to the workout-level fields, then
// reconciles the exercise list by client id, then applies the implicit
// deletion rule to server-side exercises missing from the payload.
func (r *Reconciler) mergeWorkout(
	ctx context.Context,
	userID primitive.ObjectID,
	incoming *WorkoutSyncData,
	existing *domain.Workout,
	catalog map[string]primitive.ObjectID,
) (*ReconcileOutcome, error) {
	out := &ReconcileOutcome{}

	// Workout-level fields only; nested lists are reconciled independently.
	if ResolveConflict(incoming.UpdatedAt, existing.UpdatedAt) == domain.ResolutionClientWins {
		existing.Name = incoming.Name
		existing.Date = incoming.Date.Time
		existing.DurationSeconds = incoming.DurationSeconds
		existing.IsCompleted = incoming.IsCompleted
		existing.StartTime = incoming.StartTime
		existing.EndTime = incoming.EndTime
		existing.ClientUpdatedAt = incoming.UpdatedAt
		if err := r.workouts.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update workout %s: %w", incoming.ClientID, err)
		}
		out.Changed = true
	} else {
		out.Conflicts = append(out.Conflicts, domain.ConflictRecord{
			UserID:          userID,
			EntityType:      domain.EntityTypeWorkout,
			EntityID:        incoming.ClientID,
			ClientData:      domain.ConflictSnapshot{Workout: workoutClientSnapshot(incoming)},
			ServerData:      domain.ConflictSnapshot{Workout: workoutServerSnapshot(existing)},
			ClientTimestamp: incoming.UpdatedAt,
			ServerTimestamp: existing.UpdatedAt,
			Resolution:      domain.ResolutionServerWins,
		})
	}

	existingInstances, err := r.instances.GetByWorkoutID(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("load exercises of workout %s: %w", incoming.ClientID, err)
	}
	instanceIDs := make([]primitive.ObjectID, len(existingInstances))
	byClientID := make(map[string]*domain.WorkoutExercise, len(existingInstances))
	for i := range existingInstances {
		instanceIDs[i] = existingInstances[i].ID
		byClientID[existingInstances[i].ClientID] = &existingInstances[i]
	}

	allSets, err := r.sets.GetByWorkoutExerciseIDs(ctx, instanceIDs)
	if err != nil {
		return nil, fmt.Errorf("load sets of workout %s: %w", incoming.ClientID, err)
	}
	setsByInstance := make(map[primitive.ObjectID][]domain.ExerciseSet)
	for _, s := range allSets {
		setsByInstance[s.WorkoutExerciseID] = append(setsByInstance[s.WorkoutExerciseID], s)
	}

	seen := make(map[string]bool, len(incoming.Exercises))
	for i := range incoming.Exercises {
		in := &incoming.Exercises[i]
		match := byClientID[in.ClientID]
		if match == nil {
			if err := r.insertExercise(ctx, existing.ID, in, i, catalog); err != nil {
				return nil, err
			}
			out.Changed = true
			continue
		}
		seen[in.ClientID] = true

		if ResolveConflict(in.UpdatedAt, match.UpdatedAt) == domain.ResolutionClientWins {
			match.Name = in.ExerciseName
			match.PrimaryMuscles = in.PrimaryMuscles
			match.Position = i
			match.ExerciseID = catalog[in.ExerciseName]
			match.ClientUpdatedAt = in.UpdatedAt
			if err := r.instances.Update(ctx, match); err != nil {
				return nil, fmt.Errorf("update exercise %s: %w", in.ClientID, err)
			}
			out.Changed = true
		} else {
			out.Conflicts = append(out.Conflicts, domain.ConflictRecord{
				UserID:          userID,
				EntityType:      domain.EntityTypeExercise,
				EntityID:        in.ClientID,
				ClientData:      domain.ConflictSnapshot{Exercise: exerciseClientSnapshot(in, i)},
				ServerData:      domain.ConflictSnapshot{Exercise: exerciseServerSnapshot(match)},
				ClientTimestamp: in.UpdatedAt,
				ServerTimestamp: match.UpdatedAt,
				Resolution:      domain.ResolutionServerWins,
			})
		}

		// The set diff runs whether the exercise itself won or lost.
		threshold := SetDeletionThreshold(in.Sets, in.UpdatedAt)
		if err := r.reconcileSets(ctx, userID, match.ID, in.Sets, setsByInstance[match.ID], threshold, out); err != nil {
			return nil, err
		}
	}

	// Implicit deletion: a server-side exercise absent from the payload was
	// deleted on the client only if the client has seen it, i.e. the
	// workout's incoming timestamp is strictly newer than the instance's
	// stored server timestamp.
	for i := range existingInstances {
		ex := &existingInstances[i]
		if seen[ex.ClientID] {
			continue
		}
		if !incoming.UpdatedAt.After(ex.UpdatedAt) {
			continue
		}
		if err := r.sets.DeleteByWorkoutExerciseID(ctx, ex.ID); err != nil {
			return nil, fmt.Errorf("delete sets of exercise %s: %w", ex.ClientID, err)
		}
		if err := r.instances.Delete(ctx, ex.ID); err != nil {
			return nil, fmt.Errorf("delete exercise %s: %w", ex.ClientID, err)
		}
		out.Changed = true
	}

	if out.Changed {
		if err := r.refreshTotals(ctx, existing.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// reconcileSets diffs one exercise instance's sets by client id.
// missingDeleteThreshold gates implicit deletion of server-side sets absent
// from the incoming list; see SetDeletionThreshold.
func (r *Reconciler) reconcileSets(
	ctx context.Context,
	userID primitive.ObjectID,
	instanceID primitive.ObjectID,
	incoming []SetSyncData,
	existing []domain.ExerciseSet,
	missingDeleteThreshold time.Time,
	out *ReconcileOutcome,
) error {
	byClientID := make(map[string]*domain.ExerciseSet, len(existing))
	for i := range existing {
		byClientID[existing[i].ClientID] = &existing[i]
	}

	seen := make(map[string]bool, len(incoming))
	for k := range incoming {
		in := &incoming[k]
		match := byClientID[in.ClientID]
		if match == nil {
			set := &domain.ExerciseSet{
				WorkoutExerciseID: instanceID,
				ClientID:          in.ClientID,
				SetNumber:         k + 1,
				Reps:              in.Reps,
				Weight:            in.Weight,
				SetType:           in.SetType,
				RPE:               in.RPE,
				ClientUpdatedAt:   in.UpdatedAt,
			}
			if _, err := r.sets.Create(ctx, set); err != nil {
				return fmt.Errorf("create set %s: %w", in.ClientID, err)
			}
			out.Changed = true
			continue
		}
		seen[in.ClientID] = true

		if ResolveConflict(in.UpdatedAt, match.UpdatedAt) == domain.ResolutionClientWins {
			match.SetNumber = k + 1
			match.Reps = in.Reps
			match.Weight = in.Weight
			match.SetType = in.SetType
			match.RPE = in.RPE
			match.ClientUpdatedAt = in.UpdatedAt
			if err := r.sets.Update(ctx, match); err != nil {
				return fmt.Errorf("update set %s: %w", in.ClientID, err)
			}
			out.Changed = true
		} else {
			out.Conflicts = append(out.Conflicts, domain.ConflictRecord{
				UserID:          userID,
				EntityType:      domain.EntityTypeSet,
				EntityID:        in.ClientID,
				ClientData:      domain.ConflictSnapshot{Set: setClientSnapshot(in, k+1)},
				ServerData:      domain.ConflictSnapshot{Set: setServerSnapshot(match)},
				ClientTimestamp: in.UpdatedAt,
				ServerTimestamp: match.UpdatedAt,
				Resolution:      domain.ResolutionServerWins,
			})
		}
	}

	for i := range existing {
		s := &existing[i]
		if seen[s.ClientID] {
			continue
		}
		if !missingDeleteThreshold.After(s.UpdatedAt) {
			continue
		}
		if err := r.sets.Delete(ctx, s.ID); err != nil {
			return fmt.Errorf("delete set %s: %w", s.ClientID, err)
		}
		out.Changed = true
	}
	return nil
}

// insertExercise inserts one incoming exercise instance and all of its sets.
func (r *Reconciler) insertExercise(
	ctx context.Context,
	workoutID primitive.ObjectID,
	in *ExerciseSyncData,
	position int,
	catalog map[string]primitive.ObjectID,
) error {
	instance := &domain.WorkoutExercise{
		WorkoutID:       workoutID,
		ExerciseID:      catalog[in.ExerciseName],
		ClientID:        in.ClientID,
		Position:        position,
		Name:            in.ExerciseName,
		PrimaryMuscles:  in.PrimaryMuscles,
		ClientUpdatedAt: in.UpdatedAt,
	}
	instanceID, err := r.instances.Create(ctx, instance)
	if err != nil {
		return fmt.Errorf("create exercise %s: %w", in.ClientID, err)
	}

	for k := range in.Sets {
		set := &domain.ExerciseSet{
			WorkoutExerciseID: instanceID,
			ClientID:          in.Sets[k].ClientID,
			SetNumber:         k + 1,
			Reps:              in.Sets[k].Reps,
			Weight:            in.Sets[k].Weight,
			SetType:           in.Sets[k].SetType,
			RPE:               in.Sets[k].RPE,
			ClientUpdatedAt:   in.Sets[k].UpdatedAt,
		}
		if _, err := r.sets.Create(ctx, set); err != nil {
			return fmt.Errorf("create set %s: %w", in.Sets[k].ClientID, err)
		}
	}
	return nil
}

// refreshTotals recomputes the workout's volume/set/rep totals from the
// post-merge state inside the same transaction.
func (r *Reconciler) refreshTotals(ctx context.Context, workoutID primitive.ObjectID) error {
	instances, err := r.instances.GetByWorkoutID(ctx, workoutID)
	if err != nil {
		return fmt.Errorf("recompute totals: %w", err)
	}
	ids := make([]primitive.ObjectID, len(instances))
	for i := range instances {
		ids[i] = instances[i].ID
	}
	sets, err := r.sets.GetByWorkoutExerciseIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("recompute totals: %w", err)
	}

	var volume float64
	var repCount int
	for _, s := range sets {
		volume += s.Weight * float64(s.Reps)
		repCount += s.Reps
	}
	return r.workouts.UpdateTotals(ctx, workoutID, volume, len(sets), repCount)
}

// payloadTotals computes volume/set/rep totals of a fully-incoming workout.
func payloadTotals(w *WorkoutSyncData) (volume float64, setCount, repCount int) {
	for i := range w.Exercises {
		for _, s := range w.Exercises[i].Sets {
			volume += s.Weight * float64(s.Reps)
			setCount++
			repCount += s.Reps
		}
	}
	return volume, setCount, repCount
}

func workoutClientSnapshot(in *WorkoutSyncData) *domain.WorkoutSnapshot {
	return &domain.WorkoutSnapshot{
		ClientID:        in.ClientID,
		Name:            in.Name,
		Date:            in.Date.Time,
		DurationSeconds: in.DurationSeconds,
		IsCompleted:     in.IsCompleted,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		UpdatedAt:       in.UpdatedAt,
	}
}

func workoutServerSnapshot(w *domain.Workout) *domain.WorkoutSnapshot {
	return &domain.WorkoutSnapshot{
		ClientID:        w.ClientID,
		Name:            w.Name,
		Date:            w.Date,
		DurationSeconds: w.DurationSeconds,
		IsCompleted:     w.IsCompleted,
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		UpdatedAt:       w.UpdatedAt,
	}
}

func exerciseClientSnapshot(in *ExerciseSyncData, position int) *domain.ExerciseSnapshot {
	return &domain.ExerciseSnapshot{
		ClientID:       in.ClientID,
		Name:           in.ExerciseName,
		PrimaryMuscles: in.PrimaryMuscles,
		Position:       position,
		UpdatedAt:      in.UpdatedAt,
	}
}

func exerciseServerSnapshot(e *domain.WorkoutExercise) *domain.ExerciseSnapshot {
	return &domain.ExerciseSnapshot{
		ClientID:       e.ClientID,
		Name:           e.Name,
		PrimaryMuscles: e.PrimaryMuscles,
		Position:       e.Position,
		UpdatedAt:      e.UpdatedAt,
	}
}

func setClientSnapshot(in *SetSyncData, number int) *domain.SetSnapshot {
	return &domain.SetSnapshot{
		ClientID:  in.ClientID,
		SetNumber: number,
		Reps:      in.Reps,
		Weight:    in.Weight,
		SetType:   in.SetType,
		RPE:       in.RPE,
		UpdatedAt: in.UpdatedAt,
	}
}

func setServerSnapshot(s *domain.ExerciseSet) *domain.SetSnapshot {
	return &domain.SetSnapshot{
		ClientID:  s.ClientID,
		SetNumber: s.SetNumber,
		Reps:      s.Reps,
		Weight:    s.Weight,
		SetType:   s.SetType,
		RPE:       s.RPE,
		UpdatedAt: s.UpdatedAt,
	}
}
