package service

import (
	"context"
	"sort"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"
	"fitsync/sync-server/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is shared in-memory state behind the per-interface fake
// repositories. The fakes mirror the Mongo semantics the engine relies on:
// unique-index violations surface as repository.ErrDuplicateKey and every
// write stamps the server-side UpdatedAt from the store clock.
type memStore struct {
	workouts  map[primitive.ObjectID]*domain.Workout
	instances map[primitive.ObjectID]*domain.WorkoutExercise
	sets      map[primitive.ObjectID]*domain.ExerciseSet
	catalog   map[primitive.ObjectID]*domain.Exercise
	devices   map[string]*domain.Device
	metadata  map[primitive.ObjectID]*domain.SyncMetadata
	conflicts []domain.ConflictRecord

	clock func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		workouts:  make(map[primitive.ObjectID]*domain.Workout),
		instances: make(map[primitive.ObjectID]*domain.WorkoutExercise),
		sets:      make(map[primitive.ObjectID]*domain.ExerciseSet),
		catalog:   make(map[primitive.ObjectID]*domain.Exercise),
		devices:   make(map[string]*domain.Device),
		metadata:  make(map[primitive.ObjectID]*domain.SyncMetadata),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// seed helpers insert rows directly with caller-chosen server timestamps.

func (s *memStore) seedWorkout(w domain.Workout) primitive.ObjectID {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.workouts[w.ID] = &w
	return w.ID
}

func (s *memStore) seedInstance(e domain.WorkoutExercise) primitive.ObjectID {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	s.instances[e.ID] = &e
	return e.ID
}

func (s *memStore) seedSet(set domain.ExerciseSet) primitive.ObjectID {
	if set.ID.IsZero() {
		set.ID = primitive.NewObjectID()
	}
	s.sets[set.ID] = &set
	return set.ID
}

func (s *memStore) seedCatalog(ex domain.Exercise) primitive.ObjectID {
	if ex.ID.IsZero() {
		ex.ID = primitive.NewObjectID()
	}
	s.catalog[ex.ID] = &ex
	return ex.ID
}

// --- repository.WorkoutRepository ---

type memWorkoutRepo struct {
	store *memStore
}

func (r *memWorkoutRepo) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	for _, w := range r.store.workouts {
		if w.UserID == workout.UserID && w.ClientID == workout.ClientID {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	now := r.store.clock()
	workout.ID = primitive.NewObjectID()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	workout.LastSyncedAt = now
	cp := *workout
	r.store.workouts[workout.ID] = &cp
	return workout.ID, nil
}

func (r *memWorkoutRepo) Update(ctx context.Context, workout *domain.Workout) error {
	stored, ok := r.store.workouts[workout.ID]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.store.clock()
	cp := *workout
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = now
	cp.LastSyncedAt = now
	r.store.workouts[workout.ID] = &cp
	workout.UpdatedAt = now
	return nil
}

func (r *memWorkoutRepo) UpdateTotals(ctx context.Context, id primitive.ObjectID, totalVolume float64, totalSets, totalReps int) error {
	stored, ok := r.store.workouts[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.store.clock()
	stored.TotalVolume = totalVolume
	stored.TotalSets = totalSets
	stored.TotalReps = totalReps
	stored.UpdatedAt = now
	stored.LastSyncedAt = now
	return nil
}

func (r *memWorkoutRepo) GetByClientIDs(ctx context.Context, userID primitive.ObjectID, clientIDs []string) ([]domain.Workout, error) {
	wanted := make(map[string]bool, len(clientIDs))
	for _, id := range clientIDs {
		wanted[id] = true
	}
	var out []domain.Workout
	for _, w := range r.store.workouts {
		if w.UserID == userID && wanted[w.ClientID] {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *memWorkoutRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	w, ok := r.store.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// --- repository.WorkoutExerciseRepository ---

type memInstanceRepo struct {
	store *memStore
}

func (r *memInstanceRepo) Create(ctx context.Context, exercise *domain.WorkoutExercise) (primitive.ObjectID, error) {
	for _, e := range r.store.instances {
		if e.WorkoutID == exercise.WorkoutID && e.ClientID == exercise.ClientID {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	now := r.store.clock()
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now
	cp := *exercise
	r.store.instances[exercise.ID] = &cp
	return exercise.ID, nil
}

func (r *memInstanceRepo) Update(ctx context.Context, exercise *domain.WorkoutExercise) error {
	stored, ok := r.store.instances[exercise.ID]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.store.clock()
	cp := *exercise
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = now
	r.store.instances[exercise.ID] = &cp
	exercise.UpdatedAt = now
	return nil
}

func (r *memInstanceRepo) GetByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	var out []domain.WorkoutExercise
	for _, e := range r.store.instances {
		if e.WorkoutID == workoutID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memInstanceRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := r.store.instances[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.store.instances, id)
	return nil
}

// --- repository.ExerciseSetRepository ---

type memSetRepo struct {
	store *memStore
}

func (r *memSetRepo) Create(ctx context.Context, set *domain.ExerciseSet) (primitive.ObjectID, error) {
	for _, s := range r.store.sets {
		if s.WorkoutExerciseID == set.WorkoutExerciseID && s.ClientID == set.ClientID {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	now := r.store.clock()
	set.ID = primitive.NewObjectID()
	set.CreatedAt = now
	set.UpdatedAt = now
	cp := *set
	r.store.sets[set.ID] = &cp
	return set.ID, nil
}

func (r *memSetRepo) Update(ctx context.Context, set *domain.ExerciseSet) error {
	stored, ok := r.store.sets[set.ID]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.store.clock()
	cp := *set
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = now
	r.store.sets[set.ID] = &cp
	set.UpdatedAt = now
	return nil
}

func (r *memSetRepo) GetByWorkoutExerciseIDs(ctx context.Context, workoutExerciseIDs []primitive.ObjectID) ([]domain.ExerciseSet, error) {
	wanted := make(map[primitive.ObjectID]bool, len(workoutExerciseIDs))
	for _, id := range workoutExerciseIDs {
		wanted[id] = true
	}
	var out []domain.ExerciseSet
	for _, s := range r.store.sets {
		if wanted[s.WorkoutExerciseID] {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetNumber < out[j].SetNumber })
	return out, nil
}

func (r *memSetRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := r.store.sets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.store.sets, id)
	return nil
}

func (r *memSetRepo) DeleteByWorkoutExerciseID(ctx context.Context, workoutExerciseID primitive.ObjectID) error {
	for id, s := range r.store.sets {
		if s.WorkoutExerciseID == workoutExerciseID {
			delete(r.store.sets, id)
		}
	}
	return nil
}

// --- repository.ExerciseRepository ---

type memCatalogRepo struct {
	store *memStore
	// beforeCreate runs once ahead of the next Create to stage creation races.
	beforeCreate func()
}

func (r *memCatalogRepo) GetByName(ctx context.Context, name string) (*domain.Exercise, error) {
	for _, e := range r.store.catalog {
		if e.Name == name {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCatalogRepo) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook()
	}
	for _, e := range r.store.catalog {
		if e.Name == exercise.Name {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	now := r.store.clock()
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now
	cp := *exercise
	r.store.catalog[exercise.ID] = &cp
	return exercise.ID, nil
}

func (r *memCatalogRepo) List(ctx context.Context, search string, limit int64) ([]domain.Exercise, error) {
	var out []domain.Exercise
	for _, e := range r.store.catalog {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- repository.DeviceRepository ---

type memDeviceRepo struct {
	store      *memStore
	failUpsert error
}

func (r *memDeviceRepo) Upsert(ctx context.Context, device *domain.Device) error {
	if r.failUpsert != nil {
		return r.failUpsert
	}
	now := r.store.clock()
	key := device.UserID.Hex() + "/" + device.DeviceID
	if existing, ok := r.store.devices[key]; ok {
		existing.Name = device.Name
		existing.Platform = device.Platform
		existing.AppVersion = device.AppVersion
		existing.OSVersion = device.OSVersion
		existing.PushToken = device.PushToken
		existing.LastActiveAt = now
		existing.LastSyncAt = now
		return nil
	}
	cp := *device
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = now
	cp.LastActiveAt = now
	cp.LastSyncAt = now
	r.store.devices[key] = &cp
	return nil
}

func (r *memDeviceRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Device, error) {
	var out []domain.Device
	for _, d := range r.store.devices {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- repository.SyncMetadataRepository ---

type memMetadataRepo struct {
	store *memStore
}

func (r *memMetadataRepo) row(userID primitive.ObjectID) *domain.SyncMetadata {
	row, ok := r.store.metadata[userID]
	if !ok {
		row = &domain.SyncMetadata{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			CreatedAt: r.store.clock(),
		}
		r.store.metadata[userID] = row
	}
	return row
}

func (r *memMetadataRepo) MarkSyncing(ctx context.Context, userID primitive.ObjectID, deviceID, sessionID string) error {
	now := r.store.clock()
	row := r.row(userID)
	row.Status = domain.SyncStatusSyncing
	row.LastSyncStartedAt = &now
	row.LastDeviceID = deviceID
	row.LastSessionID = sessionID
	row.UpdatedAt = now
	return nil
}

func (r *memMetadataRepo) MarkCompleted(ctx context.Context, userID primitive.ObjectID, deviceID string) error {
	now := r.store.clock()
	row := r.row(userID)
	row.Status = domain.SyncStatusCompleted
	row.LastSyncCompletedAt = &now
	row.LastDeviceID = deviceID
	row.LastError = nil
	row.TotalSyncs++
	row.SuccessfulSyncs++
	row.UpdatedAt = now
	return nil
}

func (r *memMetadataRepo) MarkFailed(ctx context.Context, userID primitive.ObjectID, deviceID string, syncErr domain.SyncError) error {
	now := r.store.clock()
	row := r.row(userID)
	row.Status = domain.SyncStatusFailed
	row.LastDeviceID = deviceID
	row.LastError = &syncErr
	row.TotalSyncs++
	row.FailedSyncs++
	row.UpdatedAt = now
	return nil
}

func (r *memMetadataRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.SyncMetadata, error) {
	row, ok := r.store.metadata[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

// --- repository.ConflictLogRepository ---

type memConflictRepo struct {
	store *memStore
}

func (r *memConflictRepo) Append(ctx context.Context, records []domain.ConflictRecord) error {
	now := r.store.clock()
	for _, rec := range records {
		rec.ID = primitive.NewObjectID()
		rec.CreatedAt = now
		r.store.conflicts = append(r.store.conflicts, rec)
	}
	return nil
}

func (r *memConflictRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.ConflictRecord, error) {
	var out []domain.ConflictRecord
	for _, rec := range r.store.conflicts {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- repository.ChangeFeedRepository ---

// memFeedRepo joins the store's three collections into the denormalized row
// stream, ordered by workout date, exercise position, set number.
type memFeedRepo struct {
	store *memStore
}

func (r *memFeedRepo) RowsSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.WorkoutTreeRow, error) {
	var workouts []*domain.Workout
	for _, w := range r.store.workouts {
		if w.UserID == userID && w.UpdatedAt.After(since) {
			workouts = append(workouts, w)
		}
	}
	sort.Slice(workouts, func(i, j int) bool {
		if !workouts[i].Date.Equal(workouts[j].Date) {
			return workouts[i].Date.Before(workouts[j].Date)
		}
		return workouts[i].ID.Hex() < workouts[j].ID.Hex()
	})

	instances := &memInstanceRepo{store: r.store}
	sets := &memSetRepo{store: r.store}

	var rows []domain.WorkoutTreeRow
	for _, w := range workouts {
		exs, _ := instances.GetByWorkoutID(ctx, w.ID)
		if len(exs) == 0 {
			rows = append(rows, domain.WorkoutTreeRow{Workout: *w})
			continue
		}
		for i := range exs {
			ex := exs[i]
			ss, _ := sets.GetByWorkoutExerciseIDs(ctx, []primitive.ObjectID{ex.ID})
			if len(ss) == 0 {
				rows = append(rows, domain.WorkoutTreeRow{Workout: *w, Exercise: &ex})
				continue
			}
			for j := range ss {
				set := ss[j]
				rows = append(rows, domain.WorkoutTreeRow{Workout: *w, Exercise: &ex, Set: &set})
			}
		}
	}
	return rows, nil
}

// --- repository.TxManager ---

// memTxManager runs callbacks directly. before (if set) runs once ahead of
// the next callback to stage mid-flight races; failWith (if set) aborts every
// callback.
type memTxManager struct {
	before   func()
	failWith error
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.failWith != nil {
		return m.failWith
	}
	if m.before != nil {
		hook := m.before
		m.before = nil
		hook()
	}
	return fn(ctx)
}

// --- storage.ConflictArchive ---

type memArchive struct {
	keys []string
}

func (a *memArchive) Store(ctx context.Context, objectKey string, contentType string, data []byte) error {
	a.keys = append(a.keys, objectKey)
	return nil
}

// fixture bundles the fakes with the services built over them.
type fixture struct {
	store     *memStore
	workouts  *memWorkoutRepo
	instances *memInstanceRepo
	sets      *memSetRepo
	catalog   *memCatalogRepo
	devices   *memDeviceRepo
	metadata  *memMetadataRepo
	conflicts *memConflictRepo
	feed      *memFeedRepo
	tx        *memTxManager

	library    *ExerciseLibrary
	reconciler *Reconciler
	changeFeed *ChangeFeed
}

var (
	_ repository.WorkoutRepository         = (*memWorkoutRepo)(nil)
	_ repository.WorkoutExerciseRepository = (*memInstanceRepo)(nil)
	_ repository.ExerciseSetRepository     = (*memSetRepo)(nil)
	_ repository.ExerciseRepository        = (*memCatalogRepo)(nil)
	_ repository.DeviceRepository          = (*memDeviceRepo)(nil)
	_ repository.SyncMetadataRepository    = (*memMetadataRepo)(nil)
	_ repository.ConflictLogRepository     = (*memConflictRepo)(nil)
	_ repository.ChangeFeedRepository      = (*memFeedRepo)(nil)
	_ storage.ConflictArchive              = (*memArchive)(nil)
)

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:     store,
		workouts:  &memWorkoutRepo{store: store},
		instances: &memInstanceRepo{store: store},
		sets:      &memSetRepo{store: store},
		catalog:   &memCatalogRepo{store: store},
		devices:   &memDeviceRepo{store: store},
		metadata:  &memMetadataRepo{store: store},
		conflicts: &memConflictRepo{store: store},
		feed:      &memFeedRepo{store: store},
		tx:        &memTxManager{},
	}
	f.library = NewExerciseLibrary(f.catalog)
	f.reconciler = NewReconciler(f.workouts, f.instances, f.sets)
	f.changeFeed = NewChangeFeed(f.feed)
	return f
}

// syncService builds a coordinator over the fixture's fakes. archive may be
// nil, matching the production wiring when archival is disabled.
func (f *fixture) syncService(archive storage.ConflictArchive) SyncService {
	return NewSyncService(
		f.workouts, f.devices, f.metadata, f.conflicts,
		f.tx, f.library, f.reconciler, f.changeFeed, archive,
	)
}
