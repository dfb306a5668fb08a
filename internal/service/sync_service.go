package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"fitsync/sync-server/internal/domain"
	"fitsync/sync-server/internal/repository"
	"fitsync/sync-server/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrSyncNotFound = errors.New("no sync metadata for user")
)

// Structured error codes stored on the metadata row when a session fails.
const (
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeTransactionFailure  = "TRANSACTION_FAILURE"
	CodeSessionFailure      = "SESSION_FAILURE"
)

// A workout's resolve+transaction sequence is attempted at most this many
// times. The single retry covers the duplicate-key races: two devices
// creating the same brand-new catalog entry, or the same brand-new workout
// client id, at once. On retry all catalog ids are re-resolved from scratch.
const maxWorkoutSyncAttempts = 2

// SyncService orchestrates sync sessions end-to-end and serves the read-only
// session views.
type SyncService interface {
	SyncUserData(ctx context.Context, userID primitive.ObjectID, req *SyncRequest) (*SyncResult, error)
	GetSyncStatus(ctx context.Context, userID primitive.ObjectID) (*domain.SyncMetadata, error)
	GetDevices(ctx context.Context, userID primitive.ObjectID) ([]domain.Device, error)
}

// syncService implements the SyncService interface.
type syncService struct {
	workouts   repository.WorkoutRepository
	devices    repository.DeviceRepository
	metadata   repository.SyncMetadataRepository
	conflicts  repository.ConflictLogRepository
	tx         repository.TxManager
	library    *ExerciseLibrary
	reconciler *Reconciler
	feed       *ChangeFeed
	archive    storage.ConflictArchive // optional, may be nil
}

// NewSyncService creates a new sync coordinator. archive may be nil to run
// without conflict archival.
func NewSyncService(
	workouts repository.WorkoutRepository,
	devices repository.DeviceRepository,
	metadata repository.SyncMetadataRepository,
	conflicts repository.ConflictLogRepository,
	tx repository.TxManager,
	library *ExerciseLibrary,
	reconciler *Reconciler,
	feed *ChangeFeed,
	archive storage.ConflictArchive,
) SyncService {
	return &syncService{
		workouts:   workouts,
		devices:    devices,
		metadata:   metadata,
		conflicts:  conflicts,
		tx:         tx,
		library:    library,
		reconciler: reconciler,
		feed:       feed,
		archive:    archive,
	}
}

// SyncUserData runs one sync session: validate, upsert the device, mark the
// session syncing, reconcile every submitted workout in its own transaction,
// compute the server change feed, and mark the session completed. Any failure
// past validation marks the session failed with a structured error before the
// error is returned, so metadata is never left in "syncing".
func (s *syncService) SyncUserData(ctx context.Context, userID primitive.ObjectID, req *SyncRequest) (*SyncResult, error) {
	// Rejected wholesale before any mutation.
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	sessionID := uuid.NewString()

	if err := s.upsertDevice(ctx, userID, req); err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, CodeSessionFailure, fmt.Errorf("device upsert: %w", err))
	}
	if err := s.metadata.MarkSyncing(ctx, userID, req.DeviceID, sessionID); err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, CodeSessionFailure, fmt.Errorf("mark syncing: %w", err))
	}

	// Single batched read of every workout the payload refers to, instead of
	// one round trip per workout.
	clientIDs := make([]string, len(req.Workouts))
	for i := range req.Workouts {
		clientIDs[i] = req.Workouts[i].ClientID
	}
	prefetched, err := s.workouts.GetByClientIDs(ctx, userID, clientIDs)
	if err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, CodeSessionFailure, fmt.Errorf("prefetch workouts: %w", err))
	}
	existingByClientID := make(map[string]*domain.Workout, len(prefetched))
	for i := range prefetched {
		existingByClientID[prefetched[i].ClientID] = &prefetched[i]
	}

	uploaded := 0
	var conflictRecords []domain.ConflictRecord
	for i := range req.Workouts {
		incoming := &req.Workouts[i]
		outcome, err := s.syncOneWorkout(ctx, userID, incoming, existingByClientID[incoming.ClientID])
		if err != nil {
			code := CodeTransactionFailure
			if errors.Is(err, repository.ErrDuplicateKey) {
				code = CodeConstraintViolation
			}
			// Workouts committed earlier in this session stay committed.
			return nil, s.fail(ctx, userID, req.DeviceID, code, err)
		}
		if outcome.Changed {
			uploaded++
		}
		conflictRecords = append(conflictRecords, outcome.Conflicts...)
	}

	serverWorkouts, err := s.feed.ChangesSince(ctx, userID, req.LastSyncTimestamp)
	if err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, CodeSessionFailure, fmt.Errorf("change feed: %w", err))
	}

	if err := s.metadata.MarkCompleted(ctx, userID, req.DeviceID); err != nil {
		return nil, s.fail(ctx, userID, req.DeviceID, CodeSessionFailure, fmt.Errorf("mark completed: %w", err))
	}

	s.archiveConflicts(ctx, userID, sessionID, conflictRecords)

	syncedAt := time.Now().UTC()
	conflicts := make([]SyncConflict, len(conflictRecords))
	for i, rec := range conflictRecords {
		conflicts[i] = SyncConflict{
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			ClientData: rec.ClientData,
			ServerData: rec.ServerData,
			Resolution: rec.Resolution,
		}
	}

	return &SyncResult{
		Success:   true,
		SyncedAt:  syncedAt,
		Conflicts: conflicts,
		ServerData: &ServerData{
			Workouts:       serverWorkouts,
			LastServerSync: syncedAt,
		},
		Stats: &SyncStats{
			Uploaded:   uploaded,
			Downloaded: len(serverWorkouts),
			Conflicts:  len(conflictRecords),
		},
	}, nil
}

// syncOneWorkout resolves catalog ids outside the transaction, then runs the
// subtree reconciliation inside one transaction, with the bounded duplicate-
// key retry described on maxWorkoutSyncAttempts.
func (s *syncService) syncOneWorkout(ctx context.Context, userID primitive.ObjectID, incoming *WorkoutSyncData, existing *domain.Workout) (*ReconcileOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < maxWorkoutSyncAttempts; attempt++ {
		catalog, err := s.library.ResolveAll(ctx, incoming)
		if err != nil {
			return nil, fmt.Errorf("resolve catalog for workout %s: %w", incoming.ClientID, err)
		}

		var outcome *ReconcileOutcome
		err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			out, rerr := s.reconciler.ReconcileWorkout(txCtx, userID, incoming, existing, catalog)
			if rerr != nil {
				return rerr
			}
			if len(out.Conflicts) > 0 {
				if aerr := s.conflicts.Append(txCtx, out.Conflicts); aerr != nil {
					return fmt.Errorf("append conflicts: %w", aerr)
				}
			}
			outcome = out
			return nil
		})
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}

		// The race may have just created the row we tried to insert; reload
		// the server side and re-resolve everything on the next attempt.
		refreshed, gerr := s.workouts.GetByClientIDs(ctx, userID, []string{incoming.ClientID})
		if gerr != nil {
			return nil, fmt.Errorf("reload workout %s after constraint violation: %w", incoming.ClientID, gerr)
		}
		existing = nil
		if len(refreshed) > 0 {
			existing = &refreshed[0]
		}
	}
	return nil, lastErr
}

// GetSyncStatus returns the user's sync metadata row.
func (s *syncService) GetSyncStatus(ctx context.Context, userID primitive.ObjectID) (*domain.SyncMetadata, error) {
	meta, err := s.metadata.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSyncNotFound
		}
		return nil, err
	}
	return meta, nil
}

// GetDevices lists the user's registered devices.
func (s *syncService) GetDevices(ctx context.Context, userID primitive.ObjectID) ([]domain.Device, error) {
	return s.devices.GetByUserID(ctx, userID)
}

// upsertDevice registers or refreshes the calling device. Missing metadata
// fields fall back to an explicit placeholder rather than failing the sync.
func (s *syncService) upsertDevice(ctx context.Context, userID primitive.ObjectID, req *SyncRequest) error {
	device := &domain.Device{
		UserID:     userID,
		DeviceID:   req.DeviceID,
		Platform:   domain.DeviceInfoUnknown,
		AppVersion: domain.DeviceInfoUnknown,
	}
	if info := req.DeviceInfo; info != nil {
		device.Name = info.Name
		device.OSVersion = info.OSVersion
		device.PushToken = info.PushToken
		if info.Type != "" {
			device.Platform = info.Type
		}
		if info.AppVersion != "" {
			device.AppVersion = info.AppVersion
		}
	}
	return s.devices.Upsert(ctx, device)
}

// fail records the structured failure on the metadata row before propagating
// the error, keeping session state consistent for the next attempt.
func (s *syncService) fail(ctx context.Context, userID primitive.ObjectID, deviceID, code string, cause error) error {
	syncErr := domain.SyncError{
		Code:      code,
		Message:   cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if merr := s.metadata.MarkFailed(ctx, userID, deviceID, syncErr); merr != nil {
		log.Printf("ERROR: Failed to mark sync failed for user %s: %v (original error: %v)", userID.Hex(), merr, cause)
	}
	return cause
}

// archiveConflicts stores a JSON snapshot of the session's conflicts in the
// configured archive. Best-effort: the sync already succeeded.
func (s *syncService) archiveConflicts(ctx context.Context, userID primitive.ObjectID, sessionID string, records []domain.ConflictRecord) {
	if s.archive == nil || len(records) == 0 {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		log.Printf("ERROR: Failed to encode conflict snapshot for user %s: %v", userID.Hex(), err)
		return
	}
	key := fmt.Sprintf("conflicts/%s/%s.json", userID.Hex(), sessionID)
	if err := s.archive.Store(ctx, key, storage.ContentTypeJSON, data); err != nil {
		log.Printf("WARN: Failed to archive conflict snapshot '%s': %v", key, err)
	}
}
