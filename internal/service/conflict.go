package service

import (
	"time"

	"fitsync/sync-server/internal/domain"
)

// ResolveConflict decides which side of a divergent edit is kept. The client
// wins only on a strictly newer timestamp; ties and server-newer both keep
// the server copy, so replaying an unchanged payload never perturbs server
// state and identical inputs always produce the same outcome. Applied
// uniformly at workout, exercise, and set granularity, so one workout update
// can resolve differently per nested entity.
func ResolveConflict(clientTimestamp, serverTimestamp time.Time) domain.Resolution {
	if clientTimestamp.After(serverTimestamp) {
		return domain.ResolutionClientWins
	}
	return domain.ResolutionServerWins
}

// SetDeletionThreshold is the timestamp gating implicit deletion of sets
// missing from a retained exercise's incoming set list: the newest client
// timestamp among the incoming sets, or fallback (the exercise's own
// timestamp) when the exercise sent zero sets. A server-side set older than
// the threshold is presumed deleted on the client; a newer one is presumed
// simply not yet seen.
func SetDeletionThreshold(incoming []SetSyncData, fallback time.Time) time.Time {
	if len(incoming) == 0 {
		return fallback
	}
	newest := incoming[0].UpdatedAt
	for _, s := range incoming[1:] {
		if s.UpdatedAt.After(newest) {
			newest = s.UpdatedAt
		}
	}
	return newest
}
