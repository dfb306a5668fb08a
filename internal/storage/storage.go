package storage

import "context"

// JSON content type for archived conflict snapshots.
const ContentTypeJSON = "application/json"

// ConflictArchive stores conflict snapshots produced by sync sessions so they
// stay available for manual review after the client has moved on. Archival is
// best-effort: callers log failures and never fail a sync over them.
type ConflictArchive interface {
	Store(ctx context.Context, objectKey string, contentType string, data []byte) error
}
