package ports

import (
	"context"

	"github.com/aretw0/caseconf/pkg/domain"
)

// SnapshotStore persists exported snapshots. Snapshots are immutable, so Save with an
// existing ID replaces an identical document.
type SnapshotStore interface {
	// Save persists snap under its ID.
	Save(ctx context.Context, snap domain.Snapshot) error

	// Load retrieves a snapshot.
	// Returns domain.ErrSnapshotNotFound if it does not exist.
	Load(ctx context.Context, id string) (domain.Snapshot, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of stored snapshots.
	List(ctx context.Context) ([]string, error)
}
