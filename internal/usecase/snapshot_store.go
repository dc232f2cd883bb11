package usecase

import (
	"sync/atomic"

	"CostSim/internal/domain/models"
)

// SnapshotStore publishes the latest top-of-book snapshot. One writer (the
// collector), any number of readers. Snapshots are immutable once stored.
type SnapshotStore struct {
	ptr atomic.Pointer[models.BookSnapshot]
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Publish replaces the latest snapshot.
func (s *SnapshotStore) Publish(snap *models.BookSnapshot) {
	if snap == nil {
		return
	}
	s.ptr.Store(snap)
}

// Latest returns the most recent snapshot, or nil before the first message.
func (s *SnapshotStore) Latest() *models.BookSnapshot {
	return s.ptr.Load()
}
