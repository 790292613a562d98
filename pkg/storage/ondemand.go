package storage

import (
	"time"

	"github.com/cuemby/mergesched/pkg/types"
)

// OnDemandStore opens the history database for each operation and closes it
// right after, so concurrent mergesched processes share the file lock
// instead of one of them holding it for its lifetime.
type OnDemandStore struct {
	path    string
	timeout time.Duration
}

// NewOnDemandStore creates a store for the database at path. Each operation
// waits at most timeout for the file lock.
func NewOnDemandStore(path string, timeout time.Duration) *OnDemandStore {
	return &OnDemandStore{path: path, timeout: timeout}
}

func (s *OnDemandStore) with(fn func(*BoltStore) error) error {
	store, err := OpenBoltStore(s.path, s.timeout)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (s *OnDemandStore) CreateRun(run *types.Run) error {
	return s.with(func(b *BoltStore) error { return b.CreateRun(run) })
}

func (s *OnDemandStore) GetRun(id string) (run *types.Run, err error) {
	err = s.with(func(b *BoltStore) error {
		run, err = b.GetRun(id)
		return err
	})
	return run, err
}

func (s *OnDemandStore) ListRuns(limit int) (runs []*types.Run, err error) {
	err = s.with(func(b *BoltStore) error {
		runs, err = b.ListRuns(limit)
		return err
	})
	return runs, err
}

func (s *OnDemandStore) UpdateRun(run *types.Run) error {
	return s.with(func(b *BoltStore) error { return b.UpdateRun(run) })
}

func (s *OnDemandStore) AddJobRecord(rec *types.JobRecord) error {
	return s.with(func(b *BoltStore) error { return b.AddJobRecord(rec) })
}

func (s *OnDemandStore) ListJobRecords(limit int) (recs []*types.JobRecord, err error) {
	err = s.with(func(b *BoltStore) error {
		recs, err = b.ListJobRecords(limit)
		return err
	})
	return recs, err
}

func (s *OnDemandStore) ListJobRecordsByRun(runID string) (recs []*types.JobRecord, err error) {
	err = s.with(func(b *BoltStore) error {
		recs, err = b.ListJobRecordsByRun(runID)
		return err
	})
	return recs, err
}

// Close is a no-op; nothing stays open between operations
func (s *OnDemandStore) Close() error { return nil }
