package storage

import (
	"github.com/cuemby/mergesched/pkg/types"
)

// Store defines the interface for the run history ledger.
// The scheduler only writes to it; nothing it decides is read back.
type Store interface {
	// Runs
	CreateRun(run *types.Run) error
	GetRun(id string) (*types.Run, error)
	ListRuns(limit int) ([]*types.Run, error)
	UpdateRun(run *types.Run) error

	// Jobs
	AddJobRecord(rec *types.JobRecord) error
	ListJobRecords(limit int) ([]*types.JobRecord, error)
	ListJobRecordsByRun(runID string) ([]*types.JobRecord, error)

	// Utility
	Close() error
}
