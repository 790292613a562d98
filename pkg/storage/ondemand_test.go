package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnDemandStore_ReleasesLockBetweenOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store := NewOnDemandStore(path, time.Second)

	require.NoError(t, store.CreateRun(&types.Run{ID: "run-1", Class: types.ClassDaily}))
	require.NoError(t, store.AddJobRecord(&types.JobRecord{RunID: "run-1", Host: "host-a"}))

	// a second process can open the file once the write returned
	held, err := OpenBoltStore(path, time.Second)
	require.NoError(t, err)
	run, err := held.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, types.ClassDaily, run.Class)
	require.NoError(t, held.Close())

	recs, err := store.ListJobRecordsByRun("run-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "host-a", recs[0].Host)
}

func TestOnDemandStore_HeldElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	held, err := OpenBoltStore(path, time.Second)
	require.NoError(t, err)
	defer held.Close()

	store := NewOnDemandStore(path, 50*time.Millisecond)
	assert.Error(t, store.CreateRun(&types.Run{ID: "run-1"}))

	// the recorder logs the failure and returns
	r := NewRecorder(store)
	job := merge.NewJob(&merge.Config{}, types.ClassDaily, types.NewLocation("/data_1", "/data_1/primary/p/h/z"), "2024-01-01")
	start := time.Now()
	r.RunStarted("run-1", types.ClassDaily, "2024-01-01", 1)
	r.JobFinished("run-1", job, merge.FinishResult{Status: types.JobStatusSuccess})
	r.RunFinished("run-1", types.ClassDaily, "2024-01-01", types.RunCompleted)
	assert.Less(t, time.Since(start), 2*time.Second)
}
