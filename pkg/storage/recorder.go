package storage

import (
	"errors"
	"time"

	"github.com/cuemby/mergesched/pkg/log"
	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/rs/zerolog"
)

// Recorder writes scheduler events into a Store. Write failures are logged
// and never reach the scheduler.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a history recorder
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: log.WithComponent("history"),
	}
}

func (r *Recorder) RunStarted(runID string, class types.Class, date string, discovered int) {
	run := &types.Run{
		ID:         runID,
		Class:      class,
		Date:       date,
		Discovered: discovered,
		StartedAt:  time.Now(),
	}
	if err := r.store.CreateRun(run); err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Msg("Unable to record run start")
	}
}

func (r *Recorder) Decision(class types.Class, decision types.Decision) {}

func (r *Recorder) JobStarted(job *merge.Job, executing int) {}

func (r *Recorder) JobFinished(runID string, job *merge.Job, res merge.FinishResult) {
	rec := &types.JobRecord{
		RunID:      runID,
		Class:      job.Class(),
		Disk:       job.Disk(),
		Host:       job.Host(),
		Location:   job.Location().Path,
		Date:       job.Date(),
		Status:     res.Status,
		ExitCode:   job.ExitCode(),
		Duration:   job.Duration(),
		OutputPath: res.OutputPath,
		Copied:     res.Copied,
		FinishedAt: time.Now(),
	}
	if err := errors.Join(res.MarkErr, res.CopyErr); err != nil {
		rec.Error = err.Error()
	}
	if err := r.store.AddJobRecord(rec); err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Str("location", rec.Location).Msg("Unable to record job")
	}
}

func (r *Recorder) RunFinished(runID string, class types.Class, date string, result types.RunResult) {
	run, err := r.store.GetRun(runID)
	if err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Msg("Unable to load run")
		return
	}
	run.Completed = result == types.RunCompleted
	run.Result = result
	run.FinishedAt = time.Now()
	if err := r.store.UpdateRun(run); err != nil {
		r.logger.Warn().Err(err).Str("run_id", runID).Msg("Unable to record run finish")
	}
}
