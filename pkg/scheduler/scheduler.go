package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/mergesched/pkg/log"
	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is how often running jobs are polled while waiting
	DefaultPollInterval = time.Second

	// DefaultIgnoreDelay is the pause after a busy-disk decision
	DefaultIgnoreDelay = time.Second
)

// Scheduler runs the admission loop for one merge class. It is not safe for
// concurrent use; Execute calls must not overlap.
type Scheduler struct {
	policy    Policy
	pending   *Queue
	executing []*merge.Job
	observer  Observer
	logger    zerolog.Logger

	PollInterval time.Duration
	IgnoreDelay  time.Duration
}

// NewScheduler creates a scheduler driven by policy. observer may be nil.
func NewScheduler(policy Policy, observer Observer) *Scheduler {
	if observer == nil {
		observer = Observers{}
	}
	return &Scheduler{
		policy:       policy,
		pending:      NewQueue(),
		observer:     observer,
		logger:       log.WithClass("scheduler", string(policy.Class())),
		PollInterval: DefaultPollInterval,
		IgnoreDelay:  DefaultIgnoreDelay,
	}
}

// Executing returns the number of jobs that own a live process
func (s *Scheduler) Executing() int {
	return len(s.executing)
}

// Execute discovers and runs merge jobs for date. It returns false when the
// policy preempted the run with SKIP; jobs still pending are dropped and
// expected to be rediscovered by a later call. Jobs already running are
// always waited out, even when ctx is cancelled, in which case ctx's error
// is returned with false.
func (s *Scheduler) Execute(ctx context.Context, date string) (bool, error) {
	runID := uuid.New().String()
	logger := log.WithRunID(s.logger, runID).With().Str("date", date).Logger()
	class := s.policy.Class()

	logger.Info().Msgf("==== Executing job processor for %s ====", s.policy.Name())

	s.pending.Reset()
	s.policy.Discover(date, s.pending, s.executing)
	discovered := s.pending.Len()
	s.observer.RunStarted(runID, class, date, discovered)

	if discovered > 0 {
		logger.Info().Str("jobs", describe(s.pending.Jobs())).Msg("Merge jobs to be processed")
	} else {
		logger.Info().Msg("No merge jobs found to be processed")
	}

	skipped, err := s.admit(ctx, runID, logger)

	// Running jobs are never cancelled; wait them out regardless of ctx.
	_ = s.waitForSlot(context.Background(), runID, true, logger)

	result := types.RunCompleted
	switch {
	case skipped:
		result = types.RunPreempted
		logger.Info().Msg("Pre-empting merge job processor")
		logger.Info().Str("jobs", describe(s.pending.Jobs())).Msg("Remaining jobs to be processed")
	case err != nil:
		result = types.RunInterrupted
		logger.Warn().Err(err).Int("remaining", s.pending.Len()).Msg("Merge job processor interrupted")
	case discovered > 0:
		logger.Info().Msgf("Completed all %s jobs for the date:%s", s.policy.Name(), date)
	}
	s.pending.Reset()

	s.observer.RunFinished(runID, class, date, result)
	logger.Info().Msgf("==== Completed executing job processor for %s ====", s.policy.Name())

	return result == types.RunCompleted, err
}

// admit drains the pending queue. It reports whether a SKIP stopped it.
func (s *Scheduler) admit(ctx context.Context, runID string, logger zerolog.Logger) (bool, error) {
	class := s.policy.Class()

	for s.pending.Len() > 0 {
		job := s.pending.PopBack()
		decision := s.policy.Decide(job, len(s.executing))
		s.observer.Decision(class, decision)

		switch decision {
		case types.DecisionProceed:
			jobLog := logger.With().Str("disk", string(job.Disk())).Str("host", job.Host()).Logger()
			jobLog.Info().Msg("Executing merge job")
			if err := job.Start(); err != nil {
				jobLog.Error().Err(err).Msg("Failed to start merge job")
				continue
			}
			s.executing = append(s.executing, job)
			s.observer.JobStarted(job, len(s.executing))

		case types.DecisionIgnore:
			s.pending.PushFront(job)
			if err := sleep(ctx, s.IgnoreDelay); err != nil {
				return false, err
			}

		case types.DecisionWait:
			s.pending.PushBack(job)
			if err := s.waitForSlot(ctx, runID, false, logger); err != nil {
				return false, err
			}

		case types.DecisionNoMemory:
			logger.Warn().Msg("Not enough free memory - Waiting for running job to free memory")
			if err := sleep(ctx, s.PollInterval); err != nil {
				s.pending.PushBack(job)
				return false, err
			}
			s.pending.PushBack(job)
			if err := s.waitForSlot(ctx, runID, false, logger); err != nil {
				return false, err
			}

		case types.DecisionSkip:
			s.pending.PushBack(job)
			return true, nil

		default:
			logger.Error().Str("decision", string(decision)).Str("job", job.String()).Msg("Unknown scheduling decision, dropping job")
		}
	}
	return false, nil
}

// waitForSlot polls executing jobs, finishing each one that terminated.
// With all unset it returns once a slot frees or nothing is executing;
// with all set it returns once nothing is executing.
func (s *Scheduler) waitForSlot(ctx context.Context, runID string, all bool, logger zerolog.Logger) error {
	for {
		freed := s.reap(runID, logger)

		if len(s.executing) == 0 {
			return nil
		}
		if !all && freed {
			return nil
		}
		if err := sleep(ctx, s.PollInterval); err != nil {
			return err
		}
	}
}

// reap finishes terminated jobs and removes them from executing
func (s *Scheduler) reap(runID string, logger zerolog.Logger) bool {
	freed := false
	running := s.executing[:0]
	for _, job := range s.executing {
		if !job.PollComplete() {
			running = append(running, job)
			continue
		}
		s.finish(runID, job, logger)
		freed = true
	}
	for i := len(running); i < len(s.executing); i++ {
		s.executing[i] = nil
	}
	s.executing = running
	return freed
}

func (s *Scheduler) finish(runID string, job *merge.Job, logger zerolog.Logger) {
	res := job.FinishUp()
	jobLog := logger.With().
		Str("disk", string(job.Disk())).
		Str("host", job.Host()).
		Str("status", string(res.Status)).
		Logger()

	if res.MarkErr != nil {
		jobLog.Error().Err(res.MarkErr).Msg("Unable to mark merge job complete")
	}
	if res.CopyErr != nil {
		jobLog.Error().Err(res.CopyErr).Msg("Unable to mark output for secondary copy")
	}
	if res.Status == types.JobStatusFailed {
		_, stderr := job.Output()
		jobLog.Warn().Int("exit_code", job.ExitCode()).Str("stderr", lastLine(stderr)).Msg("Merge job failed")
	}

	jobLog.Info().Dur("duration", job.Duration()).Bool("copied", res.Copied).Msg("Completed execution of job")
	s.observer.JobFinished(runID, job, res)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func describe(jobs []*merge.Job) string {
	parts := make([]string, 0, len(jobs))
	for _, j := range jobs {
		parts = append(parts, "DISK:"+string(j.Disk())+" HOST:"+j.Host())
	}
	return strings.Join(parts, ", ")
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
