package scheduler

import (
	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/types"
)

// Observer is notified of scheduling events. Calls happen on the scheduler
// goroutine and must not block.
type Observer interface {
	RunStarted(runID string, class types.Class, date string, discovered int)
	Decision(class types.Class, decision types.Decision)
	JobStarted(job *merge.Job, executing int)
	JobFinished(runID string, job *merge.Job, res merge.FinishResult)
	RunFinished(runID string, class types.Class, date string, result types.RunResult)
}

// Observers fans events out to several observers
type Observers []Observer

func (o Observers) RunStarted(runID string, class types.Class, date string, discovered int) {
	for _, ob := range o {
		ob.RunStarted(runID, class, date, discovered)
	}
}

func (o Observers) Decision(class types.Class, decision types.Decision) {
	for _, ob := range o {
		ob.Decision(class, decision)
	}
}

func (o Observers) JobStarted(job *merge.Job, executing int) {
	for _, ob := range o {
		ob.JobStarted(job, executing)
	}
}

func (o Observers) JobFinished(runID string, job *merge.Job, res merge.FinishResult) {
	for _, ob := range o {
		ob.JobFinished(runID, job, res)
	}
}

func (o Observers) RunFinished(runID string, class types.Class, date string, result types.RunResult) {
	for _, ob := range o {
		ob.RunFinished(runID, class, date, result)
	}
}
