package metrics

import (
	"sync"

	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/types"
)

// Observer records scheduler events as Prometheus metrics
type Observer struct {
	mu     sync.Mutex
	timers map[string]*Timer
}

// NewObserver creates a metrics observer
func NewObserver() *Observer {
	return &Observer{timers: make(map[string]*Timer)}
}

func (o *Observer) RunStarted(runID string, class types.Class, date string, discovered int) {
	o.mu.Lock()
	o.timers[runID] = NewTimer()
	o.mu.Unlock()

	JobsDiscovered.WithLabelValues(string(class)).Set(float64(discovered))
	PassStarted(class, discovered)
}

func (o *Observer) Decision(class types.Class, decision types.Decision) {
	DecisionsTotal.WithLabelValues(string(class), string(decision)).Inc()
}

func (o *Observer) JobStarted(job *merge.Job, executing int) {
	class := string(job.Class())
	JobsStarted.WithLabelValues(class).Inc()
	JobsExecuting.WithLabelValues(class).Set(float64(executing))
}

func (o *Observer) JobFinished(runID string, job *merge.Job, res merge.FinishResult) {
	class := string(job.Class())
	JobsExecuting.WithLabelValues(class).Dec()
	JobsFinished.WithLabelValues(class, string(res.Status)).Inc()
	JobDuration.WithLabelValues(class).Observe(job.Duration().Seconds())

	if res.MarkErr != nil {
		MarkFailures.WithLabelValues(class).Inc()
	}
	switch {
	case res.Copied:
		SecondaryCopyTotal.WithLabelValues(class, "queued").Inc()
	case res.CopyErr != nil:
		SecondaryCopyTotal.WithLabelValues(class, "failed").Inc()
	}
}

func (o *Observer) RunFinished(runID string, class types.Class, date string, result types.RunResult) {
	RunsTotal.WithLabelValues(string(class), string(result)).Inc()
	PassFinished(class, result)

	o.mu.Lock()
	timer, ok := o.timers[runID]
	delete(o.timers, runID)
	o.mu.Unlock()

	if ok {
		timer.ObserveDurationVec(RunDuration, string(class))
	}
	JobsExecuting.WithLabelValues(string(class)).Set(0)
}
