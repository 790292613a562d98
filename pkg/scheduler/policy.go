package scheduler

import (
	"time"

	"github.com/cuemby/mergesched/pkg/merge"
	"github.com/cuemby/mergesched/pkg/probe"
	"github.com/cuemby/mergesched/pkg/types"
)

// Policy supplies class-specific job discovery and admission decisions
type Policy interface {
	// Name identifies the policy in logs
	Name() string

	// Class returns the merge class the policy schedules
	Class() types.Class

	// Discover queues every location lacking a completion marker for date,
	// skipping jobs equal to one already executing
	Discover(date string, pending *Queue, executing []*merge.Job)

	// Decide returns the admission decision for job given the number of
	// jobs currently executing
	Decide(job *merge.Job, executing int) types.Decision
}

// Limits are the admission thresholds of one merge class
type Limits struct {
	Parallel       int
	MemThresholdMB int
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = realClock{}

// basePolicy holds discovery and admission logic shared by both classes
type basePolicy struct {
	class  types.Class
	probe  probe.ResourceProbe
	jobCfg *merge.Config
	limits Limits
}

func (p *basePolicy) Class() types.Class { return p.class }

func (p *basePolicy) Discover(date string, pending *Queue, executing []*merge.Job) {
	disks := p.probe.ListDisks()
	for _, loc := range p.probe.ListLocations(disks) {
		if merge.IsComplete(p.class, loc, date) {
			continue
		}

		job := merge.NewJob(p.jobCfg, p.class, loc, date)
		if containsJob(executing, job) {
			continue
		}

		if p.probe.IsDiskBusy(loc.Disk) {
			pending.PushFront(job)
		} else {
			pending.PushBack(job)
		}
	}
}

// memoryOK reports whether free memory, less the reservation held by
// executing jobs, still meets the class threshold
func (p *basePolicy) memoryOK(executing int) bool {
	return p.probe.FreeMemoryMB(executing) >= p.limits.MemThresholdMB
}

func (p *basePolicy) slotDecision(job *merge.Job, executing int) types.Decision {
	if executing < p.limits.Parallel {
		if p.probe.IsDiskBusy(job.Disk()) {
			return types.DecisionIgnore
		}
		return types.DecisionProceed
	}
	return types.DecisionWait
}

// DailyPolicy schedules daily merges
type DailyPolicy struct {
	basePolicy
}

// NewDailyPolicy creates the daily merge policy
func NewDailyPolicy(p probe.ResourceProbe, jobCfg *merge.Config, limits Limits) *DailyPolicy {
	return &DailyPolicy{
		basePolicy: basePolicy{
			class:  types.ClassDaily,
			probe:  p,
			jobCfg: jobCfg,
			limits: limits,
		},
	}
}

// Name identifies the policy
func (p *DailyPolicy) Name() string { return "Daily Merge Scheduler" }

// Decide admits a daily job
func (p *DailyPolicy) Decide(job *merge.Job, executing int) types.Decision {
	if !p.memoryOK(executing) {
		return types.DecisionNoMemory
	}
	return p.slotDecision(job, executing)
}

// MasterPolicy schedules master merges. It refuses new work once the
// calendar day differs from the day it was created on.
type MasterPolicy struct {
	basePolicy
	clock     Clock
	startDate string
}

// NewMasterPolicy creates the master merge policy, recording today's date from clock
func NewMasterPolicy(p probe.ResourceProbe, jobCfg *merge.Config, limits Limits, clock Clock) *MasterPolicy {
	if clock == nil {
		clock = SystemClock
	}
	return &MasterPolicy{
		basePolicy: basePolicy{
			class:  types.ClassMaster,
			probe:  p,
			jobCfg: jobCfg,
			limits: limits,
		},
		clock:     clock,
		startDate: clock.Now().Format(types.DateLayout),
	}
}

// Name identifies the policy
func (p *MasterPolicy) Name() string { return "Master Merge Scheduler" }

// StartDate returns the day the policy was created on
func (p *MasterPolicy) StartDate() string { return p.startDate }

// Decide admits a master job
func (p *MasterPolicy) Decide(job *merge.Job, executing int) types.Decision {
	if !p.memoryOK(executing) {
		return types.DecisionNoMemory
	}
	if p.clock.Now().Format(types.DateLayout) != p.startDate {
		return types.DecisionSkip
	}
	return p.slotDecision(job, executing)
}
