/*
Package scheduler runs merge jobs for one merge class under memory, disk and
parallelism constraints.

A Scheduler owns a pending deque and the set of executing jobs. A Policy
(DailyPolicy or MasterPolicy) discovers work and decides, job by job, whether
it may start.

# Admission Loop

	Execute(date)
	   │
	   ├─ Discover: every location without <subdir>/<date>/.complete
	   │            busy disk → front of pending, idle disk → back
	   │
	   ├─ Drain: pop from the back, ask the policy
	   │     PROCEED   start the process, add to executing
	   │     WAIT      re-queue at back, wait for one slot
	   │     IGNORE    re-queue at front, sleep IgnoreDelay
	   │     NOMEMORY  sleep PollInterval, re-queue at back, wait for one slot
	   │     SKIP      stop admitting; the rest of pending is dropped
	   │
	   └─ Wait for every executing job, running FinishUp on each

Execute returns false only when a SKIP stopped the run. Running processes are
never killed: a SKIP or a cancelled context still waits them out.

# Policies

Both policies return NOMEMORY when free memory, less 2*split size per
executing job, falls below the class threshold. MasterPolicy then returns SKIP
once the clock reports a different day than the one it was created on, so a
master run never spans midnight. Otherwise a free slot yields PROCEED, or
IGNORE if the job's disk is busy, and a full pool yields WAIT.

With a single pending job on a busy disk the loop retries that job every
IgnoreDelay until the disk frees.

# Observers

An Observer sees run boundaries, every decision and every job start and
finish. pkg/metrics and pkg/history provide implementations.
*/
package scheduler
