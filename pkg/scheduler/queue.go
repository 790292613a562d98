package scheduler

import "github.com/cuemby/mergesched/pkg/merge"

// Queue is the pending job deque. Jobs are consumed from the back.
type Queue struct {
	jobs []*merge.Job
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// PushBack adds a job to be tried next
func (q *Queue) PushBack(job *merge.Job) {
	q.jobs = append(q.jobs, job)
}

// PushFront adds a job to be tried last
func (q *Queue) PushFront(job *merge.Job) {
	q.jobs = append([]*merge.Job{job}, q.jobs...)
}

// PopBack removes and returns the job at the back, or nil when empty
func (q *Queue) PopBack() *merge.Job {
	if len(q.jobs) == 0 {
		return nil
	}
	last := len(q.jobs) - 1
	job := q.jobs[last]
	q.jobs[last] = nil
	q.jobs = q.jobs[:last]
	return job
}

// Len returns the number of queued jobs
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Contains reports whether an equal job is queued
func (q *Queue) Contains(job *merge.Job) bool {
	return containsJob(q.jobs, job)
}

// Jobs returns the queued jobs front to back
func (q *Queue) Jobs() []*merge.Job {
	out := make([]*merge.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Reset drops every queued job
func (q *Queue) Reset() {
	q.jobs = nil
}

func containsJob(jobs []*merge.Job, job *merge.Job) bool {
	for _, j := range jobs {
		if j.Equal(job) {
			return true
		}
	}
	return false
}
