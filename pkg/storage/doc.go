/*
Package storage keeps a BoltDB-backed history of merge scheduler runs.

The history is an audit trail for operators: which runs happened, whether a
run was preempted, and how each merge job ended. The scheduler writes to it
through Recorder and never reads it back, so losing the database loses history
only; the on-disk .complete markers remain the source of truth for what still
needs merging.

# Buckets

	runs   run ID (uuid)            → types.Run as JSON
	jobs   big-endian sequence      → types.JobRecord as JSON

Job records are keyed by bucket sequence so a reverse cursor walk yields the
most recent records first.

# Usage

	store, err := storage.NewBoltStore("/var/lib/mergesched/history.db")
	if err != nil {
		return err
	}
	defer store.Close()

	sched := scheduler.NewScheduler(policy, storage.NewRecorder(store))

bbolt holds an exclusive file lock while open; a second process opening the
same file waits up to five seconds and then fails.
*/
package storage
