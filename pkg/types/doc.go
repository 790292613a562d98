/*
Package types defines the value types shared by the merge scheduler packages.

# Core Types

Storage topology:
  - Disk: mount path of a data volume holding backups for many hosts
  - Location: one host's backup tree on one disk

Merge work:
  - Class: daily or master merge, which selects the output subdirectory
  - JobStatus: not_started, running, success, failed
  - Decision: the admission verdict (PROCEED, WAIT, IGNORE, NOMEMORY, SKIP)

# On-disk Markers

A merge output directory is <location>/<daily|master>/<date>. Two files inside it
carry state between the scheduler and the merge tool:

	.complete   written by the scheduler once a job finished (success or failure)
	.done       written by the merge tool when the output is safe to replicate

Dates use the layout 2006-01-02.
*/
package types
