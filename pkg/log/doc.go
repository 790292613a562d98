/*
Package log provides structured logging for the merge scheduler using zerolog.

The package wraps a global zerolog.Logger with helpers for component-scoped child
loggers. Every package logs through a child logger so that each line carries the
component (probe, merge, scheduler) and, where relevant, the merge class.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component Loggers:

	schedLog := log.WithClass("scheduler", "daily")
	schedLog.Info().Str("disk", "/data_1").Str("host", "host-a").Msg("Executing merge job")

	probeLog := log.WithComponent("probe")
	probeLog.Warn().Err(err).Str("disk", "/data_2").Msg("Unable to list locations")

Until Init is called, Logger writes JSON lines to stdout at info level.
*/
package log
