/*
Package log provides structured logging for fleetsim using zerolog.

It wraps zerolog with a global logger, component-scoped child loggers,
and a handful of package-level helpers, the same shape the rest of the
simulator's packages expect from a logging dependency.

	┌─────────────── LOGGER ───────────────┐
	│ log.Init(cfg)  → package Logger       │
	│ log.WithComponent("scheduler")        │
	│ log.WithNodeID(2)                     │
	│ log.WithTaskID(418)                   │
	└────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Str("policy", "work_stealing").Msg("policy changed")

	nodeLog := log.WithNodeID(0)
	nodeLog.Warn().Msg("node killed")

JSONOutput selects structured JSON (production, or when piped into a log
aggregator) versus a console writer (local development). Both carry a
timestamp on every line.
*/
package log
