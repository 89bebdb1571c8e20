/*
Package log provides structured logging built on zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. It has no dependency on any other
package in this module and is imported by pkg/storage, pkg/lock,
pkg/overlay, pkg/scope, and pkg/txpool to report load failures, lock
contention, restoration, and commit/rollback
without those packages deciding anything based on what gets logged.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance, initialized by init()  │          │
	│  │  - Re-initializable via log.Init()          │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("lock")                    │          │
	│  │  - WithScope("orders")                      │          │
	│  │  - WithMapping("by_owner")                  │          │
	│  │  - WithKey(key)                             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"debug","component":"lock",        │          │
	│  │   "mapping":"by_id","key":"7",               │          │
	│  │   "message":"acquired"}                      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	lockLog := log.WithComponent("lock").With().
		Str("mapping", "by_id").Logger()
	lockLog.Debug().Interface("key", key).Msg("composite lock acquired")

	overlayLog := log.WithScope("orders")
	overlayLog.Warn().Err(err).Msg("restoration failed, rolling back")

# Design notes

Global Logger Pattern: a single package-level Logger, reconfigured once at
process start via Init, read from everywhere without threading a logger
through every constructor. The backing-store adapters
(pkg/scope/boltscope, pkg/scope/remotescope) do no logging of their own;
their errors are returned to, and logged by, pkg/scope.

Do not log entity payloads: the core is schema-agnostic and does not know
what an application's entities contain. Loggers in this module log keys,
mapping names, and durations, never the entity value itself.
*/
package log
