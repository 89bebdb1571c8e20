/*
Package metrics provides Prometheus instrumentation for the identity-map,
overlay, lock and pool machinery in this module.

Nothing in the core decision path reads these metrics back; they are a pure
observability side channel exposed via an HTTP handler for scraping.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories              │          │
	│  │                                              │          │
	│  │  Lock:    wait duration, held count         │          │
	│  │  Overlay: flush duration, taken key count   │          │
	│  │  Storage: resident key count                │          │
	│  │  Pool:    entry count/duration, active      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              HTTP Handler                    │          │
	│  │  Handler() -> promhttp.Handler()            │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Usage

Callers in pkg/lock, pkg/overlay and pkg/txpool record to these metrics
directly; pkg/metrics itself has no dependency on any other package in this
module, so it can be imported from anywhere without creating cycles.
*/
package metrics
