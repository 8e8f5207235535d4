// Package search implements the orchestrator that turns one keyword into a
// finished search session: page planning, worker fan-out, retries, result
// deduplication, and stats.
package search
