// Package dag holds the dependency graph of a planning run: job IDs as
// vertices, "producer before consumer" as edges. Besides construction and
// cycle detection it offers the two operations the planner is built on:
// vertex removal and a staged (Kahn-layered) traversal that tolerates
// removals between stages. Reverse gives the sink-first view used by the
// reduction pass.
package dag
