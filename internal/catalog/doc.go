// Package catalog holds the lookup services the planner consults: the
// replica catalog (LFN -> PFN per site) with in-memory, Postgres and
// LRU-cached variants, the transformation catalog (abstract job ->
// executable) and the site catalog (launcher path and site profiles).
package catalog
