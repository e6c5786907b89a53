// Package reduce prunes a workflow graph down to the jobs whose outputs are
// not yet materialized.
//
// The reduction walks the reversed graph stage by stage, so jobs closest to
// the workflow's sinks are examined first. A job is cut when every output it
// declares already exists. Cutting a job lets the files it reads be assumed
// present for the stages that follow, which is how satisfaction propagates
// towards the sources. A stage in which every job is cut ends the pass: if it
// was the very first stage the whole workflow is satisfied, otherwise every
// job further upstream is removed without being checked.
package reduce
