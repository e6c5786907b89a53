// Package workflow is the in-memory form of an abstract workflow: jobs,
// the files they use, the manifest of logical filenames and the
// parent/child dependencies. It is format-agnostic; loaders such as
// hcl_adapter produce it and the planner consumes it read-only.
package workflow
