// Package script writes the shell artifacts of a planning run: one script
// and one output list per job, and a control script that runs the job
// scripts stage by stage.
//
// Every artifact is produced from line templates with @@NAME@@ variables.
// Built-in templates are embedded; a template directory can override any
// of them by file name.
package script
