// Package planner drives one planning run: it turns a workflow into job
// scripts and a control script, pruning jobs whose outputs already exist
// when running in make mode.
//
// A Planner is built for a single run and discarded afterwards. Run
// returns an Outcome, which is either Planned or Satisfied.
package planner
