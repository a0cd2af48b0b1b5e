// Package engine reconciles a routing daemon's running configuration with
// desired state.
//
// # Workflow
//
// A reconciliation of one target runs in four steps:
//
//  1. Observe - read "show running-config" through an Executor and parse it
//     into resource instances (package parser)
//  2. Diff - compare each desired instance with its observed counterpart,
//     property by property (Diff)
//  3. Render - turn every diff into vtysh commands (Emitter)
//  4. Apply - submit each resource's commands as one framed batch
//     (Transaction), in dependency order (KindOrder)
//
// Planner covers steps 2 and 3 and never touches the daemon. Reconciler
// runs the whole workflow and Scheduler runs it for several targets.
//
// # Desired state
//
// Desired instances are sparse. A property left out of a desired instance
// is not managed and never produces a command. Setting a property to its
// default value removes it from the running configuration. An instance
// with Exists=false asks for deletion.
//
// # Ordering
//
// Creates and updates run in ascending kind order, deletes in descending
// order. Within one update, list removals are emitted before additions.
//
// # Errors
//
// Errors are EngineError values classified as transient, conflict or
// permanent. Only transient errors are worth re-running: every run starts
// from a fresh read of the running configuration, so a partially applied
// batch converges on the next run.
package engine
