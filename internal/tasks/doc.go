// Package tasks drives batch processes from the first step to completion with progress reporting.
//
// # Running a batch
//
// [BatchRunner.Run] performs the whole protocol a caller would otherwise perform by hand:
//
//  1. Init the process with the run's roles
//  2. PreFetch the snapshot (a no-op when one already exists)
//  3. For each step: check the context, check CanProcess, wait on the rate limiter, ProcessStep
//  4. Finish once a step returns done
//
// A run stopped by cancellation or an error leaves its progress in the store, and a later
// run with [RunOptions.Resume] continues from the step implied by the migrated count.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct carries the phase, the step index, and the migrated/total counts read back
// from the progress store after each step. Updates use select with default to prevent blocking.
package tasks
