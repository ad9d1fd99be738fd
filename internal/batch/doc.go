// package batch implements resumable batch processes that advance one page per step.
//
// A run is driven from outside: the caller initializes a [Process], calls PreFetch once,
// then calls ProcessStep starting at step 1 until it returns [Done], checking CanProcess
// before each call, and finally calls Finish. Every call may happen in a different
// process; state shared between calls lives in a progress.Store.
//
// [MigrateUsers] converts users holding a configured set of roles into affiliate records.
package batch
