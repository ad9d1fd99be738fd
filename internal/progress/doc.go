// package progress persists batch progress between steps.
//
// A batch run spans many short-lived invocations (CLI calls, HTTP requests), so everything
// a step needs from an earlier step lives in a [Store]: the ids excluded at snapshot time,
// the candidate total, and the number of items migrated so far. Values are JSON encoded.
//
// Three backends are provided: the sqlite options table (repositories.OptionRepository),
// [RedisStore], and the process-local [MemoryStore].
package progress
