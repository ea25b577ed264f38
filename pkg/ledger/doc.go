// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the slipway run ledger.
//
// # Overview
//
// The ledger is the historical record of every release pipeline run: which
// version was built, which steps ran and how they exited, which artifacts
// were produced, and whether the run shipped. The pipeline engine writes to
// it as stages complete; `slipway runs` reads it back.
//
// # Core Concepts
//
// Runs are the top-level record. A run is created in StatusRunning when the
// pipeline starts and moves to exactly one of StatusSucceeded or
// StatusFailed. Runs are never deleted or rewritten after they finish.
//
// StepResults record each executed step or stage in order, with exit code,
// duration, and a bounded output tail for debugging failed runs.
//
// Artifacts record the distributables a run collected, with their SHA-256
// digests, so a published file can always be traced back to the run that
// produced it.
//
// # Multi-Project Support
//
// All Redis keys and Pub/Sub channels are namespaced by project name, so
// several projects can share one Redis server without interference.
//
// # Redis Schema
//
// Runs:              slipway:{project}:run:{run_id}          (hash)
// Step results:      slipway:{project}:run:{run_id}:steps    (list of JSON)
// Artifacts:         slipway:{project}:run:{run_id}:artifacts (list of JSON)
// Run index:         slipway:{project}:runs                  (zset, score = start ms)
// Run events:        slipway:{project}:run_events            (pub/sub)
//
// The ledger is optional infrastructure: a pipeline configured without it
// runs identically, it just leaves no history behind.
package ledger
