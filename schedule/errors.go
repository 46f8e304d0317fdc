package schedule

import "errors"

// ErrCancelled is returned by Admit when the caller's context is cancelled,
// or the query is cancelled, while still queued.
var ErrCancelled = errors.New("schedule: query cancelled while queued")

// ErrQueueTimeout is returned by Admit when a query's queue deadline
// elapses before it becomes admissible.
var ErrQueueTimeout = errors.New("schedule: queue deadline exceeded")

// ErrComplexityCeiling is returned by Admit when a query's estimated
// complexity alone exceeds the configured ceiling — it can never become
// admissible no matter how long it waits, so it is rejected outright
// rather than queued forever.
var ErrComplexityCeiling = errors.New("schedule: estimated complexity exceeds configured ceiling")

// ErrUnknownQuery names an id the scheduler has no record of (never
// submitted, or already released and forgotten). No function in this
// package returns it: Cancel reports an unknown id by returning false.
var ErrUnknownQuery = errors.New("schedule: unknown query id")
