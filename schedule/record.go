package schedule

import (
	"context"
	"time"
)

// Status is a query's position in the state machine from spec §4.7:
// submitted -> (admitted -> running -> {completed, failed, cancelled,
// timed-out}) or submitted -> queued -> (admitted -> running -> ...) |
// queue-timed-out | cancelled.
type Status int

const (
	Queued Status = iota
	Running
	Completed
	Failed
	Cancelled
	TimedOut
	QueueTimedOut
)

func (s Status) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed-out"
	case QueueTimedOut:
		return "queue-timed-out"
	default:
		return "unknown"
	}
}

func (s Status) terminal() bool {
	switch s {
	case Completed, Failed, Cancelled, TimedOut, QueueTimedOut:
		return true
	default:
		return false
	}
}

// ID identifies one submitted query for the lifetime of its record.
type ID string

// AdmitRequest is what the executor facade hands the scheduler at step 4
// of spec §4.8.
type AdmitRequest struct {
	ID            ID
	Priority      Priority
	EstMem        int64
	EstComplexity int64
	QueueDeadline time.Time
	ExecTimeout   time.Duration
}

// Record is the "Query Resource Record" of spec §4 General Data Model: the
// scheduler's complete bookkeeping for one in-flight query, shared between
// the scheduler's dispatch loop and the Admit caller under the scheduler's
// single critical section.
type Record struct {
	ID            ID
	Priority      Priority
	EstMem        int64
	EstComplexity int64
	EnqueuedAt    time.Time
	AdmittedAt    time.Time
	QueueDeadline time.Time
	ExecDeadline  time.Time
	Status        Status

	// ParentCtx/ExecTimeout are captured at submission time and used to
	// build RunCtx at the moment admission actually happens, which may be
	// long after Admit was called if the query sat in queue.
	ParentCtx   context.Context
	ExecTimeout time.Duration

	// RunCtx is derived from ParentCtx and carries the execution deadline
	// once admitted; the backend call observes it. cancelFunc unblocks it
	// from Cancel or stuck-query cleanup.
	RunCtx     context.Context
	cancelFunc context.CancelFunc
}
