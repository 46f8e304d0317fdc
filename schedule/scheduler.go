// Package schedule is the admission-control and priority-queue subsystem
// from spec §4.7: it admits, queues, and accounts concurrent queries
// against hard memory/complexity/concurrency ceilings with queue fairness
// and cooperative cancellation.
//
// The accounting state is a single struct shared by every Admit/Release/
// Cancel call; per spec §5 it is protected by one coarse critical section
// rather than fine-grained locking, since admission work is negligible
// next to query execution time. Waiters block on a sync.Cond rather than
// an event-emitter callback, per REDESIGN FLAGS.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// nowFunc is a seam for tests to control enqueue/admit timestamps without
// sleeping, mirroring the cache package's identical seam.
var nowFunc = time.Now

// AlertThresholds configures when Snapshot's health rollup moves from
// healthy to warning to critical.
type AlertThresholds struct {
	MemoryPercent float64
	QueueDepth    int
}

// Config is the scheduler's static admission policy, sourced from the
// config package's "max_concurrent_queries / max_memory_bytes / ..." YAML
// surface (spec §6).
type Config struct {
	GlobalCap                int
	MemLimit                 int64
	ComplexityCap            int64
	PerPriorityCap           [numPriorities]int
	LowStarvationThreshold   time.Duration
	StuckQueryThreshold      time.Duration
	MonitoringSampleInterval time.Duration
	AlertThresholds          AlertThresholds
}

// Scheduler is the single-process admission controller. Construct one per
// process with New and share it across all executor facade instances.
type Scheduler struct {
	cfg    Config
	logger logrus.FieldLogger

	mu   sync.Mutex
	cond *sync.Cond

	currentMem         int64
	activeCount        int
	activePerPriority  [numPriorities]int
	queues             [numPriorities][]*Record
	records            map[ID]*Record
	queueWaitTotal     time.Duration
	queueWaitSamples   int64
	completedCount     int64
	failedCount        int64
	cancelledCount     int64
	timedOutCount      int64
	queueTimedOutCount int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Scheduler under cfg and starts its background stuck-query
// sampler. Call Close when done to stop the sampler goroutine.
func New(cfg Config, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Scheduler{
		cfg:     cfg,
		logger:  logger,
		records: make(map[ID]*Record),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.sampleLoop(cfg.MonitoringSampleInterval)
	return s
}

// Close stops the stuck-query sampler. Safe to call once.
func (s *Scheduler) Close() {
	close(s.stopCh)
	<-s.doneCh
}

// Admit submits a query for admission under req and blocks until it is
// either admitted, cancelled, or its queue deadline elapses, per spec
// §4.7's state machine. ctx cancellation while queued is treated as a
// cancellation of the wait itself.
func (s *Scheduler) Admit(ctx context.Context, req AdmitRequest) (*Record, error) {
	if req.EstComplexity > s.cfg.ComplexityCap {
		return nil, ErrComplexityCeiling
	}

	s.mu.Lock()
	rec := &Record{
		ID:            req.ID,
		Priority:      req.Priority,
		EstMem:        req.EstMem,
		EstComplexity: req.EstComplexity,
		EnqueuedAt:    nowFunc(),
		QueueDeadline: req.QueueDeadline,
		Status:        Queued,
		ParentCtx:     ctx,
		ExecTimeout:   req.ExecTimeout,
	}
	s.records[req.ID] = rec

	if s.admissionPredicateLocked(rec.Priority, rec.EstMem, rec.EstComplexity) {
		s.admitLocked(rec)
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"query_id": rec.ID, "priority": rec.Priority}).Debug("admitted immediately")
		return rec, nil
	}
	s.queues[rec.Priority] = append(s.queues[rec.Priority], rec)
	s.mu.Unlock()
	s.logger.WithFields(logrus.Fields{"query_id": rec.ID, "priority": rec.Priority}).Debug("query enqueued")

	watchDone := make(chan struct{})
	go s.watchQueued(ctx, rec, watchDone)
	defer close(watchDone)

	s.mu.Lock()
	for rec.Status == Queued {
		s.cond.Wait()
	}
	status := rec.Status
	s.mu.Unlock()

	switch status {
	case Running:
		return rec, nil
	case Cancelled:
		return rec, ErrCancelled
	case QueueTimedOut:
		return rec, ErrQueueTimeout
	default:
		return rec, fmt.Errorf("schedule: query %s left queue in unexpected status %s", rec.ID, status)
	}
}

// watchQueued resolves a queued record's wait the moment its queue
// deadline elapses or its caller's context is cancelled, whichever comes
// first; it is a no-op once the record leaves the Queued state by any
// other path (admission, explicit Cancel).
func (s *Scheduler) watchQueued(ctx context.Context, rec *Record, done <-chan struct{}) {
	timer := time.NewTimer(time.Until(rec.QueueDeadline))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.mu.Lock()
		if rec.Status == Queued {
			s.removeFromQueueLocked(rec)
			rec.Status = Cancelled
			s.cancelledCount++
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	case <-timer.C:
		s.mu.Lock()
		if rec.Status == Queued {
			s.removeFromQueueLocked(rec)
			rec.Status = QueueTimedOut
			s.queueTimedOutCount++
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	case <-done:
	}
}

// Release accounts for a query leaving the running state, per spec §4.8
// step 6: called unconditionally by the executor facade on every terminal
// outcome so partial failures never leak accounting. It re-evaluates the
// queue head afterward so waiters can be admitted immediately.
func (s *Scheduler) Release(id ID, outcome Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if rec.Status == Running {
		s.currentMem -= rec.EstMem
		s.activeCount--
		s.activePerPriority[rec.Priority]--
	}
	rec.Status = outcome
	s.countTerminalLocked(outcome)
	delete(s.records, id)

	s.dispatchLocked()
	s.cond.Broadcast()
}

// Cancel implements spec §4.7's cancel(id): a queued record is removed and
// marked cancelled immediately; a running record has its RunCtx cancelled
// so the executor facade observes it at its next suspension point and
// calls Release itself. Returns false if id is unknown or already
// terminal.
func (s *Scheduler) Cancel(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Status.terminal() {
		return false
	}
	switch rec.Status {
	case Queued:
		s.removeFromQueueLocked(rec)
		rec.Status = Cancelled
		s.cancelledCount++
		delete(s.records, id)
		s.cond.Broadcast()
		return true
	case Running:
		if rec.cancelFunc != nil {
			rec.cancelFunc()
		}
		return true
	default:
		return false
	}
}

func (s *Scheduler) admissionPredicateLocked(p Priority, estMem, estComplexity int64) bool {
	return s.currentMem+estMem <= s.cfg.MemLimit &&
		s.activeCount < s.cfg.GlobalCap &&
		s.activePerPriority[p] < s.cfg.PerPriorityCap[p] &&
		estComplexity <= s.cfg.ComplexityCap
}

func (s *Scheduler) admitLocked(rec *Record) {
	rec.AdmittedAt = nowFunc()
	runCtx, cancel := context.WithTimeout(rec.ParentCtx, rec.ExecTimeout)
	rec.RunCtx = runCtx
	rec.cancelFunc = cancel
	rec.ExecDeadline = rec.AdmittedAt.Add(rec.ExecTimeout)
	rec.Status = Running

	s.currentMem += rec.EstMem
	s.activeCount++
	s.activePerPriority[rec.Priority]++

	s.queueWaitTotal += rec.AdmittedAt.Sub(rec.EnqueuedAt)
	s.queueWaitSamples++
}

func (s *Scheduler) removeFromQueueLocked(rec *Record) {
	q := s.queues[rec.Priority]
	for i, r := range q {
		if r == rec {
			s.queues[rec.Priority] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// dispatchLocked re-evaluates every queued record in priority-then-FIFO
// order (spec §4.7's queue ordering, with low-priority starvation
// promotion applied for ordering purposes only) and admits as many as the
// predicate currently allows.
func (s *Scheduler) dispatchLocked() {
	type waiting struct {
		rec  *Record
		rank Priority
	}
	var all []waiting
	now := nowFunc()
	for p := Priority(0); p < Priority(numPriorities); p++ {
		for _, r := range s.queues[p] {
			rank := p
			if p == Low && now.Sub(r.EnqueuedAt) > s.cfg.LowStarvationThreshold {
				rank = p.promoted()
			}
			all = append(all, waiting{r, rank})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].rank != all[j].rank {
			return all[i].rank < all[j].rank
		}
		return all[i].rec.EnqueuedAt.Before(all[j].rec.EnqueuedAt)
	})

	for _, w := range all {
		if s.admissionPredicateLocked(w.rec.Priority, w.rec.EstMem, w.rec.EstComplexity) {
			s.removeFromQueueLocked(w.rec)
			s.admitLocked(w.rec)
			s.logger.WithFields(logrus.Fields{"query_id": w.rec.ID, "priority": w.rec.Priority}).Debug("admitted from queue")
		}
	}
}

func (s *Scheduler) countTerminalLocked(outcome Status) {
	switch outcome {
	case Completed:
		s.completedCount++
	case Failed:
		s.failedCount++
	case Cancelled:
		s.cancelledCount++
	case TimedOut:
		s.timedOutCount++
	}
}

// sampleLoop drives stuck-query detection: the only self-healing path for
// a backend call that never returns and never observes its own
// cancellation (spec §4.7).
func (s *Scheduler) sampleLoop(interval time.Duration) {
	defer close(s.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepStuck()
		}
	}
}

func (s *Scheduler) sweepStuck() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowFunc()
	var cleaned []ID
	for id, rec := range s.records {
		if rec.Status == Running && now.Sub(rec.AdmittedAt) > s.cfg.StuckQueryThreshold {
			if rec.cancelFunc != nil {
				rec.cancelFunc()
			}
			s.currentMem -= rec.EstMem
			s.activeCount--
			s.activePerPriority[rec.Priority]--
			rec.Status = TimedOut
			s.timedOutCount++
			delete(s.records, id)
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) > 0 {
		s.logger.WithFields(logrus.Fields{"query_ids": cleaned}).Warn("stuck query force-cleaned")
		s.dispatchLocked()
		s.cond.Broadcast()
	}
}
