package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		GlobalCap:                100,
		MemLimit:                 1 << 30,
		ComplexityCap:            1000,
		PerPriorityCap:           [numPriorities]int{Critical: 100, High: 100, Normal: 100, Low: 100},
		LowStarvationThreshold:   time.Hour,
		StuckQueryThreshold:      time.Hour,
		MonitoringSampleInterval: time.Hour,
		AlertThresholds:          AlertThresholds{MemoryPercent: 0.8, QueueDepth: 10},
	}
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestAdmitsImmediatelyWhenResourcesAvailable(t *testing.T) {
	s := New(testConfig(), testLogger())
	defer s.Close()

	rec, err := s.Admit(context.Background(), AdmitRequest{
		ID: "q1", Priority: Normal, EstMem: 10, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, Running, rec.Status)
}

func TestExceedingComplexityCeilingIsRejectedOutright(t *testing.T) {
	cfg := testConfig()
	cfg.ComplexityCap = 5
	s := New(cfg, testLogger())
	defer s.Close()

	_, err := s.Admit(context.Background(), AdmitRequest{
		ID: "q1", Priority: Normal, EstMem: 1, EstComplexity: 10,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	assert.ErrorIs(t, err, ErrComplexityCeiling)
}

func TestPerPriorityCapQueuesExcessAndFIFOAdmitsOnRelease(t *testing.T) {
	cfg := testConfig()
	cfg.PerPriorityCap[Critical] = 2
	s := New(cfg, testLogger())
	defer s.Close()

	admit := func(id ID) *Record {
		rec, err := s.Admit(context.Background(), AdmitRequest{
			ID: id, Priority: Critical, EstMem: 1, EstComplexity: 1,
			QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
		})
		require.NoError(t, err)
		return rec
	}

	a := admit("a")
	b := admit("b")
	assert.Equal(t, Running, a.Status)
	assert.Equal(t, Running, b.Status)

	var wg sync.WaitGroup
	results := make(map[ID]*Record)
	var mu sync.Mutex
	for _, id := range []ID{"c", "d"} {
		wg.Add(1)
		go func(id ID) {
			defer wg.Done()
			rec, err := s.Admit(context.Background(), AdmitRequest{
				ID: id, Priority: Critical, EstMem: 1, EstComplexity: 1,
				QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
			})
			require.NoError(t, err)
			mu.Lock()
			results[id] = rec
			mu.Unlock()
		}(id)
		// stagger the submissions so c is enqueued strictly before d
		time.Sleep(5 * time.Millisecond)
	}

	// give the goroutines time to reach the queue before we release
	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.QueuedByPriority[Critical])

	s.Release(a.ID, Completed)
	// the release frees one slot, so only one waiter can return from Admit;
	// the other stays queued until b is released below
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	admittedCount := 0
	for _, r := range results {
		if r.Status == Running {
			admittedCount++
		}
	}
	assert.Equal(t, 1, admittedCount, "exactly one queued entry admits per release")
	assert.Equal(t, Running, results["c"].Status, "FIFO: c enqueued before d")
	mu.Unlock()

	s.Release(b.ID, Completed)
	wg.Wait()
}

func TestCancelQueuedRemovesItImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.PerPriorityCap[Normal] = 1
	s := New(cfg, testLogger())
	defer s.Close()

	blocker, err := s.Admit(context.Background(), AdmitRequest{
		ID: "blocker", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)
	_ = blocker

	done := make(chan error, 1)
	go func() {
		_, err := s.Admit(context.Background(), AdmitRequest{
			ID: "waiter", Priority: Normal, EstMem: 1, EstComplexity: 1,
			QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ok := s.Cancel("waiter")
	assert.True(t, ok)

	err = <-done
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestCancelRunningSignalsRunCtx(t *testing.T) {
	s := New(testConfig(), testLogger())
	defer s.Close()

	rec, err := s.Admit(context.Background(), AdmitRequest{
		ID: "q1", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)

	ok := s.Cancel(rec.ID)
	assert.True(t, ok)

	select {
	case <-rec.RunCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("RunCtx was not cancelled")
	}
}

func TestQueueDeadlineElapsesWithQueueTimeoutError(t *testing.T) {
	cfg := testConfig()
	cfg.PerPriorityCap[Normal] = 1
	s := New(cfg, testLogger())
	defer s.Close()

	_, err := s.Admit(context.Background(), AdmitRequest{
		ID: "blocker", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)

	_, err = s.Admit(context.Background(), AdmitRequest{
		ID: "waiter", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: time.Now().Add(10 * time.Millisecond), ExecTimeout: time.Minute,
	})
	assert.ErrorIs(t, err, ErrQueueTimeout)
}

func TestCallerContextCancelWhileQueuedReturnsErrCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.PerPriorityCap[Normal] = 1
	s := New(cfg, testLogger())
	defer s.Close()

	_, err := s.Admit(context.Background(), AdmitRequest{
		ID: "blocker", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Admit(ctx, AdmitRequest{
			ID: "waiter", Priority: Normal, EstMem: 1, EstComplexity: 1,
			QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err = <-done
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestReleaseFreesMemoryForQueuedMemoryBoundQuery(t *testing.T) {
	cfg := testConfig()
	cfg.MemLimit = 100
	s := New(cfg, testLogger())
	defer s.Close()

	first, err := s.Admit(context.Background(), AdmitRequest{
		ID: "first", Priority: Normal, EstMem: 90, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)

	done := make(chan *Record, 1)
	go func() {
		rec, err := s.Admit(context.Background(), AdmitRequest{
			ID: "second", Priority: Normal, EstMem: 50, EstComplexity: 1,
			QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
		})
		require.NoError(t, err)
		done <- rec
	}()

	time.Sleep(20 * time.Millisecond)
	s.Release(first.ID, Completed)

	rec := <-done
	assert.Equal(t, Running, rec.Status)
}

func TestSweepStuckForceCleansLongRunningQuery(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()
	base := time.Now()
	nowFunc = func() time.Time { return base }

	cfg := testConfig()
	cfg.StuckQueryThreshold = time.Second
	s := New(cfg, testLogger())
	defer s.Close()

	rec, err := s.Admit(context.Background(), AdmitRequest{
		ID: "slow", Priority: Normal, EstMem: 1, EstComplexity: 1,
		QueueDeadline: base.Add(time.Hour), ExecTimeout: time.Hour,
	})
	require.NoError(t, err)

	nowFunc = func() time.Time { return base.Add(2 * time.Second) }
	s.sweepStuck()

	select {
	case <-rec.RunCtx.Done():
	default:
		t.Fatal("stuck query's RunCtx should have been cancelled")
	}
	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.TimedOut)
	assert.Equal(t, int64(0), snap.CurrentMemory)
}

func TestSnapshotHealthReflectsMemoryPressure(t *testing.T) {
	cfg := testConfig()
	cfg.MemLimit = 100
	cfg.AlertThresholds = AlertThresholds{MemoryPercent: 0.5, QueueDepth: 100}
	s := New(cfg, testLogger())
	defer s.Close()

	_, err := s.Admit(context.Background(), AdmitRequest{
		ID: "q", Priority: Normal, EstMem: 60, EstComplexity: 1,
		QueueDeadline: time.Now().Add(time.Hour), ExecTimeout: time.Minute,
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, HealthWarning, snap.Health)
}
