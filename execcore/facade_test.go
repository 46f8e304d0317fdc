package execcore

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/cache"
	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/schedule"
	"github.com/vippsas/kqlcore/schema"
	"github.com/vippsas/kqlcore/sqlgen"
)

// fakeBackend is a scripted Backend stand-in: each call pulls the next
// canned response, the same one-call-one-script style as the teacher's own
// table-driven unit tests (no mocking library appears anywhere in the
// example corpus).
type fakeBackend struct {
	columns []ColumnInfo
	rows    [][]interface{}
	err     error
	calls   int
}

func (b *fakeBackend) Execute(ctx context.Context, sqlText string, params []interface{}, deadline time.Time) ([]ColumnInfo, [][]interface{}, error) {
	b.calls++
	if b.err != nil {
		return nil, nil, b.err
	}
	return b.columns, b.rows, nil
}

func testProvider() schema.Provider {
	return schema.NewStaticProvider([]*schema.Table{
		{Name: "Events", Cols: []schema.Column{
			{Name: "id", Type: ast.DTInteger},
			{Name: "name", Type: ast.DTString},
		}},
	}, schema.DefaultFunctions(), schema.DefaultOperators())
}

func testScheduler(t *testing.T) *schedule.Scheduler {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	sched := schedule.New(schedule.Config{
		GlobalCap:                100,
		MemLimit:                 1 << 30,
		ComplexityCap:            1_000_000,
		PerPriorityCap:           [4]int{100, 100, 100, 100},
		LowStarvationThreshold:   time.Hour,
		StuckQueryThreshold:      time.Hour,
		MonitoringSampleInterval: time.Hour,
		AlertThresholds:          schedule.AlertThresholds{MemoryPercent: 0.9, QueueDepth: 1000},
	}, l)
	t.Cleanup(sched.Close)
	return sched
}

func newTestFacade(t *testing.T, backend Backend, c *cache.Cache) *Facade {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return New(testProvider(), testScheduler(t), c, backend, l, Config{
		DefaultCacheTTL:   time.Minute,
		MaxCacheableBytes: 1 << 20,
	})
}

func TestExecuteRunsQueryAgainstBackend(t *testing.T) {
	backend := &fakeBackend{
		columns: []ColumnInfo{{Name: "id", Type: "int"}},
		rows:    [][]interface{}{{1}, {2}},
	}
	f := newTestFacade(t, backend, nil)

	result, err := f.Execute(context.Background(), Request{
		QueryText: `Events | project id`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, backend.calls)
	assert.Contains(t, result.SQL, "tenant")
}

func TestExecuteSyntaxErrorNeverReachesBackend(t *testing.T) {
	backend := &fakeBackend{}
	f := newTestFacade(t, backend, nil)

	_, err := f.Execute(context.Background(), Request{
		QueryText: `Events | where`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	})
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, diagnostics.Syntax, fe.Kind)
	assert.Equal(t, 0, backend.calls)
}

func TestExecuteSemanticErrorNeverReachesBackend(t *testing.T) {
	backend := &fakeBackend{}
	f := newTestFacade(t, backend, nil)

	_, err := f.Execute(context.Background(), Request{
		QueryText: `Events | project nope`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	})
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, diagnostics.Semantic, fe.Kind)
	assert.Equal(t, 0, backend.calls)
}

func TestExecuteBackendErrorClassifiedAsBackendKind(t *testing.T) {
	backend := &fakeBackend{err: assertErr{"boom"}}
	f := newTestFacade(t, backend, nil)

	_, err := f.Execute(context.Background(), Request{
		QueryText: `Events | project id`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	})
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, diagnostics.Backend, fe.Kind)
}

func TestExecuteCachesSuccessfulResult(t *testing.T) {
	backend := &fakeBackend{
		columns: []ColumnInfo{{Name: "id", Type: "int"}},
		rows:    [][]interface{}{{1}},
	}
	c := cache.New(cache.LRU, 1<<20)
	t.Cleanup(c.Close)
	f := newTestFacade(t, backend, c)

	req := Request{
		QueryText: `Events | project id`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	}

	first, err := f.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, backend.calls)

	second, err := f.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	// A cache hit short-circuits before the backend is ever called again.
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, first.RowCount, second.RowCount)
	// Plan/Notes are introspection-only and are not reconstructed from a
	// cache hit.
	assert.Nil(t, second.Plan)
}

func TestExecuteDisableCacheBypassesStore(t *testing.T) {
	backend := &fakeBackend{
		columns: []ColumnInfo{{Name: "id", Type: "int"}},
		rows:    [][]interface{}{{1}},
	}
	c := cache.New(cache.LRU, 1<<20)
	t.Cleanup(c.Close)
	f := newTestFacade(t, backend, c)

	req := Request{
		QueryText: `Events | project id`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres, DisableCache: true},
	}

	_, err := f.Execute(context.Background(), req)
	require.NoError(t, err)
	_, err = f.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestExecuteComplexityCeilingRejectsWithoutQueueing(t *testing.T) {
	backend := &fakeBackend{columns: []ColumnInfo{{Name: "id"}}, rows: [][]interface{}{{1}}}
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	sched := schedule.New(schedule.Config{
		GlobalCap:                10,
		MemLimit:                 1 << 30,
		ComplexityCap:            1, // any real query's estimated cost exceeds this
		PerPriorityCap:           [4]int{10, 10, 10, 10},
		LowStarvationThreshold:   time.Hour,
		StuckQueryThreshold:      time.Hour,
		MonitoringSampleInterval: time.Hour,
		AlertThresholds:          schedule.AlertThresholds{MemoryPercent: 0.9, QueueDepth: 1000},
	}, l)
	t.Cleanup(sched.Close)

	f := New(testProvider(), sched, nil, backend, l, Config{})

	_, err := f.Execute(context.Background(), Request{
		QueryText: `Events | project id`,
		Tenant:    "tenant-a",
		Options:   Options{Dialect: sqlgen.Postgres},
	})
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, diagnostics.Resource, fe.Kind)
	assert.Equal(t, 0, backend.calls)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
