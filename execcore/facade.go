// Package execcore is the executor facade from spec §4.8: the single entry
// point that sequences cache lookup, parse, validate, optimize, SQL
// generation, scheduler admission, backend execution, and cache insertion,
// observing cancellation at each suspension point. The facade logs with
// github.com/sirupsen/logrus structured fields (tenant, phase) the way
// cli/cmd/up.go logs deployment steps, rather than fmt.Printf/log.Printf;
// it logs only in the cache lookup and cache insertion phases.
package execcore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vippsas/kqlcore/cache"
	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/optimize"
	"github.com/vippsas/kqlcore/parser"
	"github.com/vippsas/kqlcore/schedule"
	"github.com/vippsas/kqlcore/schema"
	"github.com/vippsas/kqlcore/sqlgen"
)

// ColumnInfo describes one result column, the (name, type) pair from spec
// §6's Backend interface.
type ColumnInfo struct {
	Name string
	Type string
}

// Backend is the single external operation the core consumes (spec §6):
// run sql with params before deadline, returning the result set shape and
// rows, or a backend-error. Cancellation is observed by ctx, which carries
// deadline when the caller wants one enforced by the backend driver itself.
type Backend interface {
	Execute(ctx context.Context, sqlText string, params []interface{}, deadline time.Time) ([]ColumnInfo, [][]interface{}, error)
}

// Row is one result row, column-ordered the same as Columns.
type Row = []interface{}

// QueryResult is the public core API's success return value.
type QueryResult struct {
	Columns  []ColumnInfo
	Rows     []Row
	RowCount int
	Duration time.Duration
	Cached   bool
	SQL      string
	Params   []interface{}
	// Plan and Notes are not stored in the cache: both are nil on a cache
	// hit (Cached == true).
	Plan  *optimize.ExecutionPlan
	Notes []optimize.Note
}

// Options carries the per-call knobs from spec §4.8's
// (priority, timeout, cache?).
type Options struct {
	Priority          string // "critical" | "high" | "normal" | "low", default "normal"
	Timeout           time.Duration
	QueueTimeout      time.Duration
	Dialect           sqlgen.Dialect
	DisableCache      bool
	MaxCacheableBytes int64
	MaxRows           int64 // caller-supplied row cap passed straight to sqlgen.ExecutionContext; zero means unbounded
}

// Request is the executor facade's single entry-point input: query text,
// tenant, optional time range and parameters, and per-call Options.
type Request struct {
	QueryText   string
	Tenant      string
	TimeRangeLo *time.Time
	TimeRangeHi *time.Time
	Params      []interface{}
	Options     Options
}

// Error is the structured failure the facade returns for every non-success
// outcome, carrying a stable diagnostics.Kind (spec §7) plus, for syntax/
// semantic failures, the full diagnostic batch.
type Error struct {
	Kind        diagnostics.Kind
	Diagnostics diagnostics.List
	Err         error
}

func (e *Error) Error() string {
	if len(e.Diagnostics) > 0 {
		return e.Diagnostics.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("kql: %s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("kql: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// memoryPerRow is the byte-per-estimated-output-row heuristic used to turn
// an execution plan's final row-count estimate into the scheduler's
// est_mem admission input; the core has no real row width to measure
// before running the query, so a fixed per-row budget stands in, same
// spirit as optimize's own DefaultRowCount fallback.
const memoryPerRow = 256

// Facade is the single entry point of spec §4.8, holding everything an
// Execute call needs: explicitly passed context (schema, scheduler, cache,
// backend, logger), never a package-level singleton, per REDESIGN FLAGS.
type Facade struct {
	schema     schema.Provider
	scheduler  *schedule.Scheduler
	cache      *cache.Cache
	backend    Backend
	logger     logrus.FieldLogger
	defaultTTL time.Duration
	maxCacheable int64
	nextID     uint64
}

// Config bundles Facade's tunables that aren't already owned by one of its
// collaborators.
type Config struct {
	DefaultCacheTTL   time.Duration
	MaxCacheableBytes int64 // results larger than this are never cached (spec §4.8 step 7)
}

// New builds a Facade wiring together the already-constructed schema
// provider, scheduler, cache, and backend. All four are read-only or
// independently synchronized from the facade's perspective (spec §5).
func New(provider schema.Provider, sched *schedule.Scheduler, c *cache.Cache, backend Backend, logger logrus.FieldLogger, cfg Config) *Facade {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxCacheable := cfg.MaxCacheableBytes
	if maxCacheable <= 0 {
		maxCacheable = 8 << 20 // 8 MiB, "don't cache huge results" default
	}
	return &Facade{
		schema:       provider,
		scheduler:    sched,
		cache:        c,
		backend:      backend,
		logger:       logger,
		defaultTTL:   cfg.DefaultCacheTTL,
		maxCacheable: maxCacheable,
	}
}

func priorityFromString(s string) schedule.Priority {
	switch s {
	case "critical":
		return schedule.Critical
	case "high":
		return schedule.High
	case "low":
		return schedule.Low
	default:
		return schedule.Normal
	}
}

// Execute runs req through the full parse -> optimize -> emit -> cache ->
// schedule -> run pipeline of spec §4.8, observing ctx cancellation at
// each suspension point.
func (f *Facade) Execute(ctx context.Context, req Request) (*QueryResult, error) {
	start := time.Now()
	log := f.logger.WithFields(logrus.Fields{"tenant": req.Tenant})

	var cacheKey cache.Key
	cacheEnabled := f.cache != nil && !req.Options.DisableCache
	if cacheEnabled {
		cacheKey = cache.Fingerprint(req.QueryText, req.Tenant, req.TimeRangeLo, req.TimeRangeHi, req.Params)
		if payload, ok := f.cache.Get(cacheKey); ok {
			result, err := decodeResult(payload)
			if err == nil {
				result.Cached = true
				result.Duration = 0
				log.WithField("phase", "cache").Debug("cache hit")
				return result, nil
			}
			// A corrupt cache payload is a cache-kind failure: logged and
			// bypassed, never fatal (spec §7).
			log.WithField("phase", "cache").WithError(err).Warn("cache payload decode failed, bypassing")
		}
	}

	query, rawDiags := parser.Parse(req.QueryText)
	diags := diagnostics.List(rawDiags)
	if diags.HasErrors() && query == nil {
		return nil, &Error{Kind: diagnostics.Syntax, Diagnostics: diags}
	}
	semDiags := schema.Validate(query, f.schema)
	allDiags := append(diagnostics.List{}, diags...)
	allDiags = append(allDiags, semDiags...)
	if diags.HasErrors() {
		return nil, &Error{Kind: diagnostics.Syntax, Diagnostics: allDiags}
	}
	if semDiags.HasErrors() {
		return nil, &Error{Kind: diagnostics.Semantic, Diagnostics: allDiags}
	}

	opt := optimize.Optimize(query, f.schema)

	genCtx := sqlgen.ExecutionContext{
		Tenant:      req.Tenant,
		TimeRangeLo: req.TimeRangeLo,
		TimeRangeHi: req.TimeRangeHi,
		MaxRows:     req.Options.MaxRows,
	}
	sqlResult, err := sqlgen.Generate(opt.Query, req.Options.Dialect, genCtx)
	if err != nil {
		return nil, &Error{Kind: diagnostics.Unsupported, Err: err}
	}

	id := schedule.ID(fmt.Sprintf("q%d", atomic.AddUint64(&f.nextID, 1)))
	priority := priorityFromString(req.Options.Priority)
	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	queueTimeout := req.Options.QueueTimeout
	if queueTimeout <= 0 {
		queueTimeout = defaultQueueTimeout
	}

	estComplexity := int64(opt.Plan.TotalCost)
	var estOutputRows int64
	if len(opt.Plan.Steps) > 0 {
		estOutputRows = opt.Plan.Steps[len(opt.Plan.Steps)-1].EstOutputRows
	}
	estMem := estOutputRows * memoryPerRow

	rec, err := f.scheduler.Admit(ctx, schedule.AdmitRequest{
		ID:            id,
		Priority:      priority,
		EstMem:        estMem,
		EstComplexity: estComplexity,
		QueueDeadline: time.Now().Add(queueTimeout),
		ExecTimeout:   timeout,
	})
	if err != nil {
		return nil, classifyAdmitError(err)
	}

	var outcome schedule.Status
	defer func() {
		// Release unconditionally in a scoped block so partial failures
		// never leak accounting (spec §4.8 step 6).
		f.scheduler.Release(id, outcome)
	}()

	deadline, _ := rec.RunCtx.Deadline()
	columns, rows, err := f.backend.Execute(rec.RunCtx, sqlResult.SQL, sqlResult.Params, deadline)

	// Cancellation is polled immediately after the suspension point
	// resumes (spec §5).
	if rec.RunCtx.Err() != nil {
		if rec.RunCtx.Err() == context.DeadlineExceeded {
			outcome = schedule.TimedOut
			return nil, &Error{Kind: diagnostics.ExecTimeout, Err: rec.RunCtx.Err()}
		}
		outcome = schedule.Cancelled
		return nil, &Error{Kind: diagnostics.Cancelled, Err: rec.RunCtx.Err()}
	}
	if err != nil {
		outcome = schedule.Failed
		return nil, &Error{Kind: diagnostics.Backend, Err: err}
	}
	outcome = schedule.Completed

	result := &QueryResult{
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
		Duration: time.Since(start),
		SQL:      sqlResult.SQL,
		Params:   sqlResult.Params,
		Plan:     opt.Plan,
		Notes:    opt.Notes,
	}

	if cacheEnabled {
		f.putCache(log, cacheKey, result, req.Options)
	}

	return result, nil
}

// putCache encodes and stores result, swallowing any failure as a cache-
// kind error: the query already succeeded and must still be returned to
// the caller (spec §7: "Cache errors are swallowed").
func (f *Facade) putCache(log logrus.FieldLogger, key cache.Key, result *QueryResult, opts Options) {
	maxCacheable := opts.MaxCacheableBytes
	if maxCacheable <= 0 {
		maxCacheable = f.maxCacheable
	}
	payload, err := encodeResult(result)
	if err != nil {
		log.WithField("phase", "cache-put").WithError(err).Warn("result encode failed, not caching")
		return
	}
	if int64(len(payload)) > maxCacheable {
		log.WithField("phase", "cache-put").Debug("result exceeds cacheable size, skipping cache insert")
		return
	}
	ttl := f.defaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := f.cache.Put(key, payload, ttl); err != nil {
		log.WithField("phase", "cache-put").WithError(err).Warn("cache put failed")
	}
}

// Cancel implements the public core API's cancel(id) by delegating to the
// scheduler (spec §4.7's cancel semantics).
func (f *Facade) Cancel(id string) bool {
	return f.scheduler.Cancel(schedule.ID(id))
}

// ResourceUsage implements the public core API's resource_usage().
func (f *Facade) ResourceUsage() schedule.Snapshot {
	return f.scheduler.Snapshot()
}

func classifyAdmitError(err error) error {
	switch err {
	case schedule.ErrComplexityCeiling:
		return &Error{Kind: diagnostics.Resource, Err: err}
	case schedule.ErrQueueTimeout:
		return &Error{Kind: diagnostics.QueueTimeout, Err: err}
	case schedule.ErrCancelled:
		return &Error{Kind: diagnostics.Cancelled, Err: err}
	default:
		return &Error{Kind: diagnostics.Resource, Err: err}
	}
}

const (
	defaultExecTimeout  = 30 * time.Second
	defaultQueueTimeout = 60 * time.Second
	defaultCacheTTL     = 5 * time.Minute
)

func init() {
	// Rows flow through the cache as interface{} cells; gob only has
	// built-in support for basic kinds, so concrete wrapper types the
	// backend adapters can produce (time.Time for datetime columns,
	// uuid.UUID for guid columns) must be registered once up front.
	gob.Register(time.Time{})
	gob.Register(uuid.UUID{})
}

func encodeResult(r *QueryResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	cr := cachedResult{
		Columns:  r.Columns,
		Rows:     r.Rows,
		RowCount: r.RowCount,
		SQL:      r.SQL,
		Params:   r.Params,
	}
	if err := enc.Encode(cr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResult(payload []byte) (*QueryResult, error) {
	var cr cachedResult
	dec := gob.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&cr); err != nil {
		return nil, err
	}
	return &QueryResult{
		Columns:  cr.Columns,
		Rows:     cr.Rows,
		RowCount: cr.RowCount,
		SQL:      cr.SQL,
		Params:   cr.Params,
	}, nil
}

// cachedResult is the gob-serializable subset of QueryResult: Plan/Notes
// carry introspection-only data the spec never requires a cache hit to
// reproduce. Rows are encoded as they are; a cell whose concrete type gob
// has no registration for makes encodeResult fail, and putCache then
// skips caching that result.
type cachedResult struct {
	Columns  []ColumnInfo
	Rows     []Row
	RowCount int
	SQL      string
	Params   []interface{}
}
