// Package schema defines the read-only schema provider interface consumed
// by the semantic validator and optimizer, grounded on the External
// Interfaces contract and on the teacher's own read-only "schema provider"
// posture: nothing in this package or its callers mutates a Provider.
package schema

import (
	"sync"
	"time"

	"github.com/vippsas/kqlcore/ast"
)

// Column describes one column of a table.
type Column struct {
	Name string
	Type ast.DataType
}

// Table describes a table's resolvable columns.
type Table struct {
	Name string
	Cols []Column
	// RowCountEstimate seeds the optimizer's cost model (spec §4.4); zero
	// means "use the default row count".
	RowCountEstimate int64
}

// Column looks up a column by case-insensitive name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Cols {
		if equalFoldASCII(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Function describes a scalar or aggregate function's call shape.
type Function struct {
	Name       string
	Aggregate  bool
	MinArity   int
	MaxArity   int // -1 means unbounded
	ArgTypes   []ast.DataType // checked positionally up to len(ArgTypes); DTUnknown means "any"
	ReturnType ast.DataType
}

// Operator describes a binary or unary operator the validator/optimizer
// accepts; the grammar already restricts which operator spellings can
// appear, so this catalog exists for type-compatibility checks, not for
// syntax recognition.
type Operator struct {
	Symbol   string
	Unary    bool
	LHSTypes []ast.DataType // empty means "any"
	RHSTypes []ast.DataType
}

// Provider is the read-only schema interface consumed by the validator and
// optimizer (spec §6). Implementations may cache internally; stale reads
// are acceptable per the External Interfaces contract.
type Provider interface {
	GetTable(name string) (*Table, bool)
	GetFunctions() []Function
	GetOperators() []Operator
}

// TTLCache wraps a slow Provider (e.g. one backed by a live catalog query)
// with an opportunistically-refreshed, TTL-bounded cache, per spec §6:
// "Schema is cached for a TTL and refreshed opportunistically; stale reads
// are acceptable." Refresh happens lazily on the next call after the TTL
// elapses, never on a background timer, matching the teacher's preference
// for explicitly-triggered work over hidden goroutines.
type TTLCache struct {
	source Provider
	ttl    time.Duration

	mu        sync.Mutex
	fetchedAt time.Time
	tables    map[string]*Table
	functions []Function
	operators []Operator
}

// NewTTLCache wraps source with a cache that refreshes at most once per ttl.
func NewTTLCache(source Provider, ttl time.Duration) *TTLCache {
	return &TTLCache{source: source, ttl: ttl}
}

func (c *TTLCache) refreshLocked(now time.Time) {
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		return
	}
	c.functions = c.source.GetFunctions()
	c.operators = c.source.GetOperators()
	c.tables = make(map[string]*Table)
	c.fetchedAt = now
}

// GetTable satisfies Provider. A table miss in the cache falls through to
// the source directly (cheap: a single lookup) rather than invalidating the
// whole cache, so one unknown table name can't thrash the function/operator
// cache.
func (c *TTLCache) GetTable(name string) (*Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(timeNow())
	if t, ok := c.tables[name]; ok {
		return t, true
	}
	t, ok := c.source.GetTable(name)
	if ok {
		c.tables[name] = t
	}
	return t, ok
}

// GetFunctions satisfies Provider.
func (c *TTLCache) GetFunctions() []Function {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(timeNow())
	return c.functions
}

// GetOperators satisfies Provider.
func (c *TTLCache) GetOperators() []Operator {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(timeNow())
	return c.operators
}

// timeNow is a seam that lets tests move the clock past a TTL boundary
// without sleeping; production code just calls time.Now.
var timeNow = time.Now
