package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vippsas/kqlcore/ast"
)

func TestLoadStaticProviderFromYAML(t *testing.T) {
	doc := `
tables:
  - name: Users
    row_count_estimate: 42
    columns:
      - name: id
        type: int
      - name: name
        type: string
functions:
  - name: geoDistance
    min_arity: 2
    max_arity: 2
    return_type: real
`
	p, err := LoadStaticProvider([]byte(doc))
	require.NoError(t, err)

	tbl, ok := p.GetTable("users")
	require.True(t, ok)
	assert.EqualValues(t, 42, tbl.RowCountEstimate)
	col, ok := tbl.Column("Name")
	require.True(t, ok)
	assert.Equal(t, ast.DTString, col.Type)

	found := false
	for _, f := range p.GetFunctions() {
		if f.Name == "geoDistance" {
			found = true
			assert.Equal(t, ast.DTFloat, f.ReturnType)
		}
	}
	assert.True(t, found, "yaml-defined function should be appended to the default catalog")
}

type countingProvider struct {
	calls int
	table *Table
}

func (c *countingProvider) GetTable(name string) (*Table, bool) {
	c.calls++
	return c.table, true
}
func (c *countingProvider) GetFunctions() []Function { c.calls++; return DefaultFunctions() }
func (c *countingProvider) GetOperators() []Operator { c.calls++; return DefaultOperators() }

func TestTTLCacheRefreshesOnlyAfterExpiry(t *testing.T) {
	src := &countingProvider{table: &Table{Name: "Users"}}
	cache := NewTTLCache(src, time.Hour)

	_ = cache.GetFunctions()
	callsAfterFirst := src.calls
	_ = cache.GetFunctions()
	assert.Equal(t, callsAfterFirst, src.calls, "second call within TTL must not hit the source again")

	restore := timeNow
	timeNow = func() time.Time { return restore().Add(2 * time.Hour) }
	defer func() { timeNow = restore }()

	_ = cache.GetFunctions()
	assert.Greater(t, src.calls, callsAfterFirst, "call past TTL must refresh from the source")
}
