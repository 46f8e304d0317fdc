package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/parser"
	"github.com/vippsas/kqlcore/schema"
)

func mustParse(t *testing.T, q string) *ast.Query {
	t.Helper()
	query, diags := parser.Parse(q)
	require.Empty(t, diags)
	return query
}

func usersProvider() schema.Provider {
	return schema.NewStaticProvider([]*schema.Table{
		{Name: "T", Cols: []schema.Column{{Name: "a", Type: ast.DTInteger}, {Name: "b", Type: ast.DTInteger}, {Name: "x", Type: ast.DTInteger}, {Name: "y", Type: ast.DTInteger}}},
	}, schema.DefaultFunctions(), schema.DefaultOperators())
}

func TestCoalesceConsecutiveWhereClauses(t *testing.T) {
	q := mustParse(t, `T | where a==1 | where b==2 | project a,b`)
	res := Optimize(q, usersProvider())

	var where *ast.Where
	filterCount := 0
	for _, op := range res.Query.Pipeline {
		if w, ok := op.(*ast.Where); ok {
			filterCount++
			where = w
		}
	}
	assert.Equal(t, 1, filterCount, "exactly one filter step after coalescing")
	require.NotNil(t, where)

	// the pass-through project references exactly the columns the merged
	// where needs, so projection pushdown moves it ahead of the filter and
	// the cost-based reorder's dependency guard keeps it there.
	_, isProject := res.Query.Pipeline[0].(*ast.Project)
	assert.True(t, isProject)

	bin, ok := where.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "and", bin.Op)

	filterSteps := 0
	for _, s := range res.Plan.Steps {
		if s.Kind == StepFilter {
			filterSteps++
		}
	}
	assert.Equal(t, 1, filterSteps)
}

func TestConstantFoldDropsTrivialWhere(t *testing.T) {
	q := mustParse(t, `T | where 1+2 == 3`)
	res := Optimize(q, usersProvider())
	assert.Empty(t, res.Query.Pipeline, "constant-true where is dropped")

	foundNote := false
	for _, n := range res.Notes {
		if n.Code == "constant-folded-filter-dropped" {
			foundNote = true
		}
	}
	assert.True(t, foundNote)
}

func TestConstantFoldPreservesArithmetic(t *testing.T) {
	q := mustParse(t, `T | extend z = 2 * 3`)
	res := Optimize(q, usersProvider())
	ext := res.Query.Pipeline[0].(*ast.Extend)
	lit, ok := ext.Assigns[0].Expr.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(6), lit.Value.Int)
}

func TestDivisionByZeroNotFolded(t *testing.T) {
	q := mustParse(t, `T | where a == 1/0`)
	res := Optimize(q, usersProvider())
	where := res.Query.Pipeline[0].(*ast.Where)
	bin := where.Cond.(*ast.Binary)
	_, isLiteral := bin.R.(*ast.Literal)
	assert.False(t, isLiteral, "1/0 must not be folded; left for the backend")
}

func TestDeadExtendEliminated(t *testing.T) {
	q := mustParse(t, `T | extend unused = a + 1 | extend used = b + 1 | project used`)
	res := Optimize(q, usersProvider())

	for _, op := range res.Query.Pipeline {
		if ext, ok := op.(*ast.Extend); ok {
			for _, a := range ext.Assigns {
				assert.NotEqual(t, "unused", a.Name)
			}
		}
	}
}

func TestDeadExtendKeptWhenReferencedDownstream(t *testing.T) {
	q := mustParse(t, `T | extend z = a + 1 | where z > 0 | project x`)
	res := Optimize(q, usersProvider())

	found := false
	for _, op := range res.Query.Pipeline {
		if ext, ok := op.(*ast.Extend); ok {
			for _, a := range ext.Assigns {
				if a.Name == "z" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "z is referenced by the where clause and must survive")
}

func TestProjectionPushdownMovesPastCompatibleWhere(t *testing.T) {
	q := mustParse(t, `T | where x > 1 | project x, y`)
	res := Optimize(q, usersProvider())
	_, ok := res.Query.Pipeline[0].(*ast.Project)
	assert.True(t, ok, "pass-through project referencing only retained columns moves before the where")
}

func TestProjectionPushdownBlockedWhenColumnWouldBeDropped(t *testing.T) {
	q := mustParse(t, `T | where y > 1 | project x`)
	res := Optimize(q, usersProvider())
	_, ok := res.Query.Pipeline[0].(*ast.Where)
	assert.True(t, ok, "project that would drop y must not move before a where needing y")
}

func TestOperationReorderingRespectsSummarizeBarrier(t *testing.T) {
	q := mustParse(t, `T | limit 10 | summarize sum(a) as total by b | order by total`)
	res := Optimize(q, usersProvider())

	var kinds []StepKind
	for _, op := range res.Query.Pipeline {
		kinds = append(kinds, stepKindOf(op))
	}
	require.Len(t, kinds, 3)
	assert.Equal(t, StepLimit, kinds[0])
	assert.Equal(t, StepAggregate, kinds[1])
	assert.Equal(t, StepSort, kinds[2])
}

func TestExecutionPlanHasTableScanFirst(t *testing.T) {
	q := mustParse(t, `T | where a > 1 | project a`)
	res := Optimize(q, usersProvider())
	require.NotEmpty(t, res.Plan.Steps)
	assert.Equal(t, StepTableScan, res.Plan.Steps[0].Kind)
	assert.Greater(t, res.Plan.TotalCost, 0.0)
}

func TestDefaultRowCountUsedWhenSchemaHasNoEstimate(t *testing.T) {
	q := mustParse(t, `T | where a > 1`)
	res := Optimize(q, usersProvider())
	assert.EqualValues(t, DefaultRowCount, res.Plan.Steps[0].EstInputRows)
}
