package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vippsas/kqlcore/ast"
)

func TestParseSimpleWhereProject(t *testing.T) {
	q, diags := Parse(`Users | where age > 18 | project name`)
	require.Empty(t, diags)
	require.NotNil(t, q)

	assert.Equal(t, "Users", q.Table.Name)
	require.Len(t, q.Pipeline, 2)

	where, ok := q.Pipeline[0].(*ast.Where)
	require.True(t, ok)
	bin, ok := where.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ">", bin.Op)

	project, ok := q.Pipeline[1].(*ast.Project)
	require.True(t, ok)
	require.Len(t, project.Cols, 1)
	id, ok := project.Cols[0].Expr.(*ast.Identifier)
	require.True(t, ok)
	assert.Equal(t, "name", id.Name)
}

func TestParseLetStatement(t *testing.T) {
	q, diags := Parse(`let minAge = 18; Users | where age > minAge`)
	require.Empty(t, diags)
	require.Len(t, q.Lets, 1)
	assert.Equal(t, "minAge", q.Lets[0].Name)
}

func TestParseTableAlias(t *testing.T) {
	q, diags := Parse(`Users u | project u.name`)
	require.Empty(t, diags)
	assert.Equal(t, "Users", q.Table.Name)
	assert.Equal(t, "u", q.Table.Alias)
}

func TestOperatorPrecedence(t *testing.T) {
	// "a or b and c == d + e * f" should parse as
	// a or (b and (c == (d + (e * f))))
	q, diags := Parse(`T | where a or b and c == d + e * f`)
	require.Empty(t, diags)
	where := q.Pipeline[0].(*ast.Where)
	or := where.Cond.(*ast.Binary)
	require.Equal(t, "or", or.Op)
	_, ok := or.L.(*ast.Identifier)
	require.True(t, ok)

	and := or.R.(*ast.Binary)
	assert.Equal(t, "and", and.Op)

	eq := and.R.(*ast.Binary)
	assert.Equal(t, "==", eq.Op)

	add := eq.R.(*ast.Binary)
	assert.Equal(t, "+", add.Op)

	mul := add.R.(*ast.Binary)
	assert.Equal(t, "*", mul.Op)
}

func TestStringOperatorsBindTighterThanComparison(t *testing.T) {
	q, diags := Parse(`T | where name contains "a" == true`)
	require.Empty(t, diags)
	where := q.Pipeline[0].(*ast.Where)
	eq := where.Cond.(*ast.Binary)
	assert.Equal(t, "==", eq.Op)
	contains := eq.L.(*ast.Binary)
	assert.Equal(t, "contains", contains.Op)
}

func TestUnaryAndParentheses(t *testing.T) {
	q, diags := Parse(`T | where not (a == b)`)
	require.Empty(t, diags)
	where := q.Pipeline[0].(*ast.Where)
	un := where.Cond.(*ast.Unary)
	assert.Equal(t, "not", un.Op)
	_, ok := un.X.(*ast.Binary)
	require.True(t, ok)
}

func TestMemberAndCallAndIndex(t *testing.T) {
	q, diags := Parse(`T | extend x = strlen(a.b[0])`)
	require.Empty(t, diags)
	ext := q.Pipeline[0].(*ast.Extend)
	call := ext.Assigns[0].Expr.(*ast.Call)
	assert.Equal(t, "strlen", call.Name)
	member := call.Args[0].(*ast.Member)
	require.True(t, member.Computed)
	inner := member.Obj.(*ast.Member)
	assert.Equal(t, "b", inner.Prop)
}

func TestCaseExpression(t *testing.T) {
	q, diags := Parse(`T | extend x = case when a > 1 then "big" when a > 0 then "small" else "none" end`)
	require.Empty(t, diags)
	ext := q.Pipeline[0].(*ast.Extend)
	c := ext.Assigns[0].Expr.(*ast.Case)
	require.Len(t, c.Arms, 2)
	require.NotNil(t, c.Else)
}

func TestInAndNotIn(t *testing.T) {
	q, diags := Parse(`T | where a in (1,2,3) | where b !in (4,5)`)
	require.Empty(t, diags)
	in := q.Pipeline[0].(*ast.Where).Cond.(*ast.Binary)
	assert.Equal(t, "in", in.Op)
	arr := in.R.(*ast.Array)
	assert.Len(t, arr.Elems, 3)

	notIn := q.Pipeline[1].(*ast.Where).Cond.(*ast.Binary)
	assert.Equal(t, "!in", notIn.Op)
}

func TestBetween(t *testing.T) {
	q, diags := Parse(`T | where a between (1 .. 10)`)
	require.Empty(t, diags)
	call := q.Pipeline[0].(*ast.Where).Cond.(*ast.Call)
	assert.Equal(t, "between", call.Name)
	require.Len(t, call.Args, 3)
}

func TestSummarizeWithGroupBy(t *testing.T) {
	q, diags := Parse(`T | summarize sum(amount) as total, count() as n by category, region`)
	require.Empty(t, diags)
	s := q.Pipeline[0].(*ast.Summarize)
	require.Len(t, s.Aggs, 2)
	assert.Equal(t, "sum", s.Aggs[0].Fn)
	assert.Equal(t, "total", s.Aggs[0].Alias)
	assert.Nil(t, s.Aggs[1].Arg)
	require.Len(t, s.GroupBy, 2)
}

func TestTopAndOrderAndLimitAndDistinct(t *testing.T) {
	q, diags := Parse(`T | order by a desc, b asc | top 5 by c desc | limit 100 | distinct a, b`)
	require.Empty(t, diags)
	require.Len(t, q.Pipeline, 4)

	order := q.Pipeline[0].(*ast.Order)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].Desc)
	assert.False(t, order.Items[1].Desc)

	top := q.Pipeline[1].(*ast.Top)
	lit := top.N.(*ast.Literal)
	assert.Equal(t, int64(5), lit.Value.Int)
	require.Len(t, top.Items, 1)

	_, ok := q.Pipeline[2].(*ast.Limit)
	require.True(t, ok)

	distinct := q.Pipeline[3].(*ast.Distinct)
	require.Len(t, distinct.Cols, 2)
}

func TestDistinctWithNoColumns(t *testing.T) {
	q, diags := Parse(`T | distinct`)
	require.Empty(t, diags)
	d := q.Pipeline[0].(*ast.Distinct)
	assert.Nil(t, d.Cols)
}

func TestJoinAndUnion(t *testing.T) {
	q, diags := Parse(`T | join left Orders on T.id == Orders.userId | union Archive, Backup`)
	require.Empty(t, diags)
	join := q.Pipeline[0].(*ast.Join)
	assert.Equal(t, ast.LeftJoin, join.Kind)
	assert.Equal(t, "Orders", join.Table.Name)

	union := q.Pipeline[1].(*ast.Union)
	require.Len(t, union.Tables, 2)
}

func TestErrorRecoveryResyncsAtNextPipe(t *testing.T) {
	q, diags := Parse(`T | where | project name`)
	require.NotEmpty(t, diags)
	require.NotNil(t, q)
	// the where operation failed, but the parser resynced at the next "|"
	// and successfully parsed "project name".
	require.Len(t, q.Pipeline, 1)
	_, ok := q.Pipeline[0].(*ast.Project)
	require.True(t, ok)
}

func TestPartialTreeReturnedOnUnrecoverableError(t *testing.T) {
	q, diags := Parse(``)
	require.NotEmpty(t, diags)
	require.NotNil(t, q)
	assert.Empty(t, q.Table.Name)
}

func TestArrayLiteral(t *testing.T) {
	q, diags := Parse(`T | extend x = [1, 2, 3]`)
	require.Empty(t, diags)
	ext := q.Pipeline[0].(*ast.Extend)
	arr := ext.Assigns[0].Expr.(*ast.Array)
	require.Len(t, arr.Elems, 3)
}

func TestDatatypesInLiterals(t *testing.T) {
	q, diags := Parse(`T | where created > datetime(2023-01-01) and dur > 5m and id == 11111111-2222-3333-4444-555555555555`)
	require.Empty(t, diags)
	where := q.Pipeline[0].(*ast.Where)
	and := where.Cond.(*ast.Binary)
	assert.Equal(t, "and", and.Op)
}
