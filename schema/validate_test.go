package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/parser"
)

func usersProvider() *StaticProvider {
	return NewStaticProvider([]*Table{
		{
			Name: "Users",
			Cols: []Column{
				{Name: "id", Type: ast.DTInteger},
				{Name: "name", Type: ast.DTString},
				{Name: "age", Type: ast.DTInteger},
			},
		},
		{
			Name: "Orders",
			Cols: []Column{
				{Name: "id", Type: ast.DTInteger},
				{Name: "userId", Type: ast.DTInteger},
				{Name: "amount", Type: ast.DTFloat},
			},
		},
	}, DefaultFunctions(), DefaultOperators())
}

func mustParse(t *testing.T, q string) *ast.Query {
	t.Helper()
	query, diags := parser.Parse(q)
	require.Empty(t, diags)
	require.NotNil(t, query)
	return query
}

func TestValidateKnownTableAndColumns(t *testing.T) {
	q := mustParse(t, `Users | where age > 18 | project name`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}

func TestValidateUnknownTable(t *testing.T) {
	q := mustParse(t, `Missing | project x`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Equal(t, "semantic", string(diags[0].Kind))
}

func TestValidateUnknownColumn(t *testing.T) {
	q := mustParse(t, `Users | where bogus > 1`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "bogus")
}

func TestValidateExtendThenProjectSeesNewColumn(t *testing.T) {
	q := mustParse(t, `Users | extend doubled = age | project doubled`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}

func TestValidateAggregateOutsideSummarizeRejected(t *testing.T) {
	q := mustParse(t, `Users | where sum(age) > 10`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "sum")
}

func TestValidateSummarizeThenOrderByAggAlias(t *testing.T) {
	q := mustParse(t, `Users | summarize sum(age) as total by name | order by total desc`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}

func TestValidateUnknownFunction(t *testing.T) {
	q := mustParse(t, `Users | extend x = frobnicate(name)`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "frobnicate")
}

func TestValidateArityMismatch(t *testing.T) {
	q := mustParse(t, `Users | extend x = strlen(name, name)`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "strlen")
}

func TestValidateJoinResolvesBothTables(t *testing.T) {
	q := mustParse(t, `Users | join left Orders on Users.id == Orders.userId | project name`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}

func TestValidateJoinUnknownTable(t *testing.T) {
	q := mustParse(t, `Users | join left Ghost on Users.id == Ghost.userId`)
	diags := Validate(q, usersProvider())
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Ghost")
}

func TestValidateTableAlias(t *testing.T) {
	q := mustParse(t, `Users u | where u.age > 18 | project u.name`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}

func TestValidateLetBindingVisibleInWhere(t *testing.T) {
	q := mustParse(t, `let minAge = 18; Users | where age > minAge`)
	diags := Validate(q, usersProvider())
	assert.Empty(t, diags)
}
