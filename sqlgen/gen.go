package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/vippsas/kqlcore/ast"
)

// ExecutionContext carries the per-request scoping the generator wraps the
// query with: the mandatory tenant filter, an optional time-range filter,
// and an optional maximum-row-count cap (spec §4.5, §4.8).
type ExecutionContext struct {
	Tenant      string
	TimeRangeLo *time.Time
	TimeRangeHi *time.Time
	MaxRows     int64
}

// UnsupportedFunctionError is returned when the AST calls a function the
// generator has no SQL rendering for (spec §4.5's "Failure mode").
type UnsupportedFunctionError struct {
	Name string
}

func (e *UnsupportedFunctionError) Error() string {
	return fmt.Sprintf("sqlgen: unsupported function %q", e.Name)
}

// Result is the generator's output: a parameterized SQL string and its
// positional parameter vector, in bind order.
type Result struct {
	SQL    string
	Params []interface{}
}

type generator struct {
	dialect    Dialect
	params     []interface{}
	tableName  string
	tableAlias string
	joinName   string
	joinAlias  string
	err        error
}

// Generate translates q (already optimized and validated) into parameterized
// SQL for dialect, scoped by ctx's tenant, time range, and row cap.
func Generate(q *ast.Query, dialect Dialect, ctx ExecutionContext) (Result, error) {
	g := &generator{dialect: dialect, tableName: q.Table.Name, tableAlias: q.Table.Alias}

	base := g.emitLeaf(q.Table, ctx.Tenant)
	for _, op := range q.Pipeline {
		base = g.emitOp(base, op)
		if g.err != nil {
			return Result{}, g.err
		}
	}
	base = g.emitOuterScope(base, ctx)

	return Result{SQL: base, Params: g.params}, nil
}

func (g *generator) bind(v interface{}) string {
	g.params = append(g.params, v)
	return g.dialect.Placeholder(len(g.params))
}

func (g *generator) qualifiedTable(t ast.TableRef) string {
	return g.dialect.QuoteIdent(t.Name)
}

// emitLeaf wraps the leaf table scan with the mandatory tenant filter, tenant
// always bound as the first parameter (spec §4.5: "hard invariant").
func (g *generator) emitLeaf(t ast.TableRef, tenant string) string {
	tenantParam := g.bind(tenant)
	return fmt.Sprintf("(SELECT * FROM %s WHERE tenant = %s) base", g.qualifiedTable(t), tenantParam)
}

func (g *generator) emitOp(base string, op ast.Operation) string {
	switch n := op.(type) {
	case *ast.Where:
		cond := g.emitExpr(n.Cond)
		return fmt.Sprintf("(SELECT * FROM %s WHERE %s) base", base, cond)

	case *ast.Project:
		cols := make([]string, len(n.Cols))
		for i, c := range n.Cols {
			cols[i] = g.emitProjectCol(c)
		}
		return fmt.Sprintf("(SELECT %s FROM %s) base", strings.Join(cols, ", "), base)

	case *ast.Extend:
		assigns := make([]string, len(n.Assigns))
		for i, a := range n.Assigns {
			assigns[i] = fmt.Sprintf("%s AS %s", g.emitExpr(a.Expr), g.dialect.QuoteIdent(a.Name))
		}
		return fmt.Sprintf("(SELECT *, %s FROM %s) base", strings.Join(assigns, ", "), base)

	case *ast.Summarize:
		return g.emitSummarize(base, n)

	case *ast.Order:
		return fmt.Sprintf("(SELECT * FROM %s ORDER BY %s) base", base, g.emitOrderItems(n.Items))

	case *ast.Top:
		orderBy := ""
		if len(n.Items) > 0 {
			orderBy = " ORDER BY " + g.emitOrderItems(n.Items)
		}
		return fmt.Sprintf("(SELECT * FROM %s%s LIMIT %s) base", base, orderBy, g.emitExpr(n.N))

	case *ast.Limit:
		return fmt.Sprintf("(SELECT * FROM %s LIMIT %s) base", base, g.emitExpr(n.N))

	case *ast.Distinct:
		cols := "*"
		if len(n.Cols) > 0 {
			names := make([]string, len(n.Cols))
			for i, c := range n.Cols {
				names[i] = g.emitExpr(c)
			}
			cols = strings.Join(names, ", ")
		}
		return fmt.Sprintf("(SELECT DISTINCT %s FROM %s) base", cols, base)

	case *ast.Join:
		return g.emitJoin(base, n)

	case *ast.Union:
		return g.emitUnion(base, n)

	default:
		g.err = fmt.Errorf("sqlgen: unhandled operation %T", op)
		return base
	}
}

func (g *generator) emitProjectCol(c ast.ProjectCol) string {
	expr := g.emitExpr(c.Expr)
	if c.Alias != "" {
		return fmt.Sprintf("%s AS %s", expr, g.dialect.QuoteIdent(c.Alias))
	}
	return expr
}

func (g *generator) emitOrderItems(items []ast.OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		dir := "ASC"
		if it.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", g.emitExpr(it.Expr), dir)
	}
	return strings.Join(parts, ", ")
}

func (g *generator) emitSummarize(base string, n *ast.Summarize) string {
	var selects []string
	for _, gb := range n.GroupBy {
		selects = append(selects, g.emitExpr(gb))
	}
	for _, a := range n.Aggs {
		fn := strings.ToLower(a.Fn)
		sqlFn, ok := aggFunc[fn]
		if !ok && fn != "dcount" {
			g.err = &UnsupportedFunctionError{Name: a.Fn}
			return base
		}
		var expr string
		switch {
		case fn == "dcount":
			expr = fmt.Sprintf("COUNT(DISTINCT %s)", g.emitExpr(a.Arg))
		case a.Arg == nil:
			expr = sqlFn + "(*)"
		default:
			expr = fmt.Sprintf("%s(%s)", sqlFn, g.emitExpr(a.Arg))
		}
		name := a.Alias
		if name == "" {
			name = a.Fn
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expr, g.dialect.QuoteIdent(name)))
	}
	groupClause := ""
	if len(n.GroupBy) > 0 {
		groupExprs := make([]string, len(n.GroupBy))
		for i, gb := range n.GroupBy {
			groupExprs[i] = g.emitExpr(gb)
		}
		groupClause = " GROUP BY " + strings.Join(groupExprs, ", ")
	}
	return fmt.Sprintf("(SELECT %s FROM %s%s) base", strings.Join(selects, ", "), base, groupClause)
}

func (g *generator) emitJoin(base string, n *ast.Join) string {
	g.joinName = n.Table.Name
	g.joinAlias = n.Table.Alias
	kind := joinKindSQL(n.Kind)
	on := g.emitExpr(n.On)
	g.joinName, g.joinAlias = "", ""
	return fmt.Sprintf("(SELECT * FROM %s %s JOIN %s AS joined ON %s) base",
		base, kind, g.qualifiedTable(n.Table), on)
}

func joinKindSQL(k ast.JoinKind) string {
	switch k {
	case ast.LeftJoin:
		return "LEFT"
	case ast.RightJoin:
		return "RIGHT"
	case ast.FullJoin:
		return "FULL OUTER"
	default:
		return "INNER"
	}
}

// emitUnion concatenates rows from base with a scan of each unioned table;
// KQL union does not deduplicate, so UNION ALL is used throughout.
func (g *generator) emitUnion(base string, n *ast.Union) string {
	var b strings.Builder
	b.WriteString("(SELECT * FROM ")
	b.WriteString(base)
	for _, t := range n.Tables {
		b.WriteString(" UNION ALL SELECT * FROM ")
		b.WriteString(g.qualifiedTable(t))
	}
	b.WriteString(") base")
	return b.String()
}

// emitOuterScope applies the execution context's time-range and row-cap
// filters as the outermost wrapping, per spec §4.5. Every emitLeaf/emitOp
// call leaves base parenthesized and aliased as "base" for composability as
// a FROM-clause fragment; the final statement has to shed that wrapper
// rather than carry it into the top level.
func (g *generator) emitOuterScope(base string, ctx ExecutionContext) string {
	if ctx.TimeRangeLo != nil && ctx.TimeRangeHi != nil {
		lo := g.bind(*ctx.TimeRangeLo)
		hi := g.bind(*ctx.TimeRangeHi)
		base = fmt.Sprintf("(SELECT * FROM %s WHERE timestamp BETWEEN %s AND %s) base", base, lo, hi)
	}
	if ctx.MaxRows > 0 {
		limit := g.bind(ctx.MaxRows)
		return fmt.Sprintf("SELECT * FROM %s LIMIT %s", base, limit)
	}
	return unwrapBaseAlias(base)
}

// unwrapBaseAlias strips the "(...) base" wrapping a subquery fragment
// carries so it can stand as a top-level statement on its own.
func unwrapBaseAlias(s string) string {
	const suffix = ") base"
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, suffix) {
		return s[1 : len(s)-len(suffix)]
	}
	return s
}
