package schema

import (
	"strconv"
	"strings"

	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/token"
)

// Validate resolves q's table/column/alias references and function calls
// against provider, appending a diagnostic for every failure. Validation is
// purely additive (spec §4.3): it never modifies q.
func Validate(q *ast.Query, provider Provider) diagnostics.List {
	v := &validator{provider: provider, functions: make(map[string]Function)}
	for _, f := range provider.GetFunctions() {
		v.functions[lower(f.Name)] = f
	}

	ctx := &valCtx{
		columns:    map[string]ast.DataType{},
		qualifiers: map[string]*Table{},
		lets:       map[string]ast.DataType{},
		functions:  v.functions,
		diags:      &v.diags,
	}

	for _, let := range q.Lets {
		ctx.walk(let.Expr)
		ctx.lets[lower(let.Name)] = DTOf(let.Expr)
	}

	table, ok := provider.GetTable(q.Table.Name)
	if !ok {
		v.diags = append(v.diags, diagnostics.At(diagnostics.Semantic, q.Table.Sp.Start,
			"unknown table %q", q.Table.Name))
		return v.diags
	}
	for _, c := range table.Cols {
		ctx.columns[lower(c.Name)] = c.Type
	}
	ctx.qualifiers[lower(table.Name)] = table
	if q.Table.Alias != "" {
		ctx.qualifiers[lower(q.Table.Alias)] = table
	}

	for _, op := range q.Pipeline {
		v.walkOperation(op, ctx)
	}
	return v.diags
}

type validator struct {
	provider  Provider
	functions map[string]Function
	diags     diagnostics.List
}

func (v *validator) walkOperation(op ast.Operation, ctx *valCtx) {
	switch n := op.(type) {
	case *ast.Where:
		ctx.walk(n.Cond)

	case *ast.Project:
		next := map[string]ast.DataType{}
		for _, col := range n.Cols {
			ctx.walk(col.Expr)
			name := col.Alias
			if name == "" {
				if id, ok := col.Expr.(*ast.Identifier); ok {
					name = id.Name
				}
			}
			if name == "" {
				continue // unnamed computed column; not addressable downstream
			}
			next[lower(name)] = DTOf(col.Expr)
		}
		ctx.columns = next

	case *ast.Extend:
		for _, a := range n.Assigns {
			ctx.walk(a.Expr)
			ctx.columns[lower(a.Name)] = DTOf(a.Expr)
		}

	case *ast.Summarize:
		for _, a := range n.Aggs {
			v.checkAggCall(a, ctx)
		}
		for _, g := range n.GroupBy {
			ctx.walk(g)
		}
		next := map[string]ast.DataType{}
		for _, a := range n.Aggs {
			name := a.Alias
			if name == "" {
				name = a.Fn
			}
			rt := ast.DTUnknown
			if fn, ok := ctx.functions[lower(a.Fn)]; ok {
				rt = fn.ReturnType
			}
			next[lower(name)] = rt
		}
		for _, g := range n.GroupBy {
			if id, ok := g.(*ast.Identifier); ok {
				next[lower(id.Name)] = ctx.columns[lower(id.Name)]
			}
		}
		ctx.columns = next

	case *ast.Order:
		for _, it := range n.Items {
			ctx.walk(it.Expr)
		}

	case *ast.Top:
		ctx.walk(n.N)
		for _, it := range n.Items {
			ctx.walk(it.Expr)
		}

	case *ast.Limit:
		ctx.walk(n.N)

	case *ast.Distinct:
		for _, c := range n.Cols {
			ctx.walk(c)
		}

	case *ast.Join:
		joined, ok := v.provider.GetTable(n.Table.Name)
		if !ok {
			v.diags = append(v.diags, diagnostics.At(diagnostics.Semantic, n.Table.Sp.Start,
				"unknown table %q", n.Table.Name))
			break
		}
		ctx.qualifiers[lower(joined.Name)] = joined
		if n.Table.Alias != "" {
			ctx.qualifiers[lower(n.Table.Alias)] = joined
		}
		ctx.walk(n.On)
		for _, c := range joined.Cols {
			if _, exists := ctx.columns[lower(c.Name)]; !exists {
				ctx.columns[lower(c.Name)] = c.Type
			}
		}

	case *ast.Union:
		for _, t := range n.Tables {
			if _, ok := v.provider.GetTable(t.Name); !ok {
				v.diags = append(v.diags, diagnostics.At(diagnostics.Semantic, t.Sp.Start,
					"unknown table %q", t.Name))
			}
		}
	}
}

func (v *validator) checkAggCall(a ast.Agg, ctx *valCtx) {
	fn, ok := ctx.functions[lower(a.Fn)]
	if !ok {
		v.diags = append(v.diags, diagnostics.New(diagnostics.Semantic, "unknown function %q", a.Fn))
		if a.Arg != nil {
			ctx.walk(a.Arg)
		}
		return
	}
	argc := 0
	if a.Arg != nil {
		argc = 1
	}
	v.checkArity(fn, argc, a.Arg)
	if a.Arg != nil {
		wasSummarize := ctx.insideSummarize
		ctx.insideSummarize = true
		ctx.walk(a.Arg)
		ctx.insideSummarize = wasSummarize
	}
}

func (v *validator) checkArity(fn Function, argc int, anchor ast.Expr) {
	if argc < fn.MinArity || (fn.MaxArity >= 0 && argc > fn.MaxArity) {
		v.diags = append(v.diags, diagnostics.Diagnostic{
			Kind:    diagnostics.Semantic,
			Message: sprintfArity(fn, argc),
			Pos:     anchorPos(anchor),
		})
	}
}

func sprintfArity(fn Function, argc int) string {
	var want string
	switch {
	case fn.MinArity == fn.MaxArity:
		want = strconv.Itoa(fn.MinArity)
	case fn.MaxArity < 0:
		want = "at least " + strconv.Itoa(fn.MinArity)
	default:
		want = "between " + strconv.Itoa(fn.MinArity) + " and " + strconv.Itoa(fn.MaxArity)
	}
	return "\"" + fn.Name + "\" expects " + want + " argument(s), got " + strconv.Itoa(argc)
}

func anchorPos(e ast.Expr) *token.Pos {
	if e == nil {
		return nil
	}
	p := e.Span().Start
	return &p
}

// valCtx carries the per-pipeline-position resolution state: the current
// column set, the name→table map used to resolve qualified member access
// (T.col, alias.col), let-bindings visible throughout the pipeline, the
// function catalog, and whether the walk is inside a Summarize aggregation
// argument (where aggregate functions become legal).
type valCtx struct {
	columns         map[string]ast.DataType
	qualifiers      map[string]*Table
	lets            map[string]ast.DataType
	functions       map[string]Function
	insideSummarize bool
	diags           *diagnostics.List
}

func (c *valCtx) walk(e ast.Expr) ast.DataType {
	if e == nil {
		return ast.DTUnknown
	}
	switch n := e.(type) {
	case *ast.Literal:
		return n.DType

	case *ast.Identifier:
		key := lower(n.Name)
		if t, ok := c.columns[key]; ok {
			return t
		}
		if t, ok := c.lets[key]; ok {
			return t
		}
		if _, ok := c.qualifiers[key]; ok {
			// bare reference to the table/alias name itself (e.g. as a
			// Member.Obj handled below); on its own it has no column type.
			return ast.DTUnknown
		}
		c.report(n.Sp.Start, "unknown identifier %q", n.Name)
		return ast.DTUnknown

	case *ast.Member:
		if id, ok := n.Obj.(*ast.Identifier); ok {
			if tbl, ok := c.qualifiers[lower(id.Name)]; ok {
				if n.Computed {
					c.walk(n.Index)
					return ast.DTUnknown
				}
				if col, ok := tbl.Column(n.Prop); ok {
					return col.Type
				}
				c.report(n.Sp.Start, "unknown column %q on table %q", n.Prop, tbl.Name)
				return ast.DTUnknown
			}
		}
		c.walk(n.Obj)
		if n.Computed {
			c.walk(n.Index)
		}
		return ast.DTUnknown

	case *ast.Unary:
		t := c.walk(n.X)
		if n.Op == "not" {
			return ast.DTBoolean
		}
		return t

	case *ast.Binary:
		l := c.walk(n.L)
		r := c.walk(n.R)
		switch n.Op {
		case "and", "or", "==", "!=", "<", "<=", ">", ">=",
			"in", "!in", "contains", "!contains", "startswith", "!startswith",
			"endswith", "!endswith", "matches", "like", "!like":
			return ast.DTBoolean
		default:
			if l == r {
				return l
			}
			return ast.DTUnknown
		}

	case *ast.Call:
		return c.walkCall(n)

	case *ast.Case:
		for _, arm := range n.Arms {
			c.walk(arm.When)
			c.walk(arm.Then)
		}
		if n.Else != nil {
			return c.walk(n.Else)
		}
		return ast.DTUnknown

	case *ast.Array:
		for _, el := range n.Elems {
			c.walk(el)
		}
		return ast.DTDynamic

	default:
		return ast.DTUnknown
	}
}

func (c *valCtx) walkCall(n *ast.Call) ast.DataType {
	fn, ok := c.functions[lower(n.Name)]
	if !ok {
		c.report(n.Sp.Start, "unknown function %q", n.Name)
		for _, a := range n.Args {
			c.walk(a)
		}
		return ast.DTUnknown
	}
	if fn.Aggregate && !c.insideSummarize {
		c.report(n.Sp.Start, "aggregate function %q is only allowed inside summarize", n.Name)
	}
	argc := len(n.Args)
	if argc < fn.MinArity || (fn.MaxArity >= 0 && argc > fn.MaxArity) {
		c.report(n.Sp.Start, "%s", sprintfArity(fn, argc))
	}
	argTypes := make([]ast.DataType, argc)
	for i, a := range n.Args {
		argTypes[i] = c.walk(a)
	}
	for i, want := range fn.ArgTypes {
		if i >= len(argTypes) {
			break
		}
		if want != ast.DTUnknown && argTypes[i] != ast.DTUnknown && want != argTypes[i] {
			c.report(n.Sp.Start, "%q argument %d: expected %s, got %s", n.Name, i+1, want, argTypes[i])
		}
	}
	return fn.ReturnType
}

func (c *valCtx) report(pos token.Pos, format string, args ...interface{}) {
	*c.diags = append(*c.diags, diagnostics.At(diagnostics.Semantic, pos, format, args...))
}

// DTOf returns a literal's declared type and DTUnknown for every other
// expression; identifiers are not resolved against the column set, so a
// Project/Extend column defined by a non-literal expression is DTUnknown.
func DTOf(e ast.Expr) ast.DataType {
	switch n := e.(type) {
	case *ast.Literal:
		return n.DType
	default:
		return ast.DTUnknown
	}
}

func lower(s string) string { return strings.ToLower(s) }
