package sqlgen

import (
	"fmt"
	"strings"

	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/token"
)

// scalarFunc maps a KQL scalar function name to a SQL rendering template
// applied over its already-emitted argument SQL strings.
var scalarFunc = map[string]func(args []string) string{
	"strlen":    func(a []string) string { return fmt.Sprintf("LENGTH(%s)", a[0]) },
	"tolower":   func(a []string) string { return fmt.Sprintf("LOWER(%s)", a[0]) },
	"toupper":   func(a []string) string { return fmt.Sprintf("UPPER(%s)", a[0]) },
	"substring": func(a []string) string { return fmt.Sprintf("SUBSTRING(%s FROM %s FOR %s)", a[0], a[1], a[2]) },
	"trim":      func(a []string) string { return fmt.Sprintf("TRIM(%s)", a[0]) },
	"tostring":  func(a []string) string { return fmt.Sprintf("CAST(%s AS VARCHAR)", a[0]) },
	"toint":     func(a []string) string { return fmt.Sprintf("CAST(%s AS INTEGER)", a[0]) },
	"now":       func(a []string) string { return "CURRENT_TIMESTAMP" },
	"ago":       func(a []string) string { return fmt.Sprintf("(CURRENT_TIMESTAMP - %s)", a[0]) },
}

func (g *generator) emitExpr(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Literal:
		return g.emitLiteral(n)
	case *ast.Identifier:
		return g.emitIdentifier(n.Name)
	case *ast.Member:
		return g.emitMember(n)
	case *ast.Unary:
		return g.emitUnary(n)
	case *ast.Binary:
		return g.emitBinary(n)
	case *ast.Call:
		return g.emitCall(n)
	case *ast.Case:
		return g.emitCase(n)
	case *ast.Array:
		return g.emitArray(n)
	default:
		g.err = fmt.Errorf("sqlgen: unhandled expression %T", e)
		return ""
	}
}

func (g *generator) emitLiteral(n *ast.Literal) string {
	switch n.Value.Kind {
	case token.StringValue:
		return g.bind(n.Value.Str)
	case token.IntegerValue:
		return g.bind(n.Value.Int)
	case token.FloatValue:
		return g.bind(n.Value.Float)
	case token.BooleanValue:
		return g.bind(n.Value.Bool)
	case token.NullValue:
		return "NULL"
	case token.DatetimeValue:
		return g.bind(n.Value.Datetime)
	case token.TimespanValue:
		return g.bind(n.Value.Timespan)
	case token.GuidValue:
		return g.bind(n.Value.Guid)
	default:
		g.err = fmt.Errorf("sqlgen: literal with no value kind")
		return ""
	}
}

// emitIdentifier renders a bare column reference against the current row
// set, which is always addressable as "base" at this point in the pipeline
// (a join's right side is only reachable through a qualified member access).
func (g *generator) emitIdentifier(name string) string {
	return "base." + g.dialect.QuoteIdent(name)
}

// emitMember resolves a qualified reference. If the qualifier names the
// pipeline's source table (or its alias), it addresses "base"; if it names
// the most recently opened join's table (or its alias), it addresses
// "joined". Any other qualifier is treated as dynamic-column field access
// into a DTDynamic value rather than a table qualifier.
func (g *generator) emitMember(n *ast.Member) string {
	if n.Computed {
		return fmt.Sprintf("(%s)[%s]", g.emitExpr(n.Obj), g.emitExpr(n.Index))
	}
	if id, ok := n.Obj.(*ast.Identifier); ok {
		switch {
		case equalFoldName(id.Name, g.tableName) || equalFoldName(id.Name, g.tableAlias):
			return "base." + g.dialect.QuoteIdent(n.Prop)
		case equalFoldName(id.Name, g.joinName) || equalFoldName(id.Name, g.joinAlias):
			return "joined." + g.dialect.QuoteIdent(n.Prop)
		}
	}
	return g.emitDynamicField(n)
}

func (g *generator) emitDynamicField(n *ast.Member) string {
	obj := g.emitExpr(n.Obj)
	if g.dialect == MSSQL {
		return fmt.Sprintf("JSON_VALUE(%s, '$.%s')", obj, n.Prop)
	}
	return fmt.Sprintf("(%s ->> %s)", obj, g.bind(n.Prop))
}

func equalFoldName(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

func (g *generator) emitUnary(n *ast.Unary) string {
	switch n.Op {
	case "not":
		return fmt.Sprintf("(NOT %s)", g.emitExpr(n.X))
	case "-":
		return fmt.Sprintf("(-%s)", g.emitExpr(n.X))
	case "+":
		return g.emitExpr(n.X)
	default:
		g.err = fmt.Errorf("sqlgen: unsupported unary operator %q", n.Op)
		return ""
	}
}

func (g *generator) emitBinary(n *ast.Binary) string {
	switch n.Op {
	case "contains", "!contains", "startswith", "!startswith", "endswith", "!endswith", "matches", "!matches", "like", "!like":
		return g.emitStringOp(n.Op, n.L, n.R)
	case "in", "!in":
		return g.emitInOp(n.Op, n.L, n.R)
	default:
		sqlOp, ok := sqlOperator[n.Op]
		if !ok {
			g.err = fmt.Errorf("sqlgen: unsupported operator %q", n.Op)
			return ""
		}
		return fmt.Sprintf("(%s %s %s)", g.emitExpr(n.L), sqlOp, g.emitExpr(n.R))
	}
}

func (g *generator) emitInOp(op string, l, r ast.Expr) string {
	arr, ok := r.(*ast.Array)
	if !ok {
		g.err = fmt.Errorf("sqlgen: %q requires a literal list", op)
		return ""
	}
	items := make([]string, len(arr.Elems))
	for i, el := range arr.Elems {
		items[i] = g.emitExpr(el)
	}
	return fmt.Sprintf("%s %s (%s)", g.emitExpr(l), sqlOperator[op], strings.Join(items, ", "))
}

// emitStringOp renders KQL's string-match operators per spec §4.5's table.
// matches/like pass the right operand through unchanged; contains/
// startswith/endswith wrap a literal right operand in SQL wildcards at bind
// time, or concatenate wildcards around a computed right operand so no
// interpolation is needed either way.
func (g *generator) emitStringOp(op string, l, r ast.Expr) string {
	negated := strings.HasPrefix(op, "!")
	base := strings.TrimPrefix(op, "!")
	lSQL := g.emitExpr(l)

	var cmp string
	switch base {
	case "contains":
		cmp = fmt.Sprintf("%s %s %s", lSQL, g.caseInsensitiveLike(), g.wildcard(r, true, true))
	case "startswith":
		cmp = fmt.Sprintf("%s %s %s", lSQL, g.caseInsensitiveLike(), g.wildcard(r, false, true))
	case "endswith":
		cmp = fmt.Sprintf("%s %s %s", lSQL, g.caseInsensitiveLike(), g.wildcard(r, true, false))
	case "matches":
		cmp = fmt.Sprintf("%s ~* %s", lSQL, g.emitExpr(r))
	case "like":
		cmp = fmt.Sprintf("%s LIKE %s", lSQL, g.emitExpr(r))
	default:
		g.err = fmt.Errorf("sqlgen: unsupported string operator %q", op)
		return ""
	}
	if negated {
		return fmt.Sprintf("(NOT %s)", cmp)
	}
	return fmt.Sprintf("(%s)", cmp)
}

func (g *generator) caseInsensitiveLike() string {
	if g.dialect == MSSQL {
		return "LIKE"
	}
	return "ILIKE"
}

// wildcard builds the LIKE/ILIKE pattern for a contains/startswith/endswith
// right operand. A literal operand is folded into a single bound parameter;
// a computed operand is concatenated with the wildcard characters at query
// time since its value isn't known at generation time.
func (g *generator) wildcard(r ast.Expr, leading, trailing bool) string {
	pre, suf := "", ""
	if leading {
		pre = "%"
	}
	if trailing {
		suf = "%"
	}
	if lit, ok := r.(*ast.Literal); ok && lit.Value.Kind == token.StringValue {
		return g.bind(pre + lit.Value.Str + suf)
	}
	concat := g.concatOp()
	parts := []string{}
	if pre != "" {
		parts = append(parts, g.bind(pre))
	}
	parts = append(parts, g.emitExpr(r))
	if suf != "" {
		parts = append(parts, g.bind(suf))
	}
	return "(" + strings.Join(parts, concat) + ")"
}

func (g *generator) concatOp() string {
	if g.dialect == MSSQL {
		return " + "
	}
	return " || "
}

func (g *generator) emitCall(n *ast.Call) string {
	name := strings.ToLower(n.Name)
	if name == "between" {
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", g.emitExpr(n.Args[0]), g.emitExpr(n.Args[1]), g.emitExpr(n.Args[2]))
	}
	fn, ok := scalarFunc[name]
	if !ok {
		g.err = &UnsupportedFunctionError{Name: n.Name}
		return ""
	}
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = g.emitExpr(a)
	}
	return fn(args)
}

func (g *generator) emitCase(n *ast.Case) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, arm := range n.Arms {
		fmt.Fprintf(&b, " WHEN %s THEN %s", g.emitExpr(arm.When), g.emitExpr(arm.Then))
	}
	if n.Else != nil {
		fmt.Fprintf(&b, " ELSE %s", g.emitExpr(n.Else))
	}
	b.WriteString(" END")
	return b.String()
}

func (g *generator) emitArray(n *ast.Array) string {
	items := make([]string, len(n.Elems))
	for i, el := range n.Elems {
		items[i] = g.emitExpr(el)
	}
	return "(" + strings.Join(items, ", ") + ")"
}
