package optimize

import (
	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/token"
)

// foldExpr folds binary/unary nodes whose operands are all literals.
// Folding preserves types (spec invariant: "narrows, never widens"); a
// division by zero is deliberately left unfolded for the backend to reject.
// It returns the possibly-rewritten expression and whether anything
// changed, so callers that thread pipelines through unchanged can skip
// rebuilding nodes that folded to themselves.
func foldExpr(e ast.Expr) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.Unary:
		x, changed := foldExpr(n.X)
		if lit, ok := x.(*ast.Literal); ok {
			if folded, ok := foldUnary(n.Op, lit); ok {
				return folded, true
			}
		}
		if changed {
			return &ast.Unary{Sp: n.Sp, Op: n.Op, X: x}, true
		}
		return n, false

	case *ast.Binary:
		l, lc := foldExpr(n.L)
		r, rc := foldExpr(n.R)
		litL, okL := l.(*ast.Literal)
		litR, okR := r.(*ast.Literal)
		if okL && okR {
			if folded, ok := foldBinary(n.Op, litL, litR); ok {
				return folded, true
			}
		}
		if lc || rc {
			return &ast.Binary{Sp: n.Sp, Op: n.Op, L: l, R: r}, true
		}
		return n, false

	case *ast.Member:
		obj, changed := foldExpr(n.Obj)
		var idx ast.Expr
		idxChanged := false
		if n.Computed {
			idx, idxChanged = foldExpr(n.Index)
		}
		if changed || idxChanged {
			out := &ast.Member{Sp: n.Sp, Obj: obj, Prop: n.Prop, Computed: n.Computed}
			if n.Computed {
				out.Index = idx
			}
			return out, true
		}
		return n, false

	case *ast.Call:
		args := make([]ast.Expr, len(n.Args))
		any := false
		for i, a := range n.Args {
			f, changed := foldExpr(a)
			args[i] = f
			any = any || changed
		}
		if any {
			return &ast.Call{Sp: n.Sp, Name: n.Name, Args: args}, true
		}
		return n, false

	case *ast.Case:
		arms := make([]ast.CaseArm, len(n.Arms))
		any := false
		for i, arm := range n.Arms {
			w, wc := foldExpr(arm.When)
			t, tc := foldExpr(arm.Then)
			arms[i] = ast.CaseArm{When: w, Then: t}
			any = any || wc || tc
		}
		var elseExpr ast.Expr
		elseChanged := false
		if n.Else != nil {
			elseExpr, elseChanged = foldExpr(n.Else)
		}
		if any || elseChanged {
			out := &ast.Case{Sp: n.Sp, Arms: arms}
			if n.Else != nil {
				out.Else = elseExpr
			}
			return out, true
		}
		return n, false

	case *ast.Array:
		elems := make([]ast.Expr, len(n.Elems))
		any := false
		for i, el := range n.Elems {
			f, changed := foldExpr(el)
			elems[i] = f
			any = any || changed
		}
		if any {
			return &ast.Array{Sp: n.Sp, Elems: elems}, true
		}
		return n, false

	default:
		return e, false
	}
}

func foldUnary(op string, x *ast.Literal) (*ast.Literal, bool) {
	switch op {
	case "not":
		if x.Value.Kind == token.BooleanValue {
			return litBool(x.Sp, !x.Value.Bool), true
		}
	case "-":
		switch x.Value.Kind {
		case token.IntegerValue:
			return litInt(x.Sp, -x.Value.Int), true
		case token.FloatValue:
			return litFloat(x.Sp, -x.Value.Float), true
		}
	case "+":
		switch x.Value.Kind {
		case token.IntegerValue, token.FloatValue:
			return x, true
		}
	}
	return nil, false
}

func foldBinary(op string, l, r *ast.Literal) (*ast.Literal, bool) {
	switch op {
	case "and":
		if lb, rb, ok := bothBool(l, r); ok {
			return litBool(l.Sp, lb && rb), true
		}
	case "or":
		if lb, rb, ok := bothBool(l, r); ok {
			return litBool(l.Sp, lb || rb), true
		}
	case "+", "-", "*", "%", "/":
		return foldArith(op, l, r)
	case "==", "!=", "<", "<=", ">", ">=":
		return foldCompare(op, l, r)
	}
	return nil, false
}

func bothBool(l, r *ast.Literal) (bool, bool, bool) {
	if l.Value.Kind == token.BooleanValue && r.Value.Kind == token.BooleanValue {
		return l.Value.Bool, r.Value.Bool, true
	}
	return false, false, false
}

func numeric(v token.Value) (f float64, isFloat bool, ok bool) {
	switch v.Kind {
	case token.IntegerValue:
		return float64(v.Int), false, true
	case token.FloatValue:
		return v.Float, true, true
	}
	return 0, false, false
}

func foldArith(op string, l, r *ast.Literal) (*ast.Literal, bool) {
	lf, lFloat, lok := numeric(l.Value)
	rf, rFloat, rok := numeric(r.Value)
	if !lok || !rok {
		return nil, false
	}
	if op == "/" && rf == 0 {
		return nil, false // left for the backend to reject
	}
	isFloat := lFloat || rFloat
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "%":
		if isFloat {
			return nil, false // modulo kept integer-only; backend decides float semantics
		}
		out = float64(int64(lf) % int64(rf))
	case "/":
		out = lf / rf
		if !isFloat {
			// integer division with integer operands folds to an integer
			// only when it has no remainder; otherwise it is left unfolded
			// rather than widened to a float.
			if int64(lf)%int64(rf) != 0 {
				return nil, false
			}
			out = float64(int64(lf) / int64(rf))
		}
	}
	if isFloat {
		return litFloat(l.Sp, out), true
	}
	return litInt(l.Sp, int64(out)), true
}

func foldCompare(op string, l, r *ast.Literal) (*ast.Literal, bool) {
	var cmp int
	switch {
	case l.Value.Kind == token.StringValue && r.Value.Kind == token.StringValue:
		cmp = compareStrings(l.Value.Str, r.Value.Str)
	case l.Value.Kind == token.BooleanValue && r.Value.Kind == token.BooleanValue:
		cmp = compareBools(l.Value.Bool, r.Value.Bool)
	default:
		lf, _, lok := numeric(l.Value)
		rf, _, rok := numeric(r.Value)
		if !lok || !rok {
			return nil, false
		}
		cmp = compareFloats(lf, rf)
	}
	var out bool
	switch op {
	case "==":
		out = cmp == 0
	case "!=":
		out = cmp != 0
	case "<":
		out = cmp < 0
	case "<=":
		out = cmp <= 0
	case ">":
		out = cmp > 0
	case ">=":
		out = cmp >= 0
	}
	return litBool(l.Sp, out), true
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a && b:
		return -1
	default:
		return 1
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func litBool(sp ast.Span, v bool) *ast.Literal {
	return &ast.Literal{Sp: sp, DType: ast.DTBoolean, Value: token.Value{Kind: token.BooleanValue, Bool: v}}
}

func litInt(sp ast.Span, v int64) *ast.Literal {
	return &ast.Literal{Sp: sp, DType: ast.DTInteger, Value: token.Value{Kind: token.IntegerValue, Int: v}}
}

func litFloat(sp ast.Span, v float64) *ast.Literal {
	return &ast.Literal{Sp: sp, DType: ast.DTFloat, Value: token.Value{Kind: token.FloatValue, Float: v}}
}
