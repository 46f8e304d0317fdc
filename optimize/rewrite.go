package optimize

import "github.com/vippsas/kqlcore/ast"

func isBarrier(op ast.Operation) bool {
	switch op.(type) {
	case *ast.Summarize, *ast.Join, *ast.Union:
		return true
	default:
		return false
	}
}

// referencedIdentifiers collects every bare Identifier.Name appearing
// anywhere in e, lower-cased so callers can compare it against other
// lower-cased name sets. Member.Prop accesses are also collected under their bare
// name, since a Member's Obj is usually the table/alias qualifier rather
// than a separate data dependency.
func referencedIdentifiers(e ast.Expr, out map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Identifier:
		out[lowerName(n.Name)] = true
	case *ast.Member:
		referencedIdentifiers(n.Obj, out)
		if n.Computed {
			referencedIdentifiers(n.Index, out)
		} else {
			out[lowerName(n.Prop)] = true
		}
	case *ast.Unary:
		referencedIdentifiers(n.X, out)
	case *ast.Binary:
		referencedIdentifiers(n.L, out)
		referencedIdentifiers(n.R, out)
	case *ast.Call:
		for _, a := range n.Args {
			referencedIdentifiers(a, out)
		}
	case *ast.Case:
		for _, arm := range n.Arms {
			referencedIdentifiers(arm.When, out)
			referencedIdentifiers(arm.Then, out)
		}
		referencedIdentifiers(n.Else, out)
	case *ast.Array:
		for _, el := range n.Elems {
			referencedIdentifiers(el, out)
		}
	}
}

func lowerName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// exprsInOp enumerates every expression an operation directly references,
// used by dead-code elimination's liveness pass.
func exprsInOp(op ast.Operation) []ast.Expr {
	switch n := op.(type) {
	case *ast.Where:
		return []ast.Expr{n.Cond}
	case *ast.Project:
		es := make([]ast.Expr, len(n.Cols))
		for i, c := range n.Cols {
			es[i] = c.Expr
		}
		return es
	case *ast.Extend:
		es := make([]ast.Expr, len(n.Assigns))
		for i, a := range n.Assigns {
			es[i] = a.Expr
		}
		return es
	case *ast.Summarize:
		var es []ast.Expr
		for _, a := range n.Aggs {
			if a.Arg != nil {
				es = append(es, a.Arg)
			}
		}
		es = append(es, n.GroupBy...)
		return es
	case *ast.Order:
		es := make([]ast.Expr, len(n.Items))
		for i, it := range n.Items {
			es[i] = it.Expr
		}
		return es
	case *ast.Top:
		es := []ast.Expr{n.N}
		for _, it := range n.Items {
			es = append(es, it.Expr)
		}
		return es
	case *ast.Limit:
		return []ast.Expr{n.N}
	case *ast.Distinct:
		return n.Cols
	case *ast.Join:
		return []ast.Expr{n.On}
	default:
		return nil
	}
}

// mapExprsInOp returns a copy of op with every directly-referenced
// expression replaced via f, used to thread constant-folded expressions
// back into the pipeline.
func mapExprsInOp(op ast.Operation, f func(ast.Expr) ast.Expr) ast.Operation {
	switch n := op.(type) {
	case *ast.Where:
		return &ast.Where{Sp: n.Sp, Cond: f(n.Cond)}
	case *ast.Project:
		cols := make([]ast.ProjectCol, len(n.Cols))
		for i, c := range n.Cols {
			cols[i] = ast.ProjectCol{Expr: f(c.Expr), Alias: c.Alias}
		}
		return &ast.Project{Sp: n.Sp, Cols: cols}
	case *ast.Extend:
		assigns := make([]ast.ExtendAssign, len(n.Assigns))
		for i, a := range n.Assigns {
			assigns[i] = ast.ExtendAssign{Name: a.Name, Expr: f(a.Expr)}
		}
		return &ast.Extend{Sp: n.Sp, Assigns: assigns}
	case *ast.Summarize:
		aggs := make([]ast.Agg, len(n.Aggs))
		for i, a := range n.Aggs {
			arg := a.Arg
			if arg != nil {
				arg = f(arg)
			}
			aggs[i] = ast.Agg{Fn: a.Fn, Arg: arg, Alias: a.Alias}
		}
		var groupBy []ast.Expr
		for _, g := range n.GroupBy {
			groupBy = append(groupBy, f(g))
		}
		return &ast.Summarize{Sp: n.Sp, Aggs: aggs, GroupBy: groupBy}
	case *ast.Order:
		items := make([]ast.OrderItem, len(n.Items))
		for i, it := range n.Items {
			items[i] = ast.OrderItem{Expr: f(it.Expr), Desc: it.Desc}
		}
		return &ast.Order{Sp: n.Sp, Items: items}
	case *ast.Top:
		items := make([]ast.OrderItem, len(n.Items))
		for i, it := range n.Items {
			items[i] = ast.OrderItem{Expr: f(it.Expr), Desc: it.Desc}
		}
		return &ast.Top{Sp: n.Sp, N: f(n.N), Items: items}
	case *ast.Limit:
		return &ast.Limit{Sp: n.Sp, N: f(n.N)}
	case *ast.Distinct:
		if n.Cols == nil {
			return n
		}
		cols := make([]ast.Expr, len(n.Cols))
		for i, c := range n.Cols {
			cols[i] = f(c)
		}
		return &ast.Distinct{Sp: n.Sp, Cols: cols}
	case *ast.Join:
		return &ast.Join{Sp: n.Sp, Kind: n.Kind, Table: n.Table, On: f(n.On)}
	default:
		return op
	}
}

// foldConstants folds every literal-only subexpression in the pipeline
// (rewrite #1). A Where whose condition folds to the literal `true` is
// dropped entirely, per spec §4.4's worked example ("where 1+2 == 3" →
// "where true" → optimizer may drop the operation).
func foldConstants(pipeline []ast.Operation) ([]ast.Operation, []Note) {
	var notes []Note
	out := make([]ast.Operation, 0, len(pipeline))
	for _, op := range pipeline {
		changed := false
		next := mapExprsInOp(op, func(e ast.Expr) ast.Expr {
			f, c := foldExpr(e)
			changed = changed || c
			return f
		})
		if w, ok := next.(*ast.Where); ok {
			if lit, ok := w.Cond.(*ast.Literal); ok && lit.DType == ast.DTBoolean && lit.Value.Bool {
				notes = append(notes, note("constant-folded-filter-dropped",
					"where clause folded to a constant true and was removed"))
				continue
			}
		}
		if changed {
			notes = append(notes, note("constant-folded", "folded a constant subexpression in a %T", op))
		}
		out = append(out, next)
	}
	return out, notes
}

// coalesceWhere merges consecutive Where operations into a single
// conjunctive filter (rewrite #2). It never needs to cross a Summarize or
// Join boundary because a run of consecutive Where nodes can't contain one.
func coalesceWhere(pipeline []ast.Operation) ([]ast.Operation, []Note) {
	var notes []Note
	out := make([]ast.Operation, 0, len(pipeline))
	i := 0
	for i < len(pipeline) {
		w, ok := pipeline[i].(*ast.Where)
		if !ok {
			out = append(out, pipeline[i])
			i++
			continue
		}
		cond := w.Cond
		sp := w.Sp
		j := i + 1
		merged := 1
		for j < len(pipeline) {
			next, ok := pipeline[j].(*ast.Where)
			if !ok {
				break
			}
			cond = &ast.Binary{Sp: sp, Op: "and", L: cond, R: next.Cond}
			sp.End = next.Sp.End
			merged++
			j++
		}
		if merged > 1 {
			notes = append(notes, note("predicate-pushdown-coalesced",
				"merged %d consecutive where clauses into one conjunctive filter", merged))
		}
		out = append(out, &ast.Where{Sp: sp, Cond: cond})
		i = j
	}
	return out, notes
}

// pushdownProjection moves a pass-through Project earlier past any
// immediately preceding Where operations that only reference columns the
// Project retains (rewrite #3). Projects that rename or compute columns are
// left in place: a later operation's column dependency can't be checked
// against a renamed/computed output without re-deriving the rename, and the
// safe, conservative choice is to not move it.
func pushdownProjection(pipeline []ast.Operation) ([]ast.Operation, []Note) {
	out := append([]ast.Operation(nil), pipeline...)
	var notes []Note
	for i := 0; i < len(out); i++ {
		proj, ok := out[i].(*ast.Project)
		if !ok {
			continue
		}
		names, passthrough := projectOutputNames(proj)
		if !passthrough {
			continue
		}
		pos := i
		moved := 0
		for pos > 0 {
			w, ok := out[pos-1].(*ast.Where)
			if !ok {
				break
			}
			refs := map[string]bool{}
			referencedIdentifiers(w.Cond, refs)
			if !subsetOf(refs, names) {
				break
			}
			out[pos-1], out[pos] = out[pos], out[pos-1]
			pos--
			moved++
		}
		if moved > 0 {
			notes = append(notes, note("projection-pushdown",
				"moved a pass-through project above %d preceding where clause(s)", moved))
		}
	}
	return out, notes
}

func projectOutputNames(p *ast.Project) (map[string]bool, bool) {
	names := map[string]bool{}
	for _, c := range p.Cols {
		id, ok := c.Expr.(*ast.Identifier)
		if !ok {
			return nil, false
		}
		if c.Alias != "" && lowerName(c.Alias) != lowerName(id.Name) {
			return nil, false
		}
		names[lowerName(id.Name)] = true
	}
	return names, true
}

func subsetOf(needles, haystack map[string]bool) bool {
	for k := range needles {
		if !haystack[k] {
			return false
		}
	}
	return true
}

// reorderByCost stably sorts each maximal run of non-barrier operations by
// the cost-rank table, never moving an operation across a Summarize/Join/
// Union boundary, so those three keep their original relative order
// (rewrite #4).
func reorderByCost(pipeline []ast.Operation) ([]ast.Operation, []Note) {
	var notes []Note
	out := make([]ast.Operation, 0, len(pipeline))
	run := make([]ast.Operation, 0, len(pipeline))

	flush := func() {
		if len(run) < 2 {
			out = append(out, run...)
			run = run[:0]
			return
		}
		sorted := stableSortByCost(run)
		for i := range sorted {
			if sorted[i] != run[i] {
				notes = append(notes, note("operation-reordered",
					"reordered operations within a pipeline segment by estimated cost"))
				break
			}
		}
		out = append(out, sorted...)
		run = run[:0]
	}

	for _, op := range pipeline {
		if isBarrier(op) {
			flush()
			out = append(out, op)
			continue
		}
		run = append(run, op)
	}
	flush()
	return out, notes
}

// stableSortByCost is an insertion sort rather than a library sort because
// it must stop bubbling an operation past a neighbor it has a genuine data
// dependency on, not just past the end of equal-cost elements; a library
// stable sort has no hook for that per-swap legality check.
func stableSortByCost(ops []ast.Operation) []ast.Operation {
	out := append([]ast.Operation(nil), ops...)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && rankOf(out[j-1]) > rankOf(out[j]) && canSwap(out[j-1], out[j]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// canSwap reports whether prev and next may exchange positions without
// changing which columns are visible to either: next must not reference a
// column prev introduces (or retains as its sole output, in Project's
// case), and prev must not reference a column next introduces.
func canSwap(prev, next ast.Operation) bool {
	// A Project that renames or computes columns has an output name set we
	// can't cheaply enumerate (unnamed computed columns aren't addressable
	// but still occupy a pipeline position); treat it as blocking any swap
	// across it rather than risk reordering a consumer ahead of a rename it
	// depends on.
	if isOpaqueProject(prev) || isOpaqueProject(next) {
		return false
	}
	produced := producedNames(prev)
	if len(produced) > 0 {
		consumed := map[string]bool{}
		for _, e := range exprsInOp(next) {
			referencedIdentifiers(e, consumed)
		}
		if !disjoint(produced, consumed) {
			return false
		}
	}
	producedNext := producedNames(next)
	if len(producedNext) > 0 {
		consumedPrev := map[string]bool{}
		for _, e := range exprsInOp(prev) {
			referencedIdentifiers(e, consumedPrev)
		}
		if !disjoint(producedNext, consumedPrev) {
			return false
		}
	}
	return true
}

// producedNames is the set of column names an operation introduces or
// exclusively retains, used by canSwap to avoid reordering a consumer ahead
// of its producer. Where/Order/Top/Limit/Distinct/Join/Union never change
// which columns are addressable, so they produce nothing. Summarize is a
// barrier and never reaches stableSortByCost's input run, so it's not cased
// here; isOpaqueProject handles the one Project shape this can't represent.
func producedNames(op ast.Operation) map[string]bool {
	switch n := op.(type) {
	case *ast.Extend:
		out := map[string]bool{}
		for _, a := range n.Assigns {
			out[lowerName(a.Name)] = true
		}
		return out
	case *ast.Project:
		names, _ := projectOutputNames(n)
		return names
	default:
		return nil
	}
}

// isOpaqueProject reports whether op is a Project that renames or computes
// at least one column, meaning producedNames can't enumerate its full output.
func isOpaqueProject(op ast.Operation) bool {
	p, ok := op.(*ast.Project)
	if !ok {
		return false
	}
	_, passthrough := projectOutputNames(p)
	return !passthrough
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}

func rankOf(op ast.Operation) int {
	if k, ok := costRank[stepKindOf(op)]; ok {
		return k
	}
	return len(costRank)
}

func stepKindOf(op ast.Operation) StepKind {
	switch op.(type) {
	case *ast.Where:
		return StepFilter
	case *ast.Project:
		return StepProject
	case *ast.Extend:
		return StepExtend
	case *ast.Summarize:
		return StepAggregate
	case *ast.Order:
		return StepSort
	case *ast.Top:
		return StepTop
	case *ast.Limit:
		return StepLimit
	case *ast.Distinct:
		return StepDistinct
	case *ast.Join:
		return StepJoin
	case *ast.Union:
		return StepUnion
	default:
		return StepTableScan
	}
}

// eliminateDeadExtends drops Extend-computed columns that nothing
// downstream references, walking the pipeline back to front accumulating a
// live-name set (rewrite #5).
func eliminateDeadExtends(pipeline []ast.Operation) ([]ast.Operation, []Note) {
	var notes []Note
	live := map[string]bool{}
	out := make([]ast.Operation, len(pipeline))

	for i := len(pipeline) - 1; i >= 0; i-- {
		op := pipeline[i]
		ext, isExtend := op.(*ast.Extend)
		if !isExtend {
			for _, e := range exprsInOp(op) {
				referencedIdentifiers(e, live)
			}
			out[i] = op
			continue
		}
		var kept []ast.ExtendAssign
		dropped := 0
		for j := len(ext.Assigns) - 1; j >= 0; j-- {
			a := ext.Assigns[j]
			if live[lowerName(a.Name)] {
				referencedIdentifiers(a.Expr, live)
				kept = append([]ast.ExtendAssign{a}, kept...)
			} else {
				dropped++
			}
		}
		if dropped > 0 {
			notes = append(notes, note("dead-extend-eliminated",
				"removed %d unreferenced computed column(s) from an extend", dropped))
		}
		if len(kept) == 0 {
			out[i] = nil // marked for removal below
			continue
		}
		out[i] = &ast.Extend{Sp: ext.Sp, Assigns: kept}
	}

	result := make([]ast.Operation, 0, len(out))
	for _, op := range out {
		if op != nil {
			result = append(result, op)
		}
	}
	return result, notes
}
