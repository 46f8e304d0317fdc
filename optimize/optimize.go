package optimize

import (
	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/schema"
	"github.com/vippsas/kqlcore/token"
)

// Result is the optimizer's total output: the rewritten AST, the execution
// plan derived from it, and the notes recording which rewrites fired.
type Result struct {
	Query *ast.Query
	Plan  *ExecutionPlan
	Notes []Note
}

// Optimize applies the five ordered, idempotent rewrites from spec §4.4 to
// q's pipeline, then derives an execution plan and cost estimate from the
// result. provider supplies the leaf table's row-count statistics (or
// DefaultRowCount when unknown); q itself is never mutated.
func Optimize(q *ast.Query, provider schema.Provider) Result {
	pipeline := append([]ast.Operation(nil), q.Pipeline...)
	var allNotes []Note

	steps := []func([]ast.Operation) ([]ast.Operation, []Note){
		foldConstants,
		coalesceWhere,
		pushdownProjection,
		reorderByCost,
		eliminateDeadExtends,
	}
	for _, step := range steps {
		var notes []Note
		pipeline, notes = step(pipeline)
		allNotes = append(allNotes, notes...)
	}

	out := &ast.Query{Sp: q.Sp, Lets: q.Lets, Table: q.Table, Pipeline: pipeline}

	rowCount := int64(DefaultRowCount)
	if provider != nil {
		if t, ok := provider.GetTable(q.Table.Name); ok && t.RowCountEstimate > 0 {
			rowCount = t.RowCountEstimate
		}
	}
	plan := buildPlan(out, rowCount)

	return Result{Query: out, Plan: plan, Notes: allNotes}
}

func buildPlan(q *ast.Query, rowCount int64) *ExecutionPlan {
	plan := &ExecutionPlan{}
	input := rowCount

	scan := Step{
		Kind:          StepTableScan,
		Description:   "scan " + q.Table.Name,
		EstInputRows:  input,
		EstOutputRows: input,
		EstCost:       unitCost[StepTableScan],
	}
	plan.Steps = append(plan.Steps, scan)
	plan.TotalCost += scan.EstCost

	for _, op := range q.Pipeline {
		kind := stepKindOf(op)
		var topN int64
		if t, ok := op.(*ast.Top); ok {
			if lit, ok := t.N.(*ast.Literal); ok && lit.Value.Kind == token.IntegerValue {
				topN = lit.Value.Int
			}
		}
		mult := cardinalityMultiplier(kind, topN, input)
		output := int64(float64(input) * mult)
		step := Step{
			Kind:          kind,
			Description:   describeStep(op),
			EstInputRows:  input,
			EstOutputRows: output,
			EstCost:       unitCost[kind] * (float64(input) / float64(DefaultRowCount)),
		}
		plan.Steps = append(plan.Steps, step)
		plan.TotalCost += step.EstCost
		input = output
	}
	return plan
}

func describeStep(op ast.Operation) string {
	switch n := op.(type) {
	case *ast.Where:
		return "filter rows"
	case *ast.Project:
		return "project columns"
	case *ast.Extend:
		return "compute extended columns"
	case *ast.Summarize:
		return "aggregate"
	case *ast.Order:
		return "sort"
	case *ast.Top:
		return "top-n"
	case *ast.Limit:
		return "limit rows"
	case *ast.Distinct:
		return "distinct rows"
	case *ast.Join:
		return "join with " + n.Table.Name
	case *ast.Union:
		return "union"
	default:
		return "operation"
	}
}
