// Package optimize applies semantics-preserving AST rewrites, estimates
// cost, and produces an immutable execution plan, grounded on spec §4.4.
package optimize

import "fmt"

// DefaultRowCount seeds the cost model when the schema provider has no
// statistics for a table (spec §4.4: "a fixed default, e.g. 1,000,000").
const DefaultRowCount = 1_000_000

// StepKind is the closed set of execution plan step kinds.
type StepKind string

const (
	StepTableScan StepKind = "table-scan"
	StepFilter    StepKind = "filter"
	StepProject   StepKind = "project"
	StepExtend    StepKind = "extend"
	StepAggregate StepKind = "aggregate"
	StepSort      StepKind = "sort"
	StepTop       StepKind = "top"
	StepLimit     StepKind = "limit"
	StepDistinct  StepKind = "distinct"
	StepJoin      StepKind = "join"
	StepUnion     StepKind = "union"
)

// unitCost is the per-step-kind cost table from spec §4.4's ordering
// (scan < filter < project < extend < top < limit < order < union <
// summarize < join).
var unitCost = map[StepKind]float64{
	StepTableScan: 1.0,
	StepFilter:    2.0,
	StepProject:   3.0,
	StepExtend:    4.0,
	StepDistinct:  4.5,
	StepTop:       5.0,
	StepLimit:     6.0,
	StepSort:      7.0,
	StepUnion:     8.0,
	StepAggregate: 9.0,
	StepJoin:      10.0,
}

// costRank orders step kinds for the operation-reordering rewrite; lower
// sorts earlier. Distinct isn't named by spec §4.4's ordering list, which
// only enumerates scan/filter/project/extend/top/limit/order/union/
// summarize/join; it's placed between extend and top as a dedup step that
// naturally follows column shaping and precedes row-count-limiting steps.
var costRank = map[StepKind]int{
	StepTableScan: 0,
	StepFilter:    1,
	StepProject:   2,
	StepExtend:    3,
	StepDistinct:  4,
	StepTop:       5,
	StepLimit:     6,
	StepSort:      7,
	StepUnion:     8,
	StepAggregate: 9,
	StepJoin:      10,
}

// cardinalityMultiplier is applied to the running row-count estimate as
// each step kind is costed.
func cardinalityMultiplier(kind StepKind, topN int64, inputRows int64) float64 {
	switch kind {
	case StepFilter:
		return 0.1
	case StepAggregate:
		return 0.01
	case StepDistinct:
		return 0.8
	case StepTop:
		if topN > 0 && topN < inputRows {
			return float64(topN) / float64(inputRows)
		}
		return 1.0
	default:
		return 1.0
	}
}

// Step is one node of an execution plan (spec §3).
type Step struct {
	Kind          StepKind
	Description   string
	EstInputRows  int64
	EstOutputRows int64
	EstCost       float64
	SQLFragment   string // filled in by sqlgen during introspection; empty here
}

// ExecutionPlan is an ordered, immutable list of Step, derived from the
// optimized AST. It is never executed directly; it exists for introspection
// and for the scheduler's memory/complexity estimation.
type ExecutionPlan struct {
	Steps     []Step
	TotalCost float64
}

// Note is a severity-free, coded record of an optimizer rewrite that fired,
// grounded on the AnalysisFinding reporting style used across the example
// corpus's SQL tooling: a code, a message, and (when applicable) the plan
// step index the rewrite affected.
type Note struct {
	Code      string
	Message   string
	StepIndex int // -1 when not tied to a single step
}

func note(code, format string, args ...interface{}) Note {
	return Note{Code: code, Message: fmt.Sprintf(format, args...), StepIndex: -1}
}
