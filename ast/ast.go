// Package ast defines the KQL abstract syntax tree: a recursive tagged
// variant with Query/Operation/Expr node families, grounded on the teacher's
// style of modeling a grammar as small concrete structs (Declare, Create,
// Type) rather than a single generic node type.
//
// The AST is produced once per query by the parser and is treated as
// immutable afterwards; the optimizer returns a new AST, reusing untouched
// Expr subtrees by value since Go interface values holding pointers to
// unmodified nodes are safe to share read-only.
package ast

import "github.com/vippsas/kqlcore/token"

// Span is the source range a node was parsed from.
type Span struct {
	Start token.Pos
	End   token.Pos
}

// Node is implemented by every AST node.
type Node interface {
	Span() Span
}

// DataType is the declared type of a literal or inferred type of a folded
// expression. Constant folding only narrows a DataType, never widens it.
type DataType int

const (
	DTUnknown DataType = iota
	DTString
	DTInteger
	DTFloat
	DTBoolean
	DTNull
	DTDatetime
	DTTimespan
	DTGuid
	DTDynamic
)

func (d DataType) String() string {
	switch d {
	case DTString:
		return "string"
	case DTInteger:
		return "int"
	case DTFloat:
		return "real"
	case DTBoolean:
		return "bool"
	case DTNull:
		return "null"
	case DTDatetime:
		return "datetime"
	case DTTimespan:
		return "timespan"
	case DTGuid:
		return "guid"
	case DTDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Expr is implemented by every expression node family member.
type Expr interface {
	Node
	exprNode()
}

// Literal is a constant value of a declared data type.
type Literal struct {
	Sp    Span
	Value token.Value
	DType DataType
}

func (n *Literal) Span() Span { return n.Sp }
func (*Literal) exprNode()    {}

// Identifier references a column, alias, or let-bound name.
type Identifier struct {
	Sp     Span
	Name   string
	Quoted bool
}

func (n *Identifier) Span() Span { return n.Sp }
func (*Identifier) exprNode()    {}

// Member is dotted (obj.prop) or computed (obj[index]) member access.
type Member struct {
	Sp       Span
	Obj      Expr
	Prop     string
	Computed bool
	Index    Expr // only set when Computed
}

func (n *Member) Span() Span { return n.Sp }
func (*Member) exprNode()    {}

// Unary is a prefix operator applied to one operand: not, unary -, unary +.
type Unary struct {
	Sp Span
	Op string
	X  Expr
}

func (n *Unary) Span() Span { return n.Sp }
func (*Unary) exprNode()    {}

// Binary is an infix operator applied to two operands. Precedence is
// established exclusively by the parser's grammar; no precedence metadata
// is carried on the node.
type Binary struct {
	Sp Span
	Op string
	L  Expr
	R  Expr
}

func (n *Binary) Span() Span { return n.Sp }
func (*Binary) exprNode()    {}

// Call is a scalar or aggregate function invocation.
type Call struct {
	Sp   Span
	Name string
	Args []Expr
}

func (n *Call) Span() Span { return n.Sp }
func (*Call) exprNode()    {}

// CaseArm is one "when Cond then Then" arm of a Case expression.
type CaseArm struct {
	When Expr
	Then Expr
}

// Case is a "case when ... then ... (else ...)? end" expression.
type Case struct {
	Sp   Span
	Arms []CaseArm
	Else Expr // nil if absent
}

func (n *Case) Span() Span { return n.Sp }
func (*Case) exprNode()    {}

// Array is an "[e1, e2, ...]" array literal expression.
type Array struct {
	Sp    Span
	Elems []Expr
}

func (n *Array) Span() Span { return n.Sp }
func (*Array) exprNode()    {}

// Operation is implemented by every pipeline stage family member.
type Operation interface {
	Node
	opNode()
}

// TableRef names a table and an optional alias, used both as the pipeline's
// leaf and as the right-hand side of Join/Union.
type TableRef struct {
	Sp    Span
	Name  string
	Alias string // "" if absent
}

func (n TableRef) Span() Span { return n.Sp }

// ProjectCol is one "expr (as alias)?" column in a Project operation.
type ProjectCol struct {
	Expr  Expr
	Alias string // "" if absent
}

// Where filters rows by a boolean predicate.
type Where struct {
	Sp   Span
	Cond Expr
}

func (n *Where) Span() Span { return n.Sp }
func (*Where) opNode()      {}

// Project selects and optionally renames a fixed set of columns.
type Project struct {
	Sp   Span
	Cols []ProjectCol
}

func (n *Project) Span() Span { return n.Sp }
func (*Project) opNode()      {}

// ExtendAssign is one "name = expr" computed column in an Extend operation.
type ExtendAssign struct {
	Name string
	Expr Expr
}

// Extend adds computed columns to the current row set.
type Extend struct {
	Sp      Span
	Assigns []ExtendAssign
}

func (n *Extend) Span() Span { return n.Sp }
func (*Extend) opNode()      {}

// Agg is one "fn(expr?) (as alias)?" aggregation in a Summarize operation.
type Agg struct {
	Fn    string
	Arg   Expr // nil for zero-arg aggregates such as count()
	Alias string
}

// Summarize replaces the column set with aggregations grouped by GroupBy.
type Summarize struct {
	Sp      Span
	Aggs    []Agg
	GroupBy []Expr // nil if absent
}

func (n *Summarize) Span() Span { return n.Sp }
func (*Summarize) opNode()      {}

// OrderItem is one "expr (asc|desc)?" sort key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Order sorts rows by one or more keys.
type Order struct {
	Sp    Span
	Items []OrderItem
}

func (n *Order) Span() Span { return n.Sp }
func (*Order) opNode()      {}

// Top keeps the first N rows after sorting by Items.
type Top struct {
	Sp    Span
	N     Expr
	Items []OrderItem // nil if "by" absent
}

func (n *Top) Span() Span { return n.Sp }
func (*Top) opNode()      {}

// Limit caps the number of output rows without sorting.
type Limit struct {
	Sp Span
	N  Expr
}

func (n *Limit) Span() Span { return n.Sp }
func (*Limit) opNode()      {}

// Distinct deduplicates rows, optionally over a column subset.
type Distinct struct {
	Sp   Span
	Cols []Expr // nil means "all columns"
}

func (n *Distinct) Span() Span { return n.Sp }
func (*Distinct) opNode()      {}

// JoinKind is the closed set of supported join kinds.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
	FullJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "left"
	case RightJoin:
		return "right"
	case FullJoin:
		return "full"
	default:
		return "inner"
	}
}

// Join combines the current row set with another table.
type Join struct {
	Sp    Span
	Kind  JoinKind
	Table TableRef
	On    Expr
}

func (n *Join) Span() Span { return n.Sp }
func (*Join) opNode()      {}

// Union appends rows from one or more additional tables.
type Union struct {
	Sp     Span
	Tables []TableRef
}

func (n *Union) Span() Span { return n.Sp }
func (*Union) opNode()      {}

// LetStatement binds Name to Expr before the pipeline starts.
type LetStatement struct {
	Sp   Span
	Name string
	Expr Expr
}

func (n LetStatement) Span() Span { return n.Sp }

// Query is the root of a parsed KQL statement: zero or more let-bindings,
// the pipeline's leaf table reference, and an ordered pipeline of
// operations. Subtrees are not shared between independently parsed Query
// values; a Query produced by Clone shares its untouched Expr/Operation
// subtrees with the original.
type Query struct {
	Sp       Span
	Lets     []LetStatement
	Table    TableRef
	Pipeline []Operation
}

func (n *Query) Span() Span { return n.Sp }

// Clone produces a shallow structural copy of the pipeline slice (and Lets
// slice) so a caller — the optimizer — can rewrite the sequence of
// operations without mutating the original Query, while still referring to
// the same, untouched Expr/Operation subtrees where nothing changed about
// them.
func (n *Query) Clone() *Query {
	out := &Query{Sp: n.Sp, Table: n.Table}
	out.Lets = append([]LetStatement(nil), n.Lets...)
	out.Pipeline = append([]Operation(nil), n.Pipeline...)
	return out
}
