// Package token defines the lexical tokens produced by the KQL lexer and
// consumed by the parser.
package token

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// FileRef identifies the source a Pos belongs to; it is opaque to the core
// and is typically a saved-query name or "" for ad-hoc queries.
type FileRef string

// Pos is a position in a source query, used both for token spans and for
// diagnostics.
type Pos struct {
	File   FileRef
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Kind is the closed set of token kinds the lexer ever produces.
type Kind int

const (
	Invalid Kind = iota
	String
	Integer
	Float
	Boolean
	Null
	Datetime
	Timespan
	Guid
	Identifier
	QuotedIdentifier
	Keyword
	Operator
	Punctuation
	Pipe
	EOF
)

func init() {
	// Fail fast if a Kind is ever added without updating the description
	// table below; mirrors the teacher's tokenToDescription completeness
	// check.
	for k := String; k != EOF; k++ {
		if kindToDescription[k] == "" {
			panic("token: kindToDescription is missing an entry")
		}
	}
}

var kindToDescription = map[Kind]string{
	String:           "String",
	Integer:          "Integer",
	Float:            "Float",
	Boolean:          "Boolean",
	Null:             "Null",
	Datetime:         "Datetime",
	Timespan:         "Timespan",
	Guid:             "Guid",
	Identifier:       "Identifier",
	QuotedIdentifier: "QuotedIdentifier",
	Keyword:          "Keyword",
	Operator:         "Operator",
	Punctuation:      "Punctuation",
	Pipe:             "Pipe",
	EOF:              "EOF",
}

func (k Kind) String() string {
	if k == Invalid {
		return "Invalid"
	}
	return kindToDescription[k]
}

// ValueKind tags which field of Value is meaningful.
type ValueKind int

const (
	NoValue ValueKind = iota
	StringValue
	IntegerValue
	FloatValue
	BooleanValue
	NullValue
	TimespanValue
	DatetimeValue
	GuidValue
)

// Value is the typed literal payload carried by a token. Only the field
// matching Kind is meaningful; the others are zero.
//
// Timespan is canonicalized to nanoseconds and Datetime is canonicalized to
// UTC, matching the wire format the optimizer and SQL generator rely on.
type Value struct {
	Kind     ValueKind
	Str      string
	Int      int64
	Float    float64
	Bool     bool
	Timespan time.Duration
	Datetime time.Time
	Guid     uuid.UUID
}

func (v Value) String() string {
	switch v.Kind {
	case StringValue:
		return v.Str
	case IntegerValue:
		return fmt.Sprintf("%d", v.Int)
	case FloatValue:
		return fmt.Sprintf("%v", v.Float)
	case BooleanValue:
		return fmt.Sprintf("%v", v.Bool)
	case NullValue:
		return "null"
	case TimespanValue:
		return v.Timespan.String()
	case DatetimeValue:
		return v.Datetime.Format(time.RFC3339Nano)
	case GuidValue:
		return v.Guid.String()
	default:
		return ""
	}
}

// Token is an immutable lexeme produced by the lexer.
type Token struct {
	Kind   Kind
	Lexeme string
	Value  Value
	Start  Pos
	End    Pos
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Start)
}
