// Package diagnostics defines the structured error taxonomy shared by every
// stage of the KQL core, grounded on the teacher's sqlparser.Error{Pos,
// Message} and the SQLCodeParseErrors/SQLUserError multi-line error
// rendering in error.go and mssql_error.go.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/vippsas/kqlcore/token"
)

// Kind is the closed taxonomy of error kinds a caller of the core can
// branch on.
type Kind string

const (
	Syntax       Kind = "syntax"
	Semantic     Kind = "semantic"
	Unsupported  Kind = "unsupported"
	Resource     Kind = "resource"
	QueueTimeout Kind = "queue-timeout"
	ExecTimeout  Kind = "exec-timeout"
	Cancelled    Kind = "cancelled"
	Backend      Kind = "backend"
	Cache        Kind = "cache"
)

// Diagnostic is a single structured error or warning produced by the lexer,
// parser, validator, optimizer, or SQL generator.
type Diagnostic struct {
	Kind        Kind
	Message     string
	Pos         *token.Pos
	Suggestions []string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Pos != nil {
		fmt.Fprintf(&b, "%s: ", d.Pos)
	}
	fmt.Fprintf(&b, "%s: %s", d.Kind, d.Message)
	if len(d.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(d.Suggestions, ", "))
	}
	return b.String()
}

// New builds a Diagnostic with no position, for cases where none is
// applicable (e.g. a resource or backend error).
func New(kind Kind, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At builds a Diagnostic anchored to a source position.
func At(kind Kind, pos token.Pos, format string, args ...interface{}) Diagnostic {
	p := pos
	return Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: &p}
}

// List is a batch of diagnostics collected over one pass, mirroring
// SQLCodeParseErrors.Error()'s multi-line rendering.
type List []Diagnostic

func (l List) Error() string {
	var b strings.Builder
	b.WriteString("kql: ")
	if len(l) == 1 {
		b.WriteString(l[0].String())
		return b.String()
	}
	fmt.Fprintf(&b, "%d errors:\n", len(l))
	for _, d := range l {
		b.WriteString("  ")
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// HasErrors reports whether any diagnostic in the list is not purely
// informational. All current Kinds are error-level; the type exists so
// future advisory-only kinds don't have to change every call site.
func (l List) HasErrors() bool {
	return len(l) > 0
}

// Filter returns the subset of diagnostics of the given kind.
func (l List) Filter(kind Kind) List {
	var out List
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
