package cmd

import (
	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/backend"
	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/parser"
	"github.com/vippsas/kqlcore/schema"
	"github.com/vippsas/kqlcore/sqlgen"
)

// parseDialectFlag maps a --dialect flag value onto sqlgen.Dialect using
// the same vocabulary as the config package's DatabaseConfig.Dialect.
func parseDialectFlag(s string) (sqlgen.Dialect, error) {
	return backend.ParseDialect(s)
}

// parseAndValidate parses text, then — if a provider is given — validates
// the resulting AST against it, returning the union of both passes'
// diagnostics the way the executor facade does (spec §4.8 steps 2-3).
// provider may be nil, in which case only syntax diagnostics are returned.
func parseAndValidate(text string, provider schema.Provider) (*ast.Query, diagnostics.List) {
	query, diags := parser.Parse(text)
	out := append(diagnostics.List{}, diags...)
	if query == nil {
		return nil, out
	}
	if provider != nil {
		out = append(out, schema.Validate(query, provider)...)
	}
	return query, out
}
