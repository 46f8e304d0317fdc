package cache

import (
	"strings"

	"github.com/vippsas/kqlcore/lexer"
	"github.com/vippsas/kqlcore/token"
)

// Canonicalize lowercases keywords and collapses whitespace without
// reordering operations (spec §4.6), by retokenizing the query text and
// rejoining lexemes with a single space. Keyword lexemes are already
// lower-cased by the lexer's LookupKeyword; string literal lexemes retain
// their original quoting and casing since they're values, not keywords.
func Canonicalize(queryText string) string {
	l := lexer.New(queryText, "")
	toks := l.Tokenize()
	parts := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.EOF {
			break
		}
		parts = append(parts, t.Lexeme)
	}
	return strings.Join(parts, " ")
}
