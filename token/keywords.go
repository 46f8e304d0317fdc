package token

import "strings"

// Keywords is the closed, case-insensitive set of reserved words recognized
// by the lexer. Membership is a table lookup, never a substring scan,
// mirroring how the teacher's sqlparser distinguishes ReservedWordToken from
// UnquotedIdentifierToken.
var Keywords = map[string]bool{
	"let": true, "where": true, "project": true, "extend": true,
	"summarize": true, "by": true, "order": true, "top": true,
	"limit": true, "distinct": true, "join": true, "union": true,
	"asc": true, "desc": true, "as": true, "and": true, "or": true, "not": true,
	"in": true, "between": true, "contains": true, "startswith": true,
	"endswith": true, "matches": true, "like": true, "inner": true,
	"left": true, "right": true, "full": true, "on": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"true": true, "false": true, "null": true, "datetime": true,
}

// LookupKeyword reports whether lexeme (case-insensitively) names a KQL
// keyword, returning the canonical lower-case spelling.
func LookupKeyword(lexeme string) (canonical string, ok bool) {
	lower := strings.ToLower(lexeme)
	if Keywords[lower] {
		return lower, true
	}
	return "", false
}

// NegatableKeywordOperators are the keyword operators the lexer also accepts
// immediately preceded by "!" as one negated operator token, e.g.
// "!contains", "!in".
var NegatableKeywordOperators = map[string]bool{
	"contains": true, "in": true, "startswith": true, "endswith": true,
	"matches": true, "like": true,
}
