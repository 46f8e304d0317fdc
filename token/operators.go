package token

// SymbolicOperators lists multi-character and single-character symbolic
// operators, longest lexeme first so the lexer can match greedily without
// backtracking. "!contains"/"!in" and friends are handled separately by the
// lexer because they are keyword-shaped, not symbol-shaped.
var SymbolicOperators = []string{
	"==", "!=", "<>", "<=", ">=",
	"<", ">", "+", "-", "*", "/", "%", "=",
}

// Punctuation is the closed set of single-character punctuation runes.
var Punctuation = map[rune]bool{
	',': true, ';': true, '.': true,
	'(': true, ')': true, '[': true, ']': true, '{': true, '}': true,
}

// TimespanSuffixes maps a unit suffix immediately following a numeric
// literal to its duration-per-unit in nanoseconds, longest suffix first.
var TimespanSuffixes = []struct {
	Suffix string
	Nanos  int64
}{
	{"ms", 1_000_000},
	{"d", 24 * 60 * 60 * 1_000_000_000},
	{"h", 60 * 60 * 1_000_000_000},
	{"m", 60 * 1_000_000_000},
	{"s", 1_000_000_000},
}
