package sqlgen

// sqlOperator maps a KQL binary operator lexeme to its SQL rendering, per
// spec §4.5's translation table. Operators not present here (string-match
// ops and negated forms) need the right-hand operand to build their LIKE/
// ILIKE pattern and are handled directly in emitBinary.
var sqlOperator = map[string]string{
	"==":  "=",
	"!=":  "!=",
	"<>":  "!=",
	"<":   "<",
	"<=":  "<=",
	">":   ">",
	">=":  ">=",
	"+":   "+",
	"-":   "-",
	"*":   "*",
	"/":   "/",
	"%":   "%",
	"and": "AND",
	"or":  "OR",
	"in":  "IN",
	"!in": "NOT IN",
}

// aggFunc maps a KQL aggregate function name to its SQL rendering. dcount is
// the one rewrite that changes shape (COUNT(DISTINCT expr) rather than a
// same-named call).
var aggFunc = map[string]string{
	"count": "COUNT",
	"sum":   "SUM",
	"avg":   "AVG",
	"min":   "MIN",
	"max":   "MAX",
}
