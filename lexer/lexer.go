// Package lexer turns a KQL query's character stream into a token stream,
// grounded on the cursor-based scanning idiom of sqlparser.Scanner: a single
// cursor over the input buffer with a small amount of line/column
// bookkeeping, rather than a stream of lookahead buffers.
package lexer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/smasher164/xid"

	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/token"
)

// Lexer scans one query's source text into tokens. It never panics or
// returns an error itself: failures are accumulated as diagnostics and
// EOF is always eventually reached, matching spec's "lexing never throws"
// failure mode.
type Lexer struct {
	input string
	file  token.FileRef

	pos  int // byte offset of the rune under the cursor
	line int
	col  int

	lineStartOffset int

	diags []diagnostics.Diagnostic
}

// New creates a Lexer over input, attributing diagnostics and positions to
// file (which may be "").
func New(input string, file token.FileRef) *Lexer {
	return &Lexer{input: input, file: file, line: 1, col: 1}
}

// Diagnostics returns every diagnostic accumulated so far.
func (l *Lexer) Diagnostics() []diagnostics.Diagnostic {
	return l.diags
}

func (l *Lexer) addDiag(kind diagnostics.Kind, pos token.Pos, format string, args ...interface{}) {
	l.diags = append(l.diags, diagnostics.At(kind, pos, format, args...))
}

func (l *Lexer) here() token.Pos {
	return token.Pos{File: l.file, Offset: l.pos, Line: l.line, Col: l.col}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peekRune() (rune, int) {
	if l.eof() {
		return 0, 0
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	return r, w
}

func (l *Lexer) peekRuneAt(offset int) (rune, int) {
	if l.pos+offset >= len(l.input) {
		return 0, 0
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos+offset:])
	return r, w
}

// advance consumes n bytes starting at the cursor, updating line/col
// bookkeeping for every newline crossed.
func (l *Lexer) advance(n int) {
	for i := 0; i < n; {
		r, w := utf8.DecodeRuneInString(l.input[l.pos+i:])
		if w == 0 {
			break
		}
		i += w
		if r == '\n' {
			l.line++
			l.col = 1
			l.lineStartOffset = l.pos + i
		} else {
			l.col++
		}
	}
	l.pos += n
}

// Tokenize runs the lexer to completion and returns the full token stream,
// always terminated by a single EOF token. Whitespace and comments are
// skipped, never appearing in the returned stream.
func (l *Lexer) Tokenize() []token.Token {
	var out []token.Token
	for {
		tok, skip := l.next()
		if skip {
			continue
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

// next scans and returns exactly one token (or signals skip=true for
// whitespace/comments the caller should not append).
func (l *Lexer) next() (tok token.Token, skip bool) {
	start := l.here()

	if l.eof() {
		return token.Token{Kind: token.EOF, Start: start, End: start}, false
	}

	r, w := l.peekRune()

	switch {
	case unicode.IsSpace(r):
		l.skipWhitespace()
		return token.Token{}, true

	case r == '/' && peekIs(l, 1, '*'):
		l.skipBlockComment(start)
		return token.Token{}, true

	case r == '/' && peekIs(l, 1, '/'):
		l.skipLineComment()
		return token.Token{}, true

	case r == '"' || r == '\'':
		return l.scanString(r, start), false

	case r == '`':
		return l.scanQuotedIdentifier(start), false

	case r >= '0' && r <= '9':
		return l.scanNumber(start), false

	case r == '!' && isIdentStart(peekAfter(l, w)):
		return l.scanNegatedKeywordOperator(start), false

	case isIdentStart(r):
		return l.scanIdentifierOrKeyword(start), false

	case r == '|':
		l.advance(w)
		return token.Token{Kind: token.Pipe, Lexeme: "|", Start: start, End: l.here()}, false
	}

	if op, ok := l.matchSymbolicOperator(); ok {
		return token.Token{Kind: token.Operator, Lexeme: op, Start: start, End: l.here()}, false
	}

	if token.Punctuation[r] {
		l.advance(w)
		return token.Token{Kind: token.Punctuation, Lexeme: string(r), Start: start, End: l.here()}, false
	}

	l.addDiag(diagnostics.Syntax, start, "unexpected character %q", r)
	l.advance(w)
	return token.Token{}, true
}

func isIdentStart(r rune) bool {
	return r != 0 && (xid.Start(r) || r == '_')
}

func isIdentContinue(r rune) bool {
	return xid.Continue(r) || r == '_'
}

func peekIs(l *Lexer, offset int, want rune) bool {
	r, _ := l.peekRuneAt(offset)
	return r == want
}

func peekAfter(l *Lexer, afterBytes int) rune {
	r, _ := l.peekRuneAt(afterBytes)
	return r
}

func (l *Lexer) skipWhitespace() {
	for {
		r, w := l.peekRune()
		if w == 0 || !unicode.IsSpace(r) {
			return
		}
		l.advance(w)
	}
}

func (l *Lexer) skipLineComment() {
	l.advance(2) // "//"
	for {
		r, w := l.peekRune()
		if w == 0 || r == '\n' {
			return
		}
		l.advance(w)
	}
}

func (l *Lexer) skipBlockComment(start token.Pos) {
	l.advance(2) // "/*"
	for {
		r, w := l.peekRune()
		if w == 0 {
			l.addDiag(diagnostics.Syntax, start, "unterminated block comment")
			return
		}
		if r == '*' && peekIs(l, w, '/') {
			l.advance(w + 1)
			return
		}
		l.advance(w)
	}
}

var escapeTable = map[rune]rune{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '"': '"', '\'': '\'',
}

// scanString consumes a ' or " delimited string literal, applying \n \t \r
// \\ \" \' escapes and passing through any other escaped character as its
// literal value, per spec §4.1(3).
func (l *Lexer) scanString(quote rune, start token.Pos) token.Token {
	l.advance(utf8.RuneLen(quote))
	var sb strings.Builder
	for {
		r, w := l.peekRune()
		if w == 0 {
			l.addDiag(diagnostics.Syntax, start, "unterminated string literal")
			return token.Token{
				Kind: token.String, Lexeme: l.input[start.Offset:l.pos],
				Value: token.Value{Kind: token.StringValue, Str: sb.String()},
				Start: start, End: l.here(),
			}
		}
		if r == quote {
			l.advance(w)
			break
		}
		if r == '\\' {
			l.advance(w)
			er, ew := l.peekRune()
			if ew == 0 {
				l.addDiag(diagnostics.Syntax, start, "unterminated string literal")
				break
			}
			if mapped, ok := escapeTable[er]; ok {
				sb.WriteRune(mapped)
			} else {
				sb.WriteRune(er)
			}
			l.advance(ew)
			continue
		}
		sb.WriteRune(r)
		l.advance(w)
	}
	lexeme := l.input[start.Offset:l.pos]
	return token.Token{
		Kind: token.String, Lexeme: lexeme,
		Value: token.Value{Kind: token.StringValue, Str: sb.String()},
		Start: start, End: l.here(),
	}
}

// scanQuotedIdentifier consumes a `backtick` delimited quoted identifier.
func (l *Lexer) scanQuotedIdentifier(start token.Pos) token.Token {
	l.advance(1) // opening `
	var sb strings.Builder
	for {
		r, w := l.peekRune()
		if w == 0 {
			l.addDiag(diagnostics.Syntax, start, "unterminated quoted identifier")
			break
		}
		if r == '`' {
			l.advance(w)
			break
		}
		sb.WriteRune(r)
		l.advance(w)
	}
	return token.Token{
		Kind: token.QuotedIdentifier, Lexeme: l.input[start.Offset:l.pos],
		Value: token.Value{Kind: token.StringValue, Str: sb.String()},
		Start: start, End: l.here(),
	}
}

var numberRegexp = regexp.MustCompile(`^\d+(\.\d+)?([eE][+-]?\d+)?`)

// scanNumber consumes an integer, decimal, or scientific literal, promoting
// it to a Timespan token when immediately followed by a timespan suffix
// (d h m s ms), per spec §4.1(5).
func (l *Lexer) scanNumber(start token.Pos) token.Token {
	loc := numberRegexp.FindString(l.input[l.pos:])
	l.advance(len(loc))

	for _, suf := range token.TimespanSuffixes {
		if strings.HasPrefix(l.input[l.pos:], suf.Suffix) {
			// require the suffix not itself continue into an identifier
			// (so "1second" is not mistaken for "1s" + "econd").
			afterIdx := l.pos + len(suf.Suffix)
			if afterIdx >= len(l.input) || !isIdentContinue(firstRune(l.input[afterIdx:])) {
				l.advance(len(suf.Suffix))
				f, _ := strconv.ParseFloat(loc, 64)
				nanos := int64(f * float64(suf.Nanos))
				return token.Token{
					Kind: token.Timespan, Lexeme: l.input[start.Offset:l.pos],
					Value: token.Value{Kind: token.TimespanValue, Timespan: time.Duration(nanos)},
					Start: start, End: l.here(),
				}
			}
		}
	}

	lexeme := loc
	if strings.ContainsAny(lexeme, ".eE") {
		f, _ := strconv.ParseFloat(lexeme, 64)
		return token.Token{
			Kind: token.Float, Lexeme: lexeme,
			Value: token.Value{Kind: token.FloatValue, Float: f},
			Start: start, End: l.here(),
		}
	}
	i, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		// overflow: fall back to float so the lexer never fails outright.
		f, _ := strconv.ParseFloat(lexeme, 64)
		return token.Token{
			Kind: token.Float, Lexeme: lexeme,
			Value: token.Value{Kind: token.FloatValue, Float: f},
			Start: start, End: l.here(),
		}
	}
	return token.Token{
		Kind: token.Integer, Lexeme: lexeme,
		Value: token.Value{Kind: token.IntegerValue, Int: i},
		Start: start, End: l.here(),
	}
}

func firstRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

var guidRegexp = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// scanIdentifierOrKeyword consumes [A-Za-z_][A-Za-z0-9_]* (generalized to
// Unicode identifiers via xid), then classifies it as a GUID, the
// "datetime(...)" literal form, a keyword, or a plain identifier.
func (l *Lexer) scanIdentifierOrKeyword(start token.Pos) token.Token {
	if m := guidRegexp.FindString(l.input[l.pos:]); m != "" {
		// only treat as a GUID if nothing identifier-like continues past it.
		afterIdx := l.pos + len(m)
		if afterIdx >= len(l.input) || !isIdentContinue(firstRune(l.input[afterIdx:])) {
			l.advance(len(m))
			id, err := uuid.FromString(m)
			if err != nil {
				l.addDiag(diagnostics.Syntax, start, "malformed guid literal %q", m)
			}
			return token.Token{
				Kind: token.Guid, Lexeme: m,
				Value: token.Value{Kind: token.GuidValue, Guid: id},
				Start: start, End: l.here(),
			}
		}
	}

	for {
		r, w := l.peekRune()
		if w == 0 || !isIdentContinue(r) {
			break
		}
		l.advance(w)
	}
	lexeme := l.input[start.Offset:l.pos]

	if strings.EqualFold(lexeme, "datetime") {
		if r, _ := l.peekRune(); r == '(' {
			return l.scanDatetimeLiteral(start, lexeme)
		}
	}

	if canonical, ok := token.LookupKeyword(lexeme); ok {
		switch canonical {
		case "true", "false":
			return token.Token{
				Kind: token.Boolean, Lexeme: lexeme,
				Value: token.Value{Kind: token.BooleanValue, Bool: canonical == "true"},
				Start: start, End: l.here(),
			}
		case "null":
			return token.Token{
				Kind: token.Null, Lexeme: lexeme,
				Value: token.Value{Kind: token.NullValue},
				Start: start, End: l.here(),
			}
		}
		return token.Token{Kind: token.Keyword, Lexeme: canonical, Start: start, End: l.here()}
	}

	return token.Token{Kind: token.Identifier, Lexeme: lexeme, Start: start, End: l.here()}
}

// scanDatetimeLiteral consumes the parenthesized body of a
// "datetime(...)"  literal, per spec §4.1(6).
func (l *Lexer) scanDatetimeLiteral(start token.Pos, keyword string) token.Token {
	l.advance(1) // '('
	bodyStart := l.pos
	depth := 1
	for depth > 0 {
		r, w := l.peekRune()
		if w == 0 {
			l.addDiag(diagnostics.Syntax, start, "unterminated datetime literal")
			break
		}
		if r == '(' {
			depth++
		} else if r == ')' {
			depth--
			if depth == 0 {
				break
			}
		}
		l.advance(w)
	}
	body := strings.TrimSpace(l.input[bodyStart:l.pos])
	if _, w := l.peekRune(); w != 0 {
		l.advance(w) // closing ')'
	}

	t, ok := parseDatetime(body)
	if !ok {
		l.addDiag(diagnostics.Syntax, start, "unrecognized datetime literal %q", body)
	}
	return token.Token{
		Kind: token.Datetime, Lexeme: l.input[start.Offset:l.pos],
		Value: token.Value{Kind: token.DatetimeValue, Datetime: t},
		Start: start, End: l.here(),
	}
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDatetime(body string) (time.Time, bool) {
	body = strings.Trim(body, `"'`)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, body); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// scanNegatedKeywordOperator consumes "!contains", "!in", etc. — a "!"
// immediately followed by an identifier-shaped keyword operator, matched as
// a single Operator token per spec §4.1(7).
func (l *Lexer) scanNegatedKeywordOperator(start token.Pos) token.Token {
	l.advance(1) // '!'
	idStart := l.pos
	for {
		r, w := l.peekRune()
		if w == 0 || !isIdentContinue(r) {
			break
		}
		l.advance(w)
	}
	word := strings.ToLower(l.input[idStart:l.pos])
	if !token.NegatableKeywordOperators[word] {
		l.addDiag(diagnostics.Syntax, start, "unsupported operator \"!%s\"", word)
	}
	return token.Token{Kind: token.Operator, Lexeme: "!" + word, Start: start, End: l.here()}
}

// matchSymbolicOperator matches the longest operator in
// token.SymbolicOperators that is a prefix of the remaining input.
func (l *Lexer) matchSymbolicOperator() (string, bool) {
	for _, op := range token.SymbolicOperators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.advance(len(op))
			return op, true
		}
	}
	return "", false
}
