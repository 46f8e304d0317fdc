// Package parser implements a recursive-descent parser with Pratt-style
// precedence climbing for KQL expressions.
//
// Parsing conventions (mirroring the teacher's sqlparser.Parse doc comment,
// substituting "|" for ";" as the pipeline delimiter): every parseXxx
// function for a keyword-introduced construct starts with the cursor *on*
// that keyword and consumes it itself, and on return leaves the cursor
// positioned at the token that starts the next construct. Trailing separators the
// construct owns have already been consumed.
package parser

import (
	"github.com/vippsas/kqlcore/ast"
	"github.com/vippsas/kqlcore/diagnostics"
	"github.com/vippsas/kqlcore/lexer"
	"github.com/vippsas/kqlcore/token"
)

// Parser turns a token stream into an AST. It never panics: a syntax error
// is recorded as a diagnostic and parsing resynchronizes at the next "|" or
// ";", matching spec's (AST?, []Diagnostic) failure mode.
type Parser struct {
	toks  []token.Token
	pos   int
	diags []diagnostics.Diagnostic
}

// New builds a Parser over an already-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse lexes and parses text in one step, merging lexer and parser
// diagnostics, matching the public core API's parse(text) -> (AST?, [Diagnostic]).
func Parse(text string) (*ast.Query, []diagnostics.Diagnostic) {
	return ParseFile(text, "")
}

// ParseFile is Parse with an explicit file reference attached to every
// position, for use with saved/named queries.
func ParseFile(text string, file token.FileRef) (*ast.Query, []diagnostics.Diagnostic) {
	lx := lexer.New(text, file)
	toks := lx.Tokenize()
	p := New(toks)
	q, perrs := p.ParseQuery()
	diags := append(append([]diagnostics.Diagnostic(nil), lx.Diagnostics()...), perrs...)
	return q, diags
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) atEnd() bool       { return p.cur().Kind == token.EOF }
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind token.Kind, lexeme string) bool {
	t := p.cur()
	return t.Kind == kind && (lexeme == "" || t.Lexeme == lexeme)
}

func (p *Parser) checkKeyword(kw string) bool {
	return p.check(token.Keyword, kw)
}

func (p *Parser) checkOp(op string) bool {
	return p.check(token.Operator, op)
}

func (p *Parser) checkPunct(s string) bool {
	return p.check(token.Punctuation, s)
}

func (p *Parser) errAt(pos token.Pos, format string, args ...interface{}) {
	p.diags = append(p.diags, diagnostics.At(diagnostics.Syntax, pos, format, args...))
}

// expectKeyword consumes kw or records a diagnostic and returns ok=false
// without advancing, so the caller can decide how to recover.
func (p *Parser) expectKeyword(kw string) (token.Token, bool) {
	if p.checkKeyword(kw) {
		return p.advance(), true
	}
	p.errAt(p.cur().Start, "expected %q, found %q", kw, p.cur().Lexeme)
	return token.Token{}, false
}

func (p *Parser) expectPunct(s string) (token.Token, bool) {
	if p.checkPunct(s) {
		return p.advance(), true
	}
	p.errAt(p.cur().Start, "expected %q, found %q", s, p.cur().Lexeme)
	return token.Token{}, false
}

func (p *Parser) expectIdentifier() (token.Token, bool) {
	if p.cur().Kind == token.Identifier || p.cur().Kind == token.QuotedIdentifier {
		return p.advance(), true
	}
	p.errAt(p.cur().Start, "expected identifier, found %q", p.cur().Lexeme)
	return token.Token{}, false
}

// resync skips tokens up to (but not including) the next "|" or ";" or EOF,
// the recovery strategy named in spec §4.2/§9.
func (p *Parser) resync() {
	for !p.atEnd() && p.cur().Kind != token.Pipe && !p.checkPunct(";") {
		p.advance()
	}
}

// ParseQuery parses LetStmt* TableRef ("|" Operation)* eof.
func (p *Parser) ParseQuery() (*ast.Query, []diagnostics.Diagnostic) {
	start := p.cur().Start
	q := &ast.Query{}

	for p.checkKeyword("let") {
		if stmt, ok := p.parseLetStatement(); ok {
			q.Lets = append(q.Lets, stmt)
		} else {
			p.resync()
			if p.checkPunct(";") {
				p.advance()
			}
		}
	}

	tableRef, ok := p.parseTableRef()
	if !ok {
		q.Sp = ast.Span{Start: start, End: p.cur().Start}
		return q, p.diags
	}
	q.Table = tableRef

	for p.cur().Kind == token.Pipe {
		p.advance()
		op, ok := p.parseOperation()
		if ok {
			q.Pipeline = append(q.Pipeline, op)
		} else {
			p.resync()
			if p.cur().Kind != token.Pipe && !p.atEnd() {
				// resync stopped at a ";" rather than a "|"; stop trying to
				// parse further operations.
				break
			}
		}
	}

	q.Sp = ast.Span{Start: start, End: p.cur().Start}
	return q, p.diags
}

func (p *Parser) parseLetStatement() (ast.LetStatement, bool) {
	start := p.cur().Start
	p.advance() // "let"
	name, ok := p.expectIdentifier()
	if !ok {
		return ast.LetStatement{}, false
	}
	if _, ok := p.expectOperatorEq(); !ok {
		return ast.LetStatement{}, false
	}
	expr, ok := p.parseExpr()
	if !ok {
		return ast.LetStatement{}, false
	}
	end := p.cur().Start
	if p.checkPunct(";") {
		p.advance()
	}
	return ast.LetStatement{Sp: ast.Span{Start: start, End: end}, Name: name.Lexeme, Expr: expr}, true
}

// expectOperatorEq consumes the "=" assignment operator (lexed as an
// Operator token "==" is a distinct lexeme; plain "=" is its own operator).
func (p *Parser) expectOperatorEq() (token.Token, bool) {
	if p.checkOp("=") {
		return p.advance(), true
	}
	p.errAt(p.cur().Start, "expected \"=\", found %q", p.cur().Lexeme)
	return token.Token{}, false
}

func (p *Parser) parseTableRef() (ast.TableRef, bool) {
	start := p.cur().Start
	name, ok := p.expectIdentifier()
	if !ok {
		return ast.TableRef{}, false
	}
	ref := ast.TableRef{Sp: ast.Span{Start: start}, Name: name.Lexeme}
	if p.cur().Kind == token.Identifier {
		alias := p.advance()
		ref.Alias = alias.Lexeme
	}
	ref.Sp.End = p.cur().Start
	return ref, true
}

func (p *Parser) parseOperation() (ast.Operation, bool) {
	t := p.cur()
	if t.Kind != token.Keyword {
		p.errAt(t.Start, "expected a pipeline operation, found %q", t.Lexeme)
		return nil, false
	}
	switch t.Lexeme {
	case "where":
		return p.parseWhere()
	case "project":
		return p.parseProject()
	case "extend":
		return p.parseExtend()
	case "summarize":
		return p.parseSummarize()
	case "order":
		return p.parseOrder()
	case "top":
		return p.parseTop()
	case "limit":
		return p.parseLimit()
	case "distinct":
		return p.parseDistinct()
	case "join":
		return p.parseJoin()
	case "union":
		return p.parseUnion()
	default:
		p.errAt(t.Start, "unexpected keyword %q at start of pipeline operation", t.Lexeme)
		return nil, false
	}
}

func (p *Parser) parseWhere() (ast.Operation, bool) {
	start := p.advance().Start // "where"
	cond, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Where{Sp: ast.Span{Start: start, End: p.cur().Start}, Cond: cond}, true
}

func (p *Parser) parseProject() (ast.Operation, bool) {
	start := p.advance().Start // "project"
	var cols []ast.ProjectCol
	for {
		e, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		col := ast.ProjectCol{Expr: e}
		if p.checkKeyword("as") {
			p.advance()
			name, ok := p.expectIdentifier()
			if !ok {
				return nil, false
			}
			col.Alias = name.Lexeme
		}
		cols = append(cols, col)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &ast.Project{Sp: ast.Span{Start: start, End: p.cur().Start}, Cols: cols}, true
}

func (p *Parser) parseExtend() (ast.Operation, bool) {
	start := p.advance().Start // "extend"
	var assigns []ast.ExtendAssign
	for {
		name, ok := p.expectIdentifier()
		if !ok {
			return nil, false
		}
		if _, ok := p.expectOperatorEq(); !ok {
			return nil, false
		}
		e, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		assigns = append(assigns, ast.ExtendAssign{Name: name.Lexeme, Expr: e})
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &ast.Extend{Sp: ast.Span{Start: start, End: p.cur().Start}, Assigns: assigns}, true
}

func (p *Parser) parseSummarize() (ast.Operation, bool) {
	start := p.advance().Start // "summarize"
	var aggs []ast.Agg
	for {
		agg, ok := p.parseAgg()
		if !ok {
			return nil, false
		}
		aggs = append(aggs, agg)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	var groupBy []ast.Expr
	if p.checkKeyword("by") {
		p.advance()
		for {
			e, ok := p.parseExpr()
			if !ok {
				return nil, false
			}
			groupBy = append(groupBy, e)
			if p.checkPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return &ast.Summarize{Sp: ast.Span{Start: start, End: p.cur().Start}, Aggs: aggs, GroupBy: groupBy}, true
}

func (p *Parser) parseAgg() (ast.Agg, bool) {
	name, ok := p.expectIdentifier()
	if !ok {
		return ast.Agg{}, false
	}
	if _, ok := p.expectPunct("("); !ok {
		return ast.Agg{}, false
	}
	var arg ast.Expr
	if !p.checkPunct(")") {
		a, ok := p.parseExpr()
		if !ok {
			return ast.Agg{}, false
		}
		arg = a
	}
	if _, ok := p.expectPunct(")"); !ok {
		return ast.Agg{}, false
	}
	agg := ast.Agg{Fn: name.Lexeme, Arg: arg}
	if p.checkKeyword("as") {
		p.advance()
		alias, ok := p.expectIdentifier()
		if !ok {
			return ast.Agg{}, false
		}
		agg.Alias = alias.Lexeme
	}
	return agg, true
}

func (p *Parser) parseOrder() (ast.Operation, bool) {
	start := p.advance().Start // "order"
	if _, ok := p.expectKeyword("by"); !ok {
		return nil, false
	}
	items, ok := p.parseOrderItems()
	if !ok {
		return nil, false
	}
	return &ast.Order{Sp: ast.Span{Start: start, End: p.cur().Start}, Items: items}, true
}

func (p *Parser) parseOrderItems() ([]ast.OrderItem, bool) {
	var items []ast.OrderItem
	for {
		e, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		item := ast.OrderItem{Expr: e}
		if p.checkKeyword("asc") {
			p.advance()
		} else if p.checkKeyword("desc") {
			p.advance()
			item.Desc = true
		}
		items = append(items, item)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, true
}

func (p *Parser) parseTop() (ast.Operation, bool) {
	start := p.advance().Start // "top"
	n, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	top := &ast.Top{N: n}
	if p.checkKeyword("by") {
		p.advance()
		items, ok := p.parseOrderItems()
		if !ok {
			return nil, false
		}
		top.Items = items
	}
	top.Sp = ast.Span{Start: start, End: p.cur().Start}
	return top, true
}

func (p *Parser) parseLimit() (ast.Operation, bool) {
	start := p.advance().Start // "limit"
	n, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Limit{Sp: ast.Span{Start: start, End: p.cur().Start}, N: n}, true
}

func (p *Parser) parseDistinct() (ast.Operation, bool) {
	start := p.advance().Start // "distinct"
	var cols []ast.Expr
	if !p.atBoundary() {
		for {
			e, ok := p.parseExpr()
			if !ok {
				return nil, false
			}
			cols = append(cols, e)
			if p.checkPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return &ast.Distinct{Sp: ast.Span{Start: start, End: p.cur().Start}, Cols: cols}, true
}

// atBoundary reports whether the cursor sits on a token that ends the
// current operation (next pipe, semicolon, or EOF) — used by operations
// whose trailing argument list is optional, such as Distinct and Union.
func (p *Parser) atBoundary() bool {
	return p.atEnd() || p.cur().Kind == token.Pipe || p.checkPunct(";")
}

func (p *Parser) parseJoin() (ast.Operation, bool) {
	start := p.advance().Start // "join"
	kind := ast.InnerJoin
	switch {
	case p.checkKeyword("inner"):
		p.advance()
	case p.checkKeyword("left"):
		p.advance()
		kind = ast.LeftJoin
	case p.checkKeyword("right"):
		p.advance()
		kind = ast.RightJoin
	case p.checkKeyword("full"):
		p.advance()
		kind = ast.FullJoin
	}
	table, ok := p.parseTableRef()
	if !ok {
		return nil, false
	}
	if _, ok := p.expectKeyword("on"); !ok {
		return nil, false
	}
	on, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	return &ast.Join{Sp: ast.Span{Start: start, End: p.cur().Start}, Kind: kind, Table: table, On: on}, true
}

func (p *Parser) parseUnion() (ast.Operation, bool) {
	start := p.advance().Start // "union"
	var tables []ast.TableRef
	for {
		t, ok := p.parseTableRef()
		if !ok {
			return nil, false
		}
		tables = append(tables, t)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &ast.Union{Sp: ast.Span{Start: start, End: p.cur().Start}, Tables: tables}, true
}

// ---- Expressions: Pratt-style precedence climbing, low to high. ----

func (p *Parser) parseExpr() (ast.Expr, bool) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, bool) {
	left, ok := p.parseAnd()
	if !ok {
		return nil, false
	}
	for p.checkKeyword("or") {
		opTok := p.advance()
		right, ok := p.parseAnd()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseAnd() (ast.Expr, bool) {
	left, ok := p.parseEquality()
	if !ok {
		return nil, false
	}
	for p.checkKeyword("and") {
		opTok := p.advance()
		right, ok := p.parseEquality()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseEquality() (ast.Expr, bool) {
	left, ok := p.parseComparison()
	if !ok {
		return nil, false
	}
	for p.checkOp("==") || p.checkOp("!=") {
		opTok := p.advance()
		right, ok := p.parseComparison()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseComparison() (ast.Expr, bool) {
	left, ok := p.parseStringOp()
	if !ok {
		return nil, false
	}
	for {
		switch {
		case p.checkOp("<") || p.checkOp("<=") || p.checkOp(">") || p.checkOp(">=") || p.checkOp("<>"):
			opTok := p.advance()
			right, ok := p.parseStringOp()
			if !ok {
				return nil, false
			}
			left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
			continue
		case p.checkKeyword("in") || p.checkOp("!in"):
			opTok := p.advance()
			list, ok := p.parseParenList()
			if !ok {
				return nil, false
			}
			left = &ast.Binary{Sp: span(left, list), Op: normalizedInOp(opTok), L: left, R: list}
			continue
		case p.checkKeyword("between"):
			p.advance()
			lo, hi, ok := p.parseBetweenRange()
			if !ok {
				return nil, false
			}
			left = &ast.Call{Sp: span(left, hi), Name: "between", Args: []ast.Expr{left, lo, hi}}
			continue
		}
		break
	}
	return left, true
}

func normalizedInOp(t token.Token) string {
	if t.Kind == token.Operator {
		return t.Lexeme // "!in"
	}
	return "in"
}

// parseParenList parses "(" Expr ("," Expr)* ")" into an ast.Array whose
// elements are the listed values, used for the right-hand side of in/!in.
func (p *Parser) parseParenList() (ast.Expr, bool) {
	start, ok := p.expectPunct("(")
	if !ok {
		return nil, false
	}
	var elems []ast.Expr
	for {
		e, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		elems = append(elems, e)
		if p.checkPunct(",") {
			p.advance()
			continue
		}
		break
	}
	end, ok := p.expectPunct(")")
	if !ok {
		return nil, false
	}
	return &ast.Array{Sp: ast.Span{Start: start.Start, End: end.End}, Elems: elems}, true
}

// parseBetweenRange parses "(" Expr ".." Expr ")".
func (p *Parser) parseBetweenRange() (lo, hi ast.Expr, ok bool) {
	if _, ok := p.expectPunct("("); !ok {
		return nil, nil, false
	}
	lo, ok = p.parseAdditive()
	if !ok {
		return nil, nil, false
	}
	if !p.consumeRangeDots() {
		p.errAt(p.cur().Start, "expected \"..\" in between range")
		return nil, nil, false
	}
	hi, ok = p.parseAdditive()
	if !ok {
		return nil, nil, false
	}
	if _, ok := p.expectPunct(")"); !ok {
		return nil, nil, false
	}
	return lo, hi, true
}

// consumeRangeDots consumes the ".." separator, which the lexer emits as
// two adjacent Punctuation "." tokens.
func (p *Parser) consumeRangeDots() bool {
	if p.checkPunct(".") {
		p.advance()
		if p.checkPunct(".") {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) parseStringOp() (ast.Expr, bool) {
	left, ok := p.parseAdditive()
	if !ok {
		return nil, false
	}
	for {
		isStringKw := p.checkKeyword("contains") || p.checkKeyword("startswith") ||
			p.checkKeyword("endswith") || p.checkKeyword("matches") || p.checkKeyword("like")
		isNegatedOp := p.checkOp("!contains") || p.checkOp("!startswith") ||
			p.checkOp("!endswith") || p.checkOp("!matches") || p.checkOp("!like")
		if !isStringKw && !isNegatedOp {
			break
		}
		opTok := p.advance()
		right, ok := p.parseAdditive()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseAdditive() (ast.Expr, bool) {
	left, ok := p.parseMultiplicative()
	if !ok {
		return nil, false
	}
	for p.checkOp("+") || p.checkOp("-") {
		opTok := p.advance()
		right, ok := p.parseMultiplicative()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseMultiplicative() (ast.Expr, bool) {
	left, ok := p.parseUnary()
	if !ok {
		return nil, false
	}
	for p.checkOp("*") || p.checkOp("/") || p.checkOp("%") {
		opTok := p.advance()
		right, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		left = &ast.Binary{Sp: span(left, right), Op: opTok.Lexeme, L: left, R: right}
	}
	return left, true
}

func (p *Parser) parseUnary() (ast.Expr, bool) {
	if p.checkKeyword("not") || p.checkOp("-") || p.checkOp("+") {
		opTok := p.advance()
		x, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		return &ast.Unary{Sp: ast.Span{Start: opTok.Start, End: x.Span().End}, Op: opTok.Lexeme, X: x}, true
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, bool) {
	e, ok := p.parsePrimary()
	if !ok {
		return nil, false
	}
	for {
		switch {
		case p.checkPunct("."):
			p.advance()
			name, ok := p.expectIdentifier()
			if !ok {
				return nil, false
			}
			e = &ast.Member{Sp: ast.Span{Start: e.Span().Start, End: name.End}, Obj: e, Prop: name.Lexeme}
			continue
		case p.checkPunct("["):
			p.advance()
			idx, ok := p.parseExpr()
			if !ok {
				return nil, false
			}
			end, ok := p.expectPunct("]")
			if !ok {
				return nil, false
			}
			e = &ast.Member{Sp: ast.Span{Start: e.Span().Start, End: end.End}, Obj: e, Computed: true, Index: idx}
			continue
		case p.checkPunct("(") && isCallable(e):
			id := e.(*ast.Identifier)
			p.advance()
			var args []ast.Expr
			if !p.checkPunct(")") {
				for {
					a, ok := p.parseExpr()
					if !ok {
						return nil, false
					}
					args = append(args, a)
					if p.checkPunct(",") {
						p.advance()
						continue
					}
					break
				}
			}
			end, ok := p.expectPunct(")")
			if !ok {
				return nil, false
			}
			e = &ast.Call{Sp: ast.Span{Start: id.Sp.Start, End: end.End}, Name: id.Name, Args: args}
			continue
		}
		break
	}
	return e, true
}

func isCallable(e ast.Expr) bool {
	_, ok := e.(*ast.Identifier)
	return ok
}

func (p *Parser) parsePrimary() (ast.Expr, bool) {
	t := p.cur()
	switch t.Kind {
	case token.String:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTString}, true
	case token.Integer:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTInteger}, true
	case token.Float:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTFloat}, true
	case token.Boolean:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTBoolean}, true
	case token.Null:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTNull}, true
	case token.Datetime:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTDatetime}, true
	case token.Timespan:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTTimespan}, true
	case token.Guid:
		p.advance()
		return &ast.Literal{Sp: spanOf(t), Value: t.Value, DType: ast.DTGuid}, true
	case token.Identifier:
		p.advance()
		return &ast.Identifier{Sp: spanOf(t), Name: t.Lexeme}, true
	case token.QuotedIdentifier:
		p.advance()
		return &ast.Identifier{Sp: spanOf(t), Name: t.Value.Str, Quoted: true}, true
	case token.Punctuation:
		switch t.Lexeme {
		case "(":
			p.advance()
			e, ok := p.parseExpr()
			if !ok {
				return nil, false
			}
			if _, ok := p.expectPunct(")"); !ok {
				return nil, false
			}
			return e, true
		case "[":
			return p.parseArrayLiteral()
		}
	case token.Keyword:
		if t.Lexeme == "case" {
			return p.parseCase()
		}
	}
	p.errAt(t.Start, "unexpected token %q in expression", t.Lexeme)
	return nil, false
}

func (p *Parser) parseArrayLiteral() (ast.Expr, bool) {
	start := p.advance() // "["
	var elems []ast.Expr
	if !p.checkPunct("]") {
		for {
			e, ok := p.parseExpr()
			if !ok {
				return nil, false
			}
			elems = append(elems, e)
			if p.checkPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	end, ok := p.expectPunct("]")
	if !ok {
		return nil, false
	}
	return &ast.Array{Sp: ast.Span{Start: start.Start, End: end.End}, Elems: elems}, true
}

func (p *Parser) parseCase() (ast.Expr, bool) {
	start := p.advance() // "case"
	var arms []ast.CaseArm
	for p.checkKeyword("when") {
		p.advance()
		when, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		if _, ok := p.expectKeyword("then"); !ok {
			return nil, false
		}
		then, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		arms = append(arms, ast.CaseArm{When: when, Then: then})
	}
	if len(arms) == 0 {
		p.errAt(p.cur().Start, "expected at least one \"when\" arm in case expression")
		return nil, false
	}
	var elseExpr ast.Expr
	if p.checkKeyword("else") {
		p.advance()
		e, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		elseExpr = e
	}
	end, ok := p.expectKeyword("end")
	if !ok {
		return nil, false
	}
	return &ast.Case{Sp: ast.Span{Start: start.Start, End: end.End}, Arms: arms, Else: elseExpr}, true
}

func spanOf(t token.Token) ast.Span { return ast.Span{Start: t.Start, End: t.End} }

func span(a, b ast.Expr) ast.Span { return ast.Span{Start: a.Span().Start, End: b.Span().End} }
