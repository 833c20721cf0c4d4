package formula

import (
	"fmt"
)

// parser is a precedence-climbing parser for the platform's formula grammar.
// It accepts more than the translator emits: disallowed constructs (arrays,
// assignments, ranges, objects, function definitions, blocks) parse into their
// own node variants so emission can reject them by name.
type parser struct {
	src  string
	toks []token
	pos  int

	// nesting counts open parens/brackets/braces. condLevels records the
	// nesting depth of each pending ternary, so ':' terminates the ternary
	// at its own depth instead of starting a range.
	nesting    int
	condLevels []int
}

func parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	node, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, p.errUnexpected()
	}
	return node, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) prev() token { return p.toks[p.pos-1] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) isOp(sym string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == sym
}

func (p *parser) isKeyword(word string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) errUnexpected() error {
	t := p.cur()
	if t.kind == tokEOF {
		return fmt.Errorf("unexpected end of formula")
	}
	return fmt.Errorf("unexpected token %q at position %d", t.text, t.start)
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.cur().kind != kind {
		return fmt.Errorf("expected %s at position %d", what, p.cur().start)
	}
	p.next()
	return nil
}

func (p *parser) parseProgram() (Node, error) {
	start := p.cur().start
	first, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokSemicolon {
		return first, nil
	}
	exprs := []Node{first}
	for p.cur().kind == tokSemicolon {
		p.next()
		if p.cur().kind == tokEOF {
			break
		}
		e, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return &BlockNode{span{start, p.prev().end}, exprs}, nil
}

func (p *parser) parseAssignment() (Node, error) {
	start := p.cur().start
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if !p.isOp("=") {
		return left, nil
	}
	p.next()
	body, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	sp := span{start, p.prev().end}

	// f(x, y) = body is a function definition when every argument is a
	// bare symbol.
	if call, ok := left.(*FunctionCallNode); ok {
		params := make([]string, 0, len(call.Args))
		allSymbols := true
		for _, arg := range call.Args {
			sym, ok := arg.(*SymbolNode)
			if !ok {
				allSymbols = false
				break
			}
			params = append(params, sym.Name)
		}
		if allSymbols {
			return &FunctionDefNode{sp, call.Name, params, body}, nil
		}
	}
	return &AssignmentNode{sp, left, body}, nil
}

func (p *parser) parseConditional() (Node, error) {
	start := p.cur().start
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokQuestion {
		return cond, nil
	}
	p.next()
	p.condLevels = append(p.condLevels, p.nesting)
	trueBranch, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokColon, "':' in conditional"); err != nil {
		return nil, err
	}
	p.condLevels = p.condLevels[:len(p.condLevels)-1]
	falseBranch, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return &ConditionalNode{span{start, p.prev().end}, cond, trueBranch, falseBranch}, nil
}

// binaryOp describes one infix token the current level accepts.
type binaryOp struct {
	symbol  string // operator token text, or keyword text
	keyword bool
	name    string // internal operation name, key into operatorSymbols
}

func (p *parser) matchBinary(ops []binaryOp) (string, bool) {
	for _, op := range ops {
		if op.keyword && p.isKeyword(op.symbol) {
			return op.name, true
		}
		if !op.keyword && p.isOp(op.symbol) {
			return op.name, true
		}
	}
	return "", false
}

func (p *parser) parseBinaryLevel(ops []binaryOp, operand func() (Node, error)) (Node, error) {
	start := p.cur().start
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		name, ok := p.matchBinary(ops)
		if !ok {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &OperatorNode{span{start, p.prev().end}, name, []Node{left, right}}
	}
}

func (p *parser) parseLogicalOr() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{{"or", true, "or"}}, p.parseLogicalXor)
}

func (p *parser) parseLogicalXor() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{{"xor", true, "xor"}}, p.parseLogicalAnd)
}

func (p *parser) parseLogicalAnd() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{{"and", true, "and"}}, p.parseBitOr)
}

func (p *parser) parseBitOr() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{{"|", false, "bitOr"}}, p.parseBitAnd)
}

func (p *parser) parseBitAnd() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{{"&", false, "bitAnd"}}, p.parseRelational)
}

var relationalOps = []binaryOp{
	{"==", false, "equal"},
	{"!=", false, "unequal"},
	{"<=", false, "smallerEq"},
	{">=", false, "largerEq"},
	{"<", false, "smaller"},
	{">", false, "larger"},
}

// parseRelational collapses two or more chained comparisons into a single
// RelationalNode; a lone comparison stays an OperatorNode.
func (p *parser) parseRelational() (Node, error) {
	start := p.cur().start
	first, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	var ops []string
	operands := []Node{first}
	for {
		name, ok := p.matchBinary(relationalOps)
		if !ok {
			break
		}
		p.next()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		ops = append(ops, name)
		operands = append(operands, right)
	}
	switch len(ops) {
	case 0:
		return first, nil
	case 1:
		return &OperatorNode{span{start, p.prev().end}, ops[0], operands}, nil
	default:
		return &RelationalNode{span{start, p.prev().end}, ops, operands}, nil
	}
}

func (p *parser) parseShift() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{
		{"<<", false, "leftShift"},
		{">>>", false, "rightLogShift"},
		{">>", false, "rightArithShift"},
	}, p.parseRange)
}

// rangeAllowed reports whether ':' starts a range here, rather than
// terminating the ternary pending at this nesting depth.
func (p *parser) rangeAllowed() bool {
	if p.cur().kind != tokColon {
		return false
	}
	if n := len(p.condLevels); n > 0 && p.condLevels[n-1] == p.nesting {
		return false
	}
	return true
}

func (p *parser) parseRange() (Node, error) {
	start := p.cur().start
	first, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.rangeAllowed() {
		return first, nil
	}
	parts := []Node{first}
	for p.rangeAllowed() {
		p.next()
		part, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return &RangeNode{span{start, p.prev().end}, parts}, nil
}

func (p *parser) parseAdditive() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{
		{"+", false, "add"},
		{"-", false, "subtract"},
	}, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() (Node, error) {
	return p.parseBinaryLevel([]binaryOp{
		{"*", false, "multiply"},
		{"/", false, "divide"},
		{"%", false, "mod"},
		{"mod", true, "mod"},
	}, p.parseUnary)
}

var unaryOps = []binaryOp{
	{"-", false, "unaryMinus"},
	{"+", false, "unaryPlus"},
	{"~", false, "bitNot"},
	{"not", true, "not"},
}

func (p *parser) parseUnary() (Node, error) {
	start := p.cur().start
	for _, op := range unaryOps {
		match := (op.keyword && p.isKeyword(op.symbol)) || (!op.keyword && p.isOp(op.symbol))
		if !match {
			continue
		}
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &OperatorNode{span{start, p.prev().end}, op.name, []Node{operand}}, nil
	}
	return p.parsePow()
}

func (p *parser) parsePow() (Node, error) {
	start := p.cur().start
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.isOp("^") {
		return left, nil
	}
	p.next()
	// right-associative: the exponent may itself carry unary operators
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &OperatorNode{span{start, p.prev().end}, "pow", []Node{left, right}}, nil
}

func (p *parser) parsePostfix() (Node, error) {
	start := p.cur().start
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.cur().kind == tokLParen:
			sym, ok := base.(*SymbolNode)
			if !ok {
				return base, nil
			}
			args, err := p.parseDelimited(tokRParen, "')'")
			if err != nil {
				return nil, err
			}
			base = &FunctionCallNode{span{start, p.prev().end}, sym.Name, args}

		case p.cur().kind == tokLBracket:
			dims, err := p.parseDelimited(tokRBracket, "']'")
			if err != nil {
				return nil, err
			}
			base = &AccessorNode{span{start, p.prev().end}, base, dims}

		case p.isOp("!"):
			p.next()
			base = &OperatorNode{span{start, p.prev().end}, "factorial", []Node{base}}

		default:
			return base, nil
		}
	}
}

// parseDelimited parses a comma-separated expression list between open and
// close tokens. The list may be empty.
func (p *parser) parseDelimited(closing tokenKind, closeName string) ([]Node, error) {
	p.next() // consume the open token
	p.nesting++
	defer func() { p.nesting-- }()

	var items []Node
	if p.cur().kind == closing {
		p.next()
		return items, nil
	}
	for {
		item, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().kind == tokComma {
			p.next()
			continue
		}
		if err := p.expect(closing, closeName); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.next()
		return &ConstantNode{span{t.start, t.end}, t.text, false}, nil

	case tokString:
		p.next()
		return &ConstantNode{span{t.start, t.end}, t.text, true}, nil

	case tokIdent:
		p.next()
		return &SymbolNode{span{t.start, t.end}, t.text}, nil

	case tokLParen:
		p.next()
		p.nesting++
		child, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		p.nesting--
		return &ParenthesisNode{span{t.start, p.prev().end}, child}, nil

	case tokLBracket:
		items, err := p.parseDelimited(tokRBracket, "']'")
		if err != nil {
			return nil, err
		}
		return &ArrayNode{span{t.start, p.prev().end}, items}, nil

	case tokLBrace:
		return p.parseObject()

	default:
		return nil, p.errUnexpected()
	}
}

func (p *parser) parseObject() (Node, error) {
	start := p.cur().start
	p.next() // consume '{'
	p.nesting++
	defer func() { p.nesting-- }()

	var keys []string
	var values []Node
	if p.cur().kind == tokRBrace {
		p.next()
		return &ObjectNode{span{start, p.prev().end}, keys, values}, nil
	}
	for {
		kt := p.cur()
		if kt.kind != tokIdent && kt.kind != tokString {
			return nil, fmt.Errorf("expected object key at position %d", kt.start)
		}
		p.next()
		if err := p.expect(tokColon, "':' after object key"); err != nil {
			return nil, err
		}
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		keys = append(keys, kt.text)
		values = append(values, value)
		if p.cur().kind == tokComma {
			p.next()
			continue
		}
		if err := p.expect(tokRBrace, "'}'"); err != nil {
			return nil, err
		}
		return &ObjectNode{span{start, p.prev().end}, keys, values}, nil
	}
}
