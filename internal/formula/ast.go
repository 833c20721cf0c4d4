package formula

// span marks the half-open byte range a node covers in the source text.
// Error messages quote the offending range.
type span struct {
	start int
	end   int
}

// Node is the interface all expression tree variants implement.
// The tree is built once per translation, traversed read-only, and discarded.
type Node interface {
	nodeSpan() span
}

// ConstantNode is a literal value: a number or a quoted string.
type ConstantNode struct {
	span
	Value    string // raw number text, or string value without quotes
	IsString bool
}

// SymbolNode is a bare name, possibly sigil-prefixed ($nb_visits).
type SymbolNode struct {
	span
	Name string
}

// AccessorNode is a subscript access: object["dim1", "dim2"].
// Chained subscripts nest, the way they appear in the source.
type AccessorNode struct {
	span
	Object Node
	Index  []Node
}

// OperatorNode is a unary or n-ary operation. Op is the parser's internal
// operation name (see operatorSymbols); the emitted symbol comes from the
// operator table, never from the source token directly.
type OperatorNode struct {
	span
	Op       string
	Operands []Node
}

// RelationalNode is a chain of two or more comparisons (a < b <= c).
// len(Ops) == len(Operands)-1.
type RelationalNode struct {
	span
	Ops      []string
	Operands []Node
}

// ConditionalNode is a ternary: Cond ? True : False.
type ConditionalNode struct {
	span
	Cond  Node
	True  Node
	False Node
}

// ParenthesisNode wraps a parenthesized child expression.
type ParenthesisNode struct {
	span
	Child Node
}

// FunctionCallNode is a call: Name(Args...).
type FunctionCallNode struct {
	span
	Name string
	Args []Node
}

// The variants below parse but are deliberately rejected at emission time.
// They exist so a formula using them fails with the construct's name and
// source text instead of a bare syntax error.

// ArrayNode is an array literal: [a, b, c].
type ArrayNode struct {
	span
	Items []Node
}

// AssignmentNode is a variable assignment: name = expr.
type AssignmentNode struct {
	span
	Target Node
	Value  Node
}

// BlockNode is a sequence of semicolon-separated expressions.
type BlockNode struct {
	span
	Exprs []Node
}

// RangeNode is a range expression: start:end or start:step:end.
type RangeNode struct {
	span
	Parts []Node
}

// ObjectNode is an object literal: {key: value, ...}.
type ObjectNode struct {
	span
	Keys   []string
	Values []Node
}

// FunctionDefNode is a function definition: f(x, y) = body.
type FunctionDefNode struct {
	span
	Name   string
	Params []string
	Body   Node
}

func (s span) nodeSpan() span { return s }

// walk calls fn for node and every node reachable from it. Traversal covers
// every variant, including the disallowed ones, so metric collection sees the
// whole tree regardless of whether emission will accept it.
func walk(node Node, fn func(Node)) {
	if node == nil {
		return
	}
	fn(node)
	switch n := node.(type) {
	case *AccessorNode:
		walk(n.Object, fn)
		for _, dim := range n.Index {
			walk(dim, fn)
		}
	case *OperatorNode:
		for _, op := range n.Operands {
			walk(op, fn)
		}
	case *RelationalNode:
		for _, op := range n.Operands {
			walk(op, fn)
		}
	case *ConditionalNode:
		walk(n.Cond, fn)
		walk(n.True, fn)
		walk(n.False, fn)
	case *ParenthesisNode:
		walk(n.Child, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			walk(arg, fn)
		}
	case *ArrayNode:
		for _, item := range n.Items {
			walk(item, fn)
		}
	case *AssignmentNode:
		walk(n.Target, fn)
		walk(n.Value, fn)
	case *BlockNode:
		for _, e := range n.Exprs {
			walk(e, fn)
		}
	case *RangeNode:
		for _, p := range n.Parts {
			walk(p, fn)
		}
	case *ObjectNode:
		for _, v := range n.Values {
			walk(v, fn)
		}
	case *FunctionDefNode:
		walk(n.Body, fn)
	}
}
