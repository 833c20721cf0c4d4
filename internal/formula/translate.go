package formula

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Result is the outcome of translating one formula. Formula is empty when the
// input was empty; TemporaryMetrics holds every distinct sigil-prefixed symbol
// name referenced anywhere in the formula, sigil stripped, sorted.
type Result struct {
	Formula          string
	TemporaryMetrics []string
}

// metricSigil prefixes symbols that reference intermediate metrics which must
// be fetched or computed before the formula can be evaluated.
const metricSigil = "$"

// goalsBase is the only symbol legal as a column accessor base.
const goalsBase = "$goals"

var goalDimPattern = regexp.MustCompile(`^idgoal=(\d+)$`)

// operatorSymbols maps every operation name the parser can produce to the
// symbol emitted in the host syntax. A missing entry fails translation; a new
// parser operation without a table entry is a bug, not a silent passthrough.
var operatorSymbols = map[string]string{
	"add":      "+",
	"subtract": "-",
	"multiply": "*",
	"divide":   "/",
	"mod":      "%",
	"pow":      "^",

	"equal":     "==",
	"unequal":   "!=",
	"smaller":   "<",
	"smallerEq": "<=",
	"larger":    ">",
	"largerEq":  ">=",

	"and": "and",
	"or":  "or",
	"xor": "xor",
	"not": "not",

	"bitAnd": "&",
	"bitOr":  "|",
	"bitNot": "~",

	"leftShift":       "<<",
	"rightArithShift": ">>",
	"rightLogShift":   ">>>",

	"unaryMinus": "-",
	"unaryPlus":  "+",
	"factorial":  "!",
}

// functionNames maps the platform's supported function names to the host's.
// Any function outside this table fails translation.
var functionNames = map[string]string{
	"min": "NARY_MIN",
	"max": "NARY_MAX",
	"abs": "ABS",
}

// Translate parses a metric formula, validates that only supported constructs
// appear, and re-emits it in the host's expression syntax. An empty formula is
// not an error: it yields a zero Result. Translation is all-or-nothing; any
// unsupported construct fails with the offending source text.
func Translate(formula string) (Result, error) {
	if formula == "" {
		return Result{}, nil
	}

	tree, err := parse(formula)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse formula %q: %w", formula, err)
	}

	tr := &translator{src: formula}
	metrics := tr.collectTemporaryMetrics(tree)
	text, err := tr.emit(tree)
	if err != nil {
		return Result{}, err
	}

	return Result{Formula: text, TemporaryMetrics: metrics}, nil
}

type translator struct {
	src string
}

func (t *translator) text(n Node) string {
	sp := n.nodeSpan()
	return t.src[sp.start:sp.end]
}

// collectTemporaryMetrics walks the whole tree, independent of emission, and
// gathers sigil-prefixed symbol names. Each distinct name appears once.
func (t *translator) collectTemporaryMetrics(tree Node) []string {
	seen := make(map[string]struct{})
	walk(tree, func(n Node) {
		sym, ok := n.(*SymbolNode)
		if !ok {
			return
		}
		// goal columns resolve through the accessor, not as temporary metrics
		if sym.Name == goalsBase {
			return
		}
		if strings.HasPrefix(sym.Name, metricSigil) && len(sym.Name) > len(metricSigil) {
			seen[sym.Name[len(metricSigil):]] = struct{}{}
		}
	})
	if len(seen) == 0 {
		return nil
	}
	metrics := make([]string, 0, len(seen))
	for name := range seen {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)
	return metrics
}

// emit renders a node in the host syntax, variant by variant. The type switch
// is exhaustive over the AST; an unlisted variant is reported as unknown
// rather than silently dropped.
func (t *translator) emit(node Node) (string, error) {
	switch n := node.(type) {
	case *ConstantNode:
		if n.IsString {
			return `"` + n.Value + `"`, nil
		}
		return n.Value, nil

	case *SymbolNode:
		return n.Name, nil

	case *AccessorNode:
		return t.emitAccessor(n)

	case *ConditionalNode:
		cond, err := t.emit(n.Cond)
		if err != nil {
			return "", err
		}
		trueBranch, err := t.emit(n.True)
		if err != nil {
			return "", err
		}
		falseBranch, err := t.emit(n.False)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("IF(%s, %s, %s)", cond, trueBranch, falseBranch), nil

	case *OperatorNode:
		return t.emitOperator(n)

	case *RelationalNode:
		return t.emitRelational(n)

	case *ParenthesisNode:
		inner, err := t.emit(n.Child)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil

	case *FunctionCallNode:
		return t.emitFunctionCall(n)

	case *ArrayNode:
		return "", t.unsupported("array literal", n)
	case *AssignmentNode:
		return "", t.unsupported("assignment", n)
	case *BlockNode:
		return "", t.unsupported("statement block", n)
	case *RangeNode:
		return "", t.unsupported("range expression", n)
	case *ObjectNode:
		return "", t.unsupported("object literal", n)
	case *FunctionDefNode:
		return "", t.unsupported("function definition", n)

	default:
		return "", fmt.Errorf("unknown node %T in formula %q", node, t.src)
	}
}

func (t *translator) unsupported(kind string, n Node) error {
	return fmt.Errorf("unsupported %s %q in formula", kind, t.text(n))
}

// emitAccessor handles the goal-scoped column reference
// $goals["idgoal=N"]["column"], the only accessor shape the host supports.
func (t *translator) emitAccessor(n *AccessorNode) (string, error) {
	if len(n.Index) != 1 {
		return "", fmt.Errorf("unsupported column accessor %q: expected a single index dimension", t.text(n))
	}

	inner, ok := n.Object.(*AccessorNode)
	if !ok || len(inner.Index) != 1 {
		return "", fmt.Errorf("unsupported column accessor %q: expected %s[\"idgoal=<id>\"][\"<column>\"]", t.text(n), goalsBase)
	}
	base, ok := inner.Object.(*SymbolNode)
	if !ok || base.Name != goalsBase {
		return "", fmt.Errorf("unsupported column accessor %q: only %s columns can be indexed", t.text(n), goalsBase)
	}

	goalDim, ok := inner.Index[0].(*ConstantNode)
	if !ok || !goalDim.IsString {
		return "", fmt.Errorf("unsupported column accessor %q: goal index must be a constant string", t.text(n))
	}
	m := goalDimPattern.FindStringSubmatch(goalDim.Value)
	if m == nil {
		return "", fmt.Errorf("unsupported column accessor %q: goal index must match idgoal=<id>", t.text(n))
	}

	column, err := t.emitDimension(n.Index[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s", goalsBase, m[1], column), nil
}

// emitDimension renders an index dimension as bare text: string constants
// lose their quotes, everything else emits normally.
func (t *translator) emitDimension(dim Node) (string, error) {
	if c, ok := dim.(*ConstantNode); ok {
		return c.Value, nil
	}
	return t.emit(dim)
}

func (t *translator) emitOperator(n *OperatorNode) (string, error) {
	symbol, ok := operatorSymbols[n.Op]
	if !ok {
		return "", fmt.Errorf("unsupported operator %q in %q", n.Op, t.text(n))
	}

	parts := make([]string, len(n.Operands))
	for i, operand := range n.Operands {
		text, err := t.emit(operand)
		if err != nil {
			return "", err
		}
		parts[i] = text
	}

	if len(parts) == 1 {
		if n.Op == "factorial" {
			return parts[0] + symbol, nil
		}
		if isWordSymbol(symbol) {
			return symbol + " " + parts[0], nil
		}
		return symbol + parts[0], nil
	}
	return strings.Join(parts, " "+symbol+" "), nil
}

func (t *translator) emitRelational(n *RelationalNode) (string, error) {
	out, err := t.emit(n.Operands[0])
	if err != nil {
		return "", err
	}
	for i, op := range n.Ops {
		symbol, ok := operatorSymbols[op]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q in %q", op, t.text(n))
		}
		next, err := t.emit(n.Operands[i+1])
		if err != nil {
			return "", err
		}
		out += " " + symbol + " " + next
	}
	return out, nil
}

func (t *translator) emitFunctionCall(n *FunctionCallNode) (string, error) {
	name, ok := functionNames[n.Name]
	if !ok {
		return "", fmt.Errorf("unsupported function %q in %q", n.Name, t.text(n))
	}
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		text, err := t.emit(arg)
		if err != nil {
			return "", err
		}
		args[i] = text
	}
	return name + "(" + strings.Join(args, ", ") + ")", nil
}

func isWordSymbol(symbol string) bool {
	for i := 0; i < len(symbol); i++ {
		c := symbol[i]
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return len(symbol) > 0
}
