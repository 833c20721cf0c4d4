package formula

import (
	"strings"
	"testing"
)

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unexpected character", "1 @ 2"},
		{"unterminated string", `"abc`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lex(tt.src); err == nil {
				t.Errorf("lex(%q) should have failed", tt.src)
			}
		})
	}
}

func TestParseRelationalChain(t *testing.T) {
	node, err := parse("1 < 2 <= 3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rel, ok := node.(*RelationalNode)
	if !ok {
		t.Fatalf("expected RelationalNode, got %T", node)
	}
	if len(rel.Ops) != 2 || len(rel.Operands) != 3 {
		t.Errorf("expected 2 ops and 3 operands, got %d and %d", len(rel.Ops), len(rel.Operands))
	}
	if rel.Ops[0] != "smaller" || rel.Ops[1] != "smallerEq" {
		t.Errorf("unexpected op names: %v", rel.Ops)
	}
}

func TestParseSingleComparisonIsOperator(t *testing.T) {
	node, err := parse("1 < 2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	op, ok := node.(*OperatorNode)
	if !ok {
		t.Fatalf("expected OperatorNode, got %T", node)
	}
	if op.Op != "smaller" || len(op.Operands) != 2 {
		t.Errorf("unexpected operator node: %+v", op)
	}
}

func TestParseChainedSubscriptsNest(t *testing.T) {
	node, err := parse(`$goals["idgoal=3"]["revenue"]`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	outer, ok := node.(*AccessorNode)
	if !ok {
		t.Fatalf("expected AccessorNode, got %T", node)
	}
	inner, ok := outer.Object.(*AccessorNode)
	if !ok {
		t.Fatalf("expected nested AccessorNode, got %T", outer.Object)
	}
	base, ok := inner.Object.(*SymbolNode)
	if !ok || base.Name != "$goals" {
		t.Errorf("expected $goals base, got %#v", inner.Object)
	}
}

func TestParsePrecedence(t *testing.T) {
	// multiplication binds tighter than addition
	node, err := parse("1 + 2 * 3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	add, ok := node.(*OperatorNode)
	if !ok || add.Op != "add" {
		t.Fatalf("expected add at the root, got %#v", node)
	}
	mul, ok := add.Operands[1].(*OperatorNode)
	if !ok || mul.Op != "multiply" {
		t.Errorf("expected multiply as right operand, got %#v", add.Operands[1])
	}
}

func TestParsePowRightAssociative(t *testing.T) {
	node, err := parse("2 ^ 3 ^ 4")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	outer, ok := node.(*OperatorNode)
	if !ok || outer.Op != "pow" {
		t.Fatalf("expected pow at the root, got %#v", node)
	}
	right, ok := outer.Operands[1].(*OperatorNode)
	if !ok || right.Op != "pow" {
		t.Errorf("expected right-nested pow, got %#v", outer.Operands[1])
	}
}

func TestParseSpansCoverSource(t *testing.T) {
	src := "min($a, $b) + 1"
	node, err := parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sp := node.nodeSpan()
	if sp.start != 0 || sp.end != len(src) {
		t.Errorf("root span [%d,%d) should cover the whole source of length %d", sp.start, sp.end, len(src))
	}
	add := node.(*OperatorNode)
	call := add.Operands[0].(*FunctionCallNode)
	if got := src[call.nodeSpan().start:call.nodeSpan().end]; got != "min($a, $b)" {
		t.Errorf("call span = %q, want %q", got, "min($a, $b)")
	}
}

func TestParseErrorsMentionPosition(t *testing.T) {
	_, err := parse("1 + * 2")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "position") {
		t.Errorf("parse error %q should mention a position", err.Error())
	}
}

func TestWalkVisitsEveryNode(t *testing.T) {
	node, err := parse("$a ? min($b, [1, $c]) : {k: $d}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var symbols []string
	walk(node, func(n Node) {
		if sym, ok := n.(*SymbolNode); ok {
			symbols = append(symbols, sym.Name)
		}
	})
	want := map[string]bool{"$a": true, "$b": true, "$c": true, "$d": true}
	for _, name := range symbols {
		delete(want, name)
	}
	if len(want) != 0 {
		t.Errorf("walk missed symbols: %v", want)
	}
}
