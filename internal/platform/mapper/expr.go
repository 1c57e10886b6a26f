package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// ============================================================================
// Expression language: public API
// ============================================================================
//
// Field conditions and transforms are written in a small, closed expression
// language: literals, variable references with dot/index navigation,
// comparison/boolean/arithmetic operators, a ternary, and function calls in
// the fn namespace. The environment is built fresh per evaluation and
// contains only what the engine binds -- source document keys, the working
// value, and the $ctx namespace. Nothing else is reachable: no reflection,
// no I/O, no host access.

// Evaluate compiles (or fetches from cache) the expression and executes it
// against the given environment. Undefined variables resolve to nil.
func Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	prog, err := compileExpression(expression)
	if err != nil {
		return nil, err
	}
	result, err := prog.run(env)
	if err != nil {
		return nil, &ExpressionError{Expression: expression, Message: err.Error(), Cause: err}
	}
	return result, nil
}

// EvaluateCondition evaluates the expression and coerces the result to a
// boolean: nil is false, a boolean is itself, a number is true when nonzero,
// a string is true when non-empty and not "false", anything else is true.
func EvaluateCondition(expression string, env map[string]interface{}) (bool, error) {
	result, err := Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	return Truthy(result), nil
}

// Truthy applies the condition coercion rules to an already-evaluated value.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return true
	}
}

// ============================================================================
// Compilation cache
// ============================================================================

// exprCache memoizes compiled expressions by their literal text. Compilation
// is pure, so concurrent duplicate compiles are harmless.
var exprCache sync.Map // string -> *exprProgram

type exprProgram struct {
	text string
	root *exprNode
}

func compileExpression(text string) (*exprProgram, error) {
	if cached, ok := exprCache.Load(text); ok {
		return cached.(*exprProgram), nil
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ExpressionError{Expression: text, Message: "empty expression"}
	}

	tokens, err := exprTokenize(trimmed)
	if err != nil {
		return nil, &ExpressionError{Expression: text, Message: err.Error(), Cause: err}
	}
	p := &exprParser{tokens: tokens}
	root, err := p.parseTernary()
	if err != nil {
		return nil, &ExpressionError{Expression: text, Message: err.Error(), Cause: err}
	}
	if tok := p.peek(); tok.kind != exEOF {
		err := fmt.Errorf("unexpected token %q at position %d", tok.value, tok.pos)
		return nil, &ExpressionError{Expression: text, Message: err.Error(), Cause: err}
	}

	prog := &exprProgram{text: text, root: root}
	exprCache.Store(text, prog)
	return prog, nil
}

// ============================================================================
// Tokens
// ============================================================================

type exprTokenKind int

const (
	exIdent   exprTokenKind = iota // identifier, keyword or $-prefixed name
	exNumber                       // integer or decimal
	exString                       // 'quoted' or "quoted"
	exDot                          // .
	exLParen                       // (
	exRParen                       // )
	exLBrack                       // [
	exRBrack                       // ]
	exComma                        // ,
	exQuestion                     // ?
	exColon                        // :
	exEq                           // ==
	exNe                           // !=
	exLt                           // <
	exGt                           // >
	exLe                           // <=
	exGe                           // >=
	exAnd                          // &&
	exOr                           // ||
	exNot                          // !
	exPlus                         // +
	exMinus                        // -
	exStar                         // *
	exSlash                        // /
	exPercent                      // %
	exEOF                          // end-of-input
)

type exprToken struct {
	kind  exprTokenKind
	value string
	pos   int
}

// ============================================================================
// Lexer / Tokenizer
// ============================================================================

func exprTokenize(input string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	n := len(input)

	for i < n {
		ch := input[i]

		// skip whitespace
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		start := i

		switch {
		case ch == '.':
			tokens = append(tokens, exprToken{exDot, ".", start})
			i++
		case ch == '(':
			tokens = append(tokens, exprToken{exLParen, "(", start})
			i++
		case ch == ')':
			tokens = append(tokens, exprToken{exRParen, ")", start})
			i++
		case ch == '[':
			tokens = append(tokens, exprToken{exLBrack, "[", start})
			i++
		case ch == ']':
			tokens = append(tokens, exprToken{exRBrack, "]", start})
			i++
		case ch == ',':
			tokens = append(tokens, exprToken{exComma, ",", start})
			i++
		case ch == '?':
			tokens = append(tokens, exprToken{exQuestion, "?", start})
			i++
		case ch == ':':
			tokens = append(tokens, exprToken{exColon, ":", start})
			i++
		case ch == '+':
			tokens = append(tokens, exprToken{exPlus, "+", start})
			i++
		case ch == '-':
			tokens = append(tokens, exprToken{exMinus, "-", start})
			i++
		case ch == '*':
			tokens = append(tokens, exprToken{exStar, "*", start})
			i++
		case ch == '/':
			tokens = append(tokens, exprToken{exSlash, "/", start})
			i++
		case ch == '%':
			tokens = append(tokens, exprToken{exPercent, "%", start})
			i++
		case ch == '=':
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, exprToken{exEq, "==", start})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character '=' at position %d (use '==')", start)
			}
		case ch == '!':
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, exprToken{exNe, "!=", start})
				i += 2
			} else {
				tokens = append(tokens, exprToken{exNot, "!", start})
				i++
			}
		case ch == '<':
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, exprToken{exLe, "<=", start})
				i += 2
			} else {
				tokens = append(tokens, exprToken{exLt, "<", start})
				i++
			}
		case ch == '>':
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, exprToken{exGe, ">=", start})
				i += 2
			} else {
				tokens = append(tokens, exprToken{exGt, ">", start})
				i++
			}
		case ch == '&':
			if i+1 < n && input[i+1] == '&' {
				tokens = append(tokens, exprToken{exAnd, "&&", start})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character '&' at position %d", start)
			}
		case ch == '|':
			if i+1 < n && input[i+1] == '|' {
				tokens = append(tokens, exprToken{exOr, "||", start})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character '|' at position %d", start)
			}
		case ch == '\'' || ch == '"':
			quote := ch
			i++ // skip opening quote
			var sb strings.Builder
			for i < n && input[i] != quote {
				if input[i] == '\\' && i+1 < n {
					i++
					switch input[i] {
					case '\\':
						sb.WriteByte('\\')
					case '\'':
						sb.WriteByte('\'')
					case '"':
						sb.WriteByte('"')
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(input[i])
					}
				} else {
					sb.WriteByte(input[i])
				}
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated string at position %d", start)
			}
			i++ // skip closing quote
			tokens = append(tokens, exprToken{exString, sb.String(), start})
		case ch >= '0' && ch <= '9':
			j := i
			for j < n && input[j] >= '0' && input[j] <= '9' {
				j++
			}
			if j < n && input[j] == '.' && j+1 < n && input[j+1] >= '0' && input[j+1] <= '9' {
				j++ // skip .
				for j < n && input[j] >= '0' && input[j] <= '9' {
					j++
				}
			}
			tokens = append(tokens, exprToken{exNumber, input[i:j], start})
			i = j
		case ch == '$' || ch == '_' || unicode.IsLetter(rune(ch)):
			j := i
			if ch == '$' {
				j++
			}
			for j < n && (input[j] == '_' || unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j]))) {
				j++
			}
			tokens = append(tokens, exprToken{exIdent, input[i:j], start})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), start)
		}
	}

	tokens = append(tokens, exprToken{exEOF, "", n})
	return tokens, nil
}

// ============================================================================
// AST node types
// ============================================================================

type exprNodeKind int

const (
	enLit     exprNodeKind = iota // string, number, bool, nil
	enVar                         // bare identifier
	enMember                      // a.b
	enIndex                       // a[expr]
	enCall                        // ns.fn(args...) -- value is the function name
	enBinary                      // a op b -- value is the operator string
	enUnary                       // !a or -a -- value is the operator string
	enTernary                     // cond ? a : b
)

type exprNode struct {
	kind     exprNodeKind
	value    interface{}
	children []*exprNode
}

// ============================================================================
// Parser: recursive descent
// ============================================================================
//
// Precedence (lowest to highest):
//   ?:            ternary
//   || or         logical or
//   && and        logical and
//   == !=         equality
//   < > <= >=     relational
//   + -           additive
//   * / %         multiplicative
//   ! not -       unary
//   . [] ()       postfix

type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) peek() exprToken {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return exprToken{kind: exEOF, pos: -1}
}

func (p *exprParser) advance() exprToken {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *exprParser) expect(kind exprTokenKind, what string) (exprToken, error) {
	t := p.advance()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s but got %q at position %d", what, t.value, t.pos)
	}
	return t, nil
}

func (p *exprParser) parseTernary() (*exprNode, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != exQuestion {
		return cond, nil
	}
	p.advance() // consume '?'
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(exColon, "':'"); err != nil {
		return nil, err
	}
	otherwise, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &exprNode{kind: enTernary, children: []*exprNode{cond, then, otherwise}}, nil
}

func (p *exprParser) parseOr() (*exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != exOr && !(tok.kind == exIdent && tok.value == "or") {
			return left, nil
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: "||", children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseAnd() (*exprNode, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != exAnd && !(tok.kind == exIdent && tok.value == "and") {
			return left, nil
		}
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: "&&", children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseEquality() (*exprNode, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case exEq:
			op = "=="
		case exNe:
			op = "!="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: op, children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseRelational() (*exprNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case exLt:
			op = "<"
		case exGt:
			op = ">"
		case exLe:
			op = "<="
		case exGe:
			op = ">="
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: op, children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseAdditive() (*exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case exPlus:
			op = "+"
		case exMinus:
			op = "-"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: op, children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseMultiplicative() (*exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().kind {
		case exStar:
			op = "*"
		case exSlash:
			op = "/"
		case exPercent:
			op = "%"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &exprNode{kind: enBinary, value: op, children: []*exprNode{left, right}}
	}
}

func (p *exprParser) parseUnary() (*exprNode, error) {
	tok := p.peek()
	if tok.kind == exNot || (tok.kind == exIdent && tok.value == "not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: enUnary, value: "!", children: []*exprNode{operand}}, nil
	}
	if tok.kind == exMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprNode{kind: enUnary, value: "-", children: []*exprNode{operand}}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (*exprNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		if tok.kind == exDot {
			p.advance() // consume '.'
			ident, err := p.expect(exIdent, "identifier after '.'")
			if err != nil {
				return nil, err
			}

			// Namespaced function call: ns.fn(
			if p.peek().kind == exLParen {
				p.advance() // consume '('
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(exRParen, "')'"); err != nil {
					return nil, err
				}
				node = &exprNode{
					kind:     enCall,
					value:    ident.value,
					children: append([]*exprNode{node}, args...),
				}
			} else {
				node = &exprNode{kind: enMember, value: ident.value, children: []*exprNode{node}}
			}
		} else if tok.kind == exLBrack {
			p.advance() // consume '['
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(exRBrack, "']'"); err != nil {
				return nil, err
			}
			node = &exprNode{kind: enIndex, children: []*exprNode{node, idx}}
		} else {
			break
		}
	}
	return node, nil
}

func (p *exprParser) parsePrimary() (*exprNode, error) {
	tok := p.peek()

	switch tok.kind {
	case exLParen:
		p.advance()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(exRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case exString:
		p.advance()
		return &exprNode{kind: enLit, value: tok.value}, nil

	case exNumber:
		p.advance()
		if strings.Contains(tok.value, ".") {
			f, err := strconv.ParseFloat(tok.value, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal %q at position %d", tok.value, tok.pos)
			}
			return &exprNode{kind: enLit, value: f}, nil
		}
		i, err := strconv.ParseInt(tok.value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q at position %d", tok.value, tok.pos)
		}
		return &exprNode{kind: enLit, value: i}, nil

	case exIdent:
		p.advance()
		switch tok.value {
		case "true":
			return &exprNode{kind: enLit, value: true}, nil
		case "false":
			return &exprNode{kind: enLit, value: false}, nil
		case "null", "nil":
			return &exprNode{kind: enLit, value: nil}, nil
		}
		return &exprNode{kind: enVar, value: tok.value}, nil

	case exEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.value, tok.pos)
	}
}

func (p *exprParser) parseArgList() ([]*exprNode, error) {
	var args []*exprNode
	if p.peek().kind == exRParen {
		return args, nil
	}
	for {
		arg, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != exComma {
			break
		}
		p.advance() // consume ','
	}
	return args, nil
}

// ============================================================================
// Evaluator
// ============================================================================

// funcNamespace is the single namespace through which library functions are
// callable, keeping them out of the variable space of document fields.
const funcNamespace = "fn"

func (prog *exprProgram) run(env map[string]interface{}) (interface{}, error) {
	return evalExprNode(prog.root, env)
}

func evalExprNode(node *exprNode, env map[string]interface{}) (interface{}, error) {
	switch node.kind {
	case enLit:
		return node.value, nil

	case enVar:
		// Undefined variables resolve to nil, matching absent-path reads.
		return env[node.value.(string)], nil

	case enMember:
		receiver, err := evalExprNode(node.children[0], env)
		if err != nil {
			return nil, err
		}
		if m, ok := receiver.(map[string]interface{}); ok {
			return m[node.value.(string)], nil
		}
		if m, ok := receiver.(map[string]string); ok {
			return m[node.value.(string)], nil
		}
		return nil, nil

	case enIndex:
		receiver, err := evalExprNode(node.children[0], env)
		if err != nil {
			return nil, err
		}
		idxVal, err := evalExprNode(node.children[1], env)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(idxVal)
		if !ok {
			return nil, fmt.Errorf("non-numeric list index %v", idxVal)
		}
		idx := int(f)
		list, ok := receiver.([]interface{})
		if !ok || idx < 0 || idx >= len(list) {
			return nil, nil
		}
		return list[idx], nil

	case enCall:
		receiver := node.children[0]
		if receiver.kind != enVar || receiver.value.(string) != funcNamespace {
			return nil, fmt.Errorf("unknown function namespace (functions live under %s.)", funcNamespace)
		}
		name := node.value.(string)
		args := make([]interface{}, 0, len(node.children)-1)
		for _, argNode := range node.children[1:] {
			arg, err := evalExprNode(argNode, env)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return callFunc(name, args)

	case enUnary:
		operand, err := evalExprNode(node.children[0], env)
		if err != nil {
			return nil, err
		}
		if node.value.(string) == "!" {
			return !Truthy(operand), nil
		}
		f, ok := toFloat(operand)
		if !ok {
			return nil, fmt.Errorf("cannot negate non-numeric value %v", operand)
		}
		return negated(operand, f), nil

	case enBinary:
		return evalBinary(node, env)

	case enTernary:
		cond, err := evalExprNode(node.children[0], env)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return evalExprNode(node.children[1], env)
		}
		return evalExprNode(node.children[2], env)

	default:
		return nil, fmt.Errorf("unknown expression node kind %d", node.kind)
	}
}

func evalBinary(node *exprNode, env map[string]interface{}) (interface{}, error) {
	op := node.value.(string)

	// Logical operators short-circuit.
	if op == "&&" || op == "||" {
		left, err := evalExprNode(node.children[0], env)
		if err != nil {
			return nil, err
		}
		lb := Truthy(left)
		if op == "&&" && !lb {
			return false, nil
		}
		if op == "||" && lb {
			return true, nil
		}
		right, err := evalExprNode(node.children[1], env)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	left, err := evalExprNode(node.children[0], env)
	if err != nil {
		return nil, err
	}
	right, err := evalExprNode(node.children[1], env)
	if err != nil {
		return nil, err
	}

	switch op {
	case "==":
		return looseEquals(left, right), nil
	case "!=":
		return !looseEquals(left, right), nil
	case "<", ">", "<=", ">=":
		return compareOrdered(left, right, op)
	case "+":
		// String concatenation when either side is a string.
		if ls, ok := left.(string); ok {
			return ls + stringify(right), nil
		}
		if rs, ok := right.(string); ok {
			return stringify(left) + rs, nil
		}
		return arith(left, right, op)
	case "-", "*", "/", "%":
		return arith(left, right, op)
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func arith(left, right interface{}, op string) (interface{}, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("non-numeric operand for %q", op)
	}
	var result float64
	switch op {
	case "+":
		result = lf + rf
	case "-":
		result = lf - rf
	case "*":
		result = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = lf / rf
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = math.Mod(lf, rf)
	}
	// Keep integer results integral when both operands were integral.
	if isIntegral(left) && isIntegral(right) && result == math.Trunc(result) {
		return int64(result), nil
	}
	return result, nil
}

func compareOrdered(left, right interface{}, op string) (interface{}, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case ">":
			return lf > rf, nil
		case "<=":
			return lf <= rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case "<":
			return ls < rs, nil
		case ">":
			return ls > rs, nil
		case "<=":
			return ls <= rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("cannot order %T and %T with %q", left, right, op)
}

// looseEquals compares values the way a document language expects: numeric
// values compare by magnitude across int/float representations, everything
// else by native equality, falling back to string forms.
func looseEquals(left, right interface{}) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if lf, ok := toFloat(left); ok {
		if rf, rok := toFloat(right); rok {
			return lf == rf
		}
	}
	if lb, ok := left.(bool); ok {
		if rb, rok := right.(bool); rok {
			return lb == rb
		}
	}
	if ls, ok := left.(string); ok {
		if rs, rok := right.(string); rok {
			return ls == rs
		}
	}
	return stringify(left) == stringify(right)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func isIntegral(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

func negated(original interface{}, f float64) interface{} {
	if isIntegral(original) {
		return int64(-f)
	}
	return -f
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%v", v)
}
