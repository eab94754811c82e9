package xlbuild

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionEvaluator evaluates template expressions.
type ExpressionEvaluator interface {
	Evaluate(expression string, data map[string]any) (any, error)
}

// exprEvaluator implements ExpressionEvaluator using expr-lang/expr.
type exprEvaluator struct {
	cache sync.Map // expression string → compiled *vm.Program
}

// NewExpressionEvaluator creates a new expression evaluator backed by expr-lang/expr.
func NewExpressionEvaluator() ExpressionEvaluator {
	return &exprEvaluator{}
}

func (e *exprEvaluator) Evaluate(expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

// compile caches programs compiled without a typed env, so one program
// serves every row regardless of the item's type.
func (e *exprEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// ExpressionSegment is a part of a cell value: either literal text or an expression.
type ExpressionSegment struct {
	IsExpression bool
	Text         string // literal text, or the expression without delimiters
}

// ParseExpressions splits value into literal text and expressions:
// "Name: ${e.Name}" yields the literal "Name: " and the expression
// "e.Name". Nested delimiters are balanced. An expression without its
// closing delimiter stays literal text.
func ParseExpressions(value, begin, end string) []ExpressionSegment {
	begin, end = notation(begin, end)
	var segments []ExpressionSegment
	for value != "" {
		open := strings.Index(value, begin)
		if open < 0 {
			break
		}
		body := value[open+len(begin):]
		n := closingDelimiter(body, begin, end)
		if n < 0 {
			break
		}
		if open > 0 {
			segments = append(segments, ExpressionSegment{Text: value[:open]})
		}
		segments = append(segments, ExpressionSegment{IsExpression: true, Text: body[:n]})
		value = body[n+len(end):]
	}
	if value != "" {
		segments = append(segments, ExpressionSegment{Text: value})
	}
	return segments
}

func notation(begin, end string) (string, string) {
	if begin == "" || end == "" {
		return "${", "}"
	}
	return begin, end
}

// closingDelimiter returns the offset in s of the end delimiter closing an
// expression whose begin delimiter precedes s, or -1.
func closingDelimiter(s, begin, end string) int {
	depth := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], begin):
			depth++
			i += len(begin)
		case strings.HasPrefix(s[i:], end):
			if depth == 0 {
				return i
			}
			depth--
			i += len(end)
		default:
			i++
		}
	}
	return -1
}

// ExtractSingleExpression reports whether value, ignoring surrounding
// space, is exactly one non-nested expression such as "${e.Name}", and
// returns it without delimiters.
func ExtractSingleExpression(value, begin, end string) (string, bool) {
	begin, end = notation(begin, end)
	segs := ParseExpressions(strings.TrimSpace(value), begin, end)
	if len(segs) != 1 || !segs[0].IsExpression || strings.Contains(segs[0].Text, begin) {
		return "", false
	}
	return segs[0].Text, true
}

// evaluateString evaluates the expressions embedded in value. A value that
// is a single expression yields the typed result; mixed content yields a
// string. Values without expressions are returned unchanged.
func evaluateString(ev ExpressionEvaluator, value, begin, end string, env map[string]any) (any, error) {
	if !strings.Contains(value, begin) {
		return value, nil
	}
	if exprStr, ok := ExtractSingleExpression(value, begin, end); ok {
		return ev.Evaluate(exprStr, env)
	}

	var b strings.Builder
	for _, seg := range ParseExpressions(value, begin, end) {
		if !seg.IsExpression {
			b.WriteString(seg.Text)
			continue
		}
		val, err := ev.Evaluate(seg.Text, env)
		if err != nil {
			return nil, err
		}
		if val != nil {
			fmt.Fprintf(&b, "%v", val)
		}
	}
	return b.String(), nil
}
