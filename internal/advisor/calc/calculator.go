package calc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
)

// Expression is a detected two-operand arithmetic expression.
type Expression struct {
	Operand1 float64
	Operator byte // one of + - * /
	Operand2 float64
}

// Word operators are matched longest-first so "multiplicado por" is not
// consumed as "por". "por" and "x" read as multiplication in pt-BR usage.
var operatorWords = []struct {
	word string
	op   byte
}{
	{"multiplicado por", '*'},
	{"dividido por", '/'},
	{"vezes", '*'},
	{"mais", '+'},
	{"menos", '-'},
	{"dividir por", '/'},
	{"por", '*'},
	{"x", '*'},
	{"+", '+'},
	{"-", '-'},
	{"*", '*'},
	{"/", '/'},
}

var exprPattern = regexp.MustCompile(
	`^\s*(-?\d+(?:[.,]\d+)?)\s*(multiplicado por|dividido por|dividir por|vezes|mais|menos|por|x|\+|\-|\*|/)\s*(-?\d+(?:[.,]\d+)?)\s*\??\s*$`)

// Detect reports whether the raw text is a simple two-operand arithmetic
// expression, in symbols or pt-BR words. Anything else returns (nil, false);
// messages that merely mention numbers never match because the pattern is
// anchored to the whole text.
func Detect(text string) (*Expression, bool) {
	m := exprPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return nil, false
	}

	a, err := parseNumber(m[1])
	if err != nil {
		return nil, false
	}
	b, err := parseNumber(m[3])
	if err != nil {
		return nil, false
	}

	op, ok := operatorFor(m[2])
	if !ok {
		return nil, false
	}
	return &Expression{Operand1: a, Operator: op, Operand2: b}, true
}

// Compute evaluates a detected expression. Division by zero is a reported,
// turn-scoped error, never a panic.
func Compute(e *Expression) (float64, error) {
	switch e.Operator {
	case '+':
		return e.Operand1 + e.Operand2, nil
	case '-':
		return e.Operand1 - e.Operand2, nil
	case '*':
		return e.Operand1 * e.Operand2, nil
	case '/':
		if e.Operand2 == 0 {
			return 0, errx.NewKind(fmt.Errorf("division by zero"), errx.KindArithmetic, "divisão por zero")
		}
		return e.Operand1 / e.Operand2, nil
	default:
		return 0, errx.NewKind(fmt.Errorf("unknown operator %q", e.Operator), errx.KindArithmetic, "operador desconhecido")
	}
}

// FormatResult renders a result the way a human would type it: integers
// without a decimal part, decimals with pt-BR comma.
func FormatResult(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func operatorFor(word string) (byte, bool) {
	for _, w := range operatorWords {
		if w.word == word {
			return w.op, true
		}
	}
	return 0, false
}
