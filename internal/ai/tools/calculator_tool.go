package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/cel-go/cel"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var numberLiteral = regexp.MustCompile(`\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)

type CalculatorArgs struct {
	Expression string `json:"expression"`
}

// CalculatorTool evaluates arithmetic with CEL.
type CalculatorTool struct {
	BaseTool
	env *cel.Env
}

func NewCalculatorTool() (*CalculatorTool, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("creating expression environment: %w", err)
	}

	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"expression": {
				Type:        jsonschema.String,
				Description: "Arithmetic expression using + - * / % and parentheses, e.g. (3 + 4) * 2.5",
			},
		},
		Required: []string{"expression"},
	}

	return &CalculatorTool{
		BaseTool: BaseTool{
			ToolName:        "calculator",
			ToolDescription: "Evaluate an arithmetic expression exactly. Use this for any math instead of computing it yourself.",
			ToolParameters:  params,
			ToolCacheable:   true,
		},
		env: env,
	}, nil
}

func (t *CalculatorTool) Execute(ctx context.Context, args string) (string, error) {
	var params CalculatorArgs
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	expr := strings.TrimSpace(params.Expression)
	if expr == "" {
		return "", fmt.Errorf("expression is required")
	}

	value, err := t.Evaluate(expr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", expr, value), nil
}

// Evaluate returns the formatted result of expr. Integer literals are
// evaluated as doubles so 7 / 2 is 3.5; expressions using % stay integral.
func (t *CalculatorTool) Evaluate(expr string) (string, error) {
	candidates := []string{promoteIntegers(expr), expr}
	if strings.Contains(expr, "%") {
		candidates = []string{expr, promoteIntegers(expr)}
	}

	var lastErr error
	for _, candidate := range candidates {
		result, err := t.eval(candidate)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (t *CalculatorTool) eval(expr string) (string, error) {
	ast, iss := t.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return "", fmt.Errorf("invalid expression: %w", iss.Err())
	}
	prg, err := t.env.Program(ast)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		return "", fmt.Errorf("evaluation failed: %w", err)
	}

	switch v := out.Value().(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", fmt.Errorf("evaluation failed: result is not a finite number")
		}
		return formatDouble(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("expression did not produce a number (got %T)", v)
	}
}

// promoteIntegers rewrites bare integer literals as double literals
// ("2 * 3.5" -> "2.0 * 3.5") so CEL's strict numeric overloads accept mixed
// arithmetic. Literals glued to identifiers, hex or unsigned suffixes are
// left alone.
func promoteIntegers(expr string) string {
	var b strings.Builder
	last := 0
	for _, loc := range numberLiteral.FindAllStringIndex(expr, -1) {
		start, end := loc[0], loc[1]
		b.WriteString(expr[last:end])
		last = end

		literal := expr[start:end]
		if strings.ContainsAny(literal, ".eE") {
			continue
		}
		if start > 0 && isLiteralNeighbor(expr[start-1]) {
			continue
		}
		if end < len(expr) && isLiteralNeighbor(expr[end]) {
			continue
		}
		b.WriteString(".0")
	}
	b.WriteString(expr[last:])
	return b.String()
}

func isLiteralNeighbor(c byte) bool {
	return c == '_' || c == '.' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// formatDouble prints v in plain decimal notation, rounded to 15 significant
// digits so binary noise like 4.140000000000001 reads as 4.14.
func formatDouble(v float64) string {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 15, 64), 64)
	if err != nil {
		rounded = v
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
