package tools

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"strconv"
)

var errDivisionByZero = errors.New("division by zero")

type calculateParams struct {
	Expression string `json:"expression" jsonschema:"description=Arithmetic expression such as '2+2' or '(10*5)/3'"`
}

// CalculateTool evaluates arithmetic with + - * / % and parentheses using
// exact constant arithmetic.
func CalculateTool() Tool {
	return Tool{
		Name:        "calculate",
		Description: "Evaluate a mathematical expression.",
		InputSchema: SchemaFor[calculateParams](),
		Executor: Typed(func(_ context.Context, p calculateParams) (string, error) {
			if p.Expression == "" {
				return "", fmt.Errorf("expression is required")
			}
			v, err := Evaluate(p.Expression)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s = %s", p.Expression, v), nil
		}),
	}
}

// Evaluate computes an arithmetic expression and formats the result.
func Evaluate(expr string) (string, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	v, err := eval(node)
	if err != nil {
		return "", err
	}
	if v.Kind() == constant.Int {
		return v.ExactString(), nil
	}
	f, _ := constant.Float64Val(v)
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func eval(node ast.Expr) (constant.Value, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return constant.MakeFromLiteral(n.Value, n.Kind, 0), nil
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return nil, err
		}
		if n.Op != token.ADD && n.Op != token.SUB {
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
		return constant.UnaryOp(n.Op, x, 0), nil
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return nil, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD, token.SUB, token.MUL:
			return constant.BinaryOp(x, n.Op, y), nil
		case token.QUO:
			if constant.Sign(y) == 0 {
				return nil, errDivisionByZero
			}
			return constant.BinaryOp(x, token.QUO, y), nil
		case token.REM:
			if x.Kind() != constant.Int || y.Kind() != constant.Int {
				return nil, fmt.Errorf("%% requires integer operands")
			}
			if constant.Sign(y) == 0 {
				return nil, errDivisionByZero
			}
			return constant.BinaryOp(x, token.REM, y), nil
		default:
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
	default:
		return nil, fmt.Errorf("unsupported expression %T", node)
	}
}
