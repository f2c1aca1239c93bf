// Package passback reads the grade passback parameters attached to an
// attempt. They arrive as a Python dict literal, so the text is parsed with
// the Starlark expression grammar and only literal nodes are evaluated:
// names other than the constants, calls and operators are rejected.
package passback

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/syntax"
)

var ErrNotMapping = errors.New("literal is not a mapping")

type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid literal at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse evaluates a single literal. Dicts become map[string]any, lists and
// tuples []any, ints int64, floats float64, strings and bytes string.
func Parse(src string) (any, error) {
	expr, err := syntax.ParseExpr("passback_params", strings.TrimSpace(src), 0)
	if err != nil {
		var se syntax.Error
		if errors.As(err, &se) {
			return nil, &SyntaxError{Line: int(se.Pos.Line), Col: int(se.Pos.Col), Msg: se.Msg}
		}
		return nil, &SyntaxError{Msg: err.Error()}
	}
	return literal(expr)
}

// ParseMapping is Parse restricted to a top-level dict.
func ParseMapping(src string) (map[string]any, error) {
	v, err := Parse(src)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, v)
	}
	return m, nil
}

func nodeError(n syntax.Node, format string, args ...any) error {
	pos, _ := n.Span()
	return &SyntaxError{Line: int(pos.Line), Col: int(pos.Col), Msg: fmt.Sprintf(format, args...)}
}

func literal(e syntax.Expr) (any, error) {
	switch e := e.(type) {
	case *syntax.Literal:
		switch v := e.Value.(type) {
		case string, int64, float64:
			return v, nil
		default:
			return nil, nodeError(e, "integer %s out of range", e.Raw)
		}

	case *syntax.Ident:
		switch e.Name {
		case "True", "true":
			return true, nil
		case "False", "false":
			return false, nil
		case "None", "null":
			return nil, nil
		}
		return nil, nodeError(e, "name %s is not a literal", e.Name)

	case *syntax.UnaryExpr:
		if e.Op != syntax.MINUS && e.Op != syntax.PLUS {
			return nil, nodeError(e, "operator %s is not allowed", e.Op)
		}
		v, err := literal(e.X)
		if err != nil {
			return nil, err
		}
		return signed(e, v)

	case *syntax.ParenExpr:
		return literal(e.X)

	case *syntax.TupleExpr:
		return sequence(e.List)

	case *syntax.ListExpr:
		return sequence(e.List)

	case *syntax.DictExpr:
		out := make(map[string]any, len(e.List))
		for _, item := range e.List {
			entry, ok := item.(*syntax.DictEntry)
			if !ok {
				return nil, nodeError(item, "malformed dict entry")
			}
			k, err := literal(entry.Key)
			if err != nil {
				return nil, err
			}
			v, err := literal(entry.Value)
			if err != nil {
				return nil, err
			}
			out[keyString(k)] = v
		}
		return out, nil

	default:
		return nil, nodeError(e, "%T is not a literal", e)
	}
}

func signed(e *syntax.UnaryExpr, v any) (any, error) {
	switch n := v.(type) {
	case int64:
		if e.Op == syntax.MINUS {
			return -n, nil
		}
		return n, nil
	case float64:
		if e.Op == syntax.MINUS {
			return -n, nil
		}
		return n, nil
	default:
		return nil, nodeError(e, "unary %s on %T", e.Op, v)
	}
}

func sequence(items []syntax.Expr) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := literal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// keyString renders non-string dict keys the way Python prints them.
func keyString(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}
