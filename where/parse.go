package where

import (
	"fmt"

	"github.com/hupe1980/embedb/record"
)

// Parse builds a metadata filter tree from its map form.
//
// The map must carry exactly one key: a combinator ($and / $or) over a
// list of at least two sub-filters, or a field name mapped to either a
// literal (implicit equality) or an operator expression. Malformed
// trees and operator/type mismatches are rejected here, at definition
// time; evaluation never raises.
func Parse(w map[string]any) (Clause, error) {
	if len(w) != 1 {
		return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where to have exactly one operator, got %v", w)}
	}

	for key, value := range w {
		switch key {
		case string(And), string(Or):
			children, err := parseChildren(key, value, Parse)
			if err != nil {
				return nil, err
			}
			return &Group{Combinator: Combinator(key), Children: children}, nil
		default:
			return parseLeaf(key, value)
		}
	}
	return nil, nil // unreachable, len(w) == 1
}

// ParseDocument builds a document filter tree from its map form. Only
// $contains leaves and $and / $or combinators are recognized.
func ParseDocument(w map[string]any) (Clause, error) {
	if len(w) != 1 {
		return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where document to have exactly one operator, got %v", w)}
	}

	for key, value := range w {
		switch key {
		case string(And), string(Or):
			children, err := parseChildren(key, value, ParseDocument)
			if err != nil {
				return nil, err
			}
			return &Group{Combinator: Combinator(key), Children: children}, nil
		case string(OpContains):
			s, ok := value.(string)
			if !ok {
				return nil, &record.TypeError{Msg: fmt.Sprintf("Expected where document operand value for operator $contains to be a str, got %v", value)}
			}
			if s == "" {
				return nil, &record.ShapeError{Msg: "Expected where document operand value for operator $contains to be a non-empty str"}
			}
			return &Leaf{Op: OpContains, Value: record.String(s)}, nil
		default:
			return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where document operator to be $contains, $and, or $or, got %s", key)}
		}
	}
	return nil, nil // unreachable, len(w) == 1
}

func parseChildren(combinator string, value any, parse func(map[string]any) (Clause, error)) ([]Clause, error) {
	list, ok := value.([]any)
	if !ok {
		if typed, tok := value.([]map[string]any); tok {
			list = make([]any, len(typed))
			for i := range typed {
				list[i] = typed[i]
			}
		} else {
			return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where value for %s to be a list of where expressions, got %v", combinator, value)}
		}
	}
	if len(list) < 2 {
		return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where value for %s to be a list with at least two where expressions, got %v", combinator, value)}
	}

	children := make([]Clause, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where value for %s to be a list of where expressions, got %v", combinator, raw)}
		}
		c, err := parse(m)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	return children, nil
}

func parseLeaf(field string, value any) (Clause, error) {
	switch v := value.(type) {
	case map[string]any:
		return parseOperatorExpression(field, v)
	default:
		val, err := literalValue(value)
		if err != nil {
			return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where value to be a str, int, float, or operator expression, got %v", value)}
		}
		return &Leaf{Field: field, Op: OpEq, Value: val}, nil
	}
}

func parseOperatorExpression(field string, expr map[string]any) (Clause, error) {
	if len(expr) != 1 {
		return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected operator expression to have exactly one operator, got %v", expr)}
	}

	for opKey, operand := range expr {
		op := Op(opKey)
		switch op {
		case OpEq, OpNe:
			val, err := literalValue(operand)
			if err != nil {
				return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected operand value to be a str, int, or float for operator %s, got %v", op, operand)}
			}
			return &Leaf{Field: field, Op: op, Value: val}, nil
		case OpGt, OpGte, OpLt, OpLte:
			val, err := literalValue(operand)
			if err != nil || !val.IsNumeric() {
				// Ordering on non-numeric operands is a definition
				// error, not a runtime false-match.
				return nil, &record.TypeError{Msg: fmt.Sprintf("Expected operand value to be an int or a float for operator %s, got %v", op, operand)}
			}
			return &Leaf{Field: field, Op: op, Value: val}, nil
		default:
			return nil, &record.ArgumentError{Msg: fmt.Sprintf("Expected where operator to be one of $eq, $ne, $gt, $gte, $lt, $lte, got %s", opKey)}
		}
	}
	return nil, nil // unreachable, len(expr) == 1
}

// literalValue admits the closed leaf value variant: str, int, float.
func literalValue(v any) (record.Value, error) {
	switch x := v.(type) {
	case string:
		return record.String(x), nil
	case int:
		return record.Int(int64(x)), nil
	case int32:
		return record.Int(int64(x)), nil
	case int64:
		return record.Int(x), nil
	case float32:
		return record.Float(float64(x)), nil
	case float64:
		return record.Float(x), nil
	case record.Value:
		switch x.Kind {
		case record.KindString, record.KindInt, record.KindFloat:
			return x, nil
		}
	}
	return record.Value{}, fmt.Errorf("unsupported literal %v", v)
}
