package where

import (
	"testing"

	"github.com/hupe1980/embedb/record"
)

func TestLeafMatches(t *testing.T) {
	meta := record.Metadata{
		"int_key":    record.Int(3),
		"float_key":  record.Float(3.0),
		"string_key": record.String("3"),
		"speed":      record.Float(12.5),
	}

	tests := []struct {
		name string
		leaf Leaf
		want bool
	}{
		{name: "eq int", leaf: Leaf{Field: "int_key", Op: OpEq, Value: record.Int(3)}, want: true},
		{name: "eq int against float literal", leaf: Leaf{Field: "int_key", Op: OpEq, Value: record.Float(3.0)}, want: true},
		{name: "eq float against int literal", leaf: Leaf{Field: "float_key", Op: OpEq, Value: record.Int(3)}, want: true},
		{name: "string never equals number", leaf: Leaf{Field: "string_key", Op: OpEq, Value: record.Int(3)}, want: false},
		{name: "eq string", leaf: Leaf{Field: "string_key", Op: OpEq, Value: record.String("3")}, want: true},
		{name: "ne present unequal", leaf: Leaf{Field: "int_key", Op: OpNe, Value: record.Int(4)}, want: true},
		{name: "ne present equal", leaf: Leaf{Field: "int_key", Op: OpNe, Value: record.Int(3)}, want: false},
		{name: "ne absent field is non-match", leaf: Leaf{Field: "missing", Op: OpNe, Value: record.Int(3)}, want: false},
		{name: "eq absent field is non-match", leaf: Leaf{Field: "missing", Op: OpEq, Value: record.Int(3)}, want: false},
		{name: "gt true", leaf: Leaf{Field: "speed", Op: OpGt, Value: record.Int(12)}, want: true},
		{name: "gt false", leaf: Leaf{Field: "speed", Op: OpGt, Value: record.Float(12.5)}, want: false},
		{name: "gte boundary", leaf: Leaf{Field: "speed", Op: OpGte, Value: record.Float(12.5)}, want: true},
		{name: "lt true", leaf: Leaf{Field: "speed", Op: OpLt, Value: record.Int(13)}, want: true},
		{name: "lte boundary", leaf: Leaf{Field: "speed", Op: OpLte, Value: record.Float(12.5)}, want: true},
		{name: "ordering against string value is non-match", leaf: Leaf{Field: "string_key", Op: OpGt, Value: record.Int(1)}, want: false},
		{name: "ordering on absent field is non-match", leaf: Leaf{Field: "missing", Op: OpLt, Value: record.Int(10)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.leaf.Matches(meta, ""); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainsToken(t *testing.T) {
	doc := "the quick brown fox"

	tests := []struct {
		name string
		word string
		want bool
	}{
		{name: "token match", word: "quick", want: true},
		{name: "first token", word: "the", want: true},
		{name: "last token", word: "fox", want: true},
		{name: "substring is not a token", word: "qui", want: false},
		{name: "substring spanning tokens", word: "quick brown", want: false},
		{name: "absent word", word: "dog", want: false},
		{name: "empty document", word: "quick", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := doc
			if tt.name == "empty document" {
				d = ""
			}
			leaf := &Leaf{Op: OpContains, Value: record.String(tt.word)}
			if got := leaf.Matches(nil, d); got != tt.want {
				t.Errorf("Matches(%q in %q) = %v, want %v", tt.word, d, got, tt.want)
			}
		})
	}
}

func TestGroupMatches(t *testing.T) {
	meta := record.Metadata{
		"a": record.Int(1),
		"b": record.Int(2),
	}

	aTrue := &Leaf{Field: "a", Op: OpEq, Value: record.Int(1)}
	aFalse := &Leaf{Field: "a", Op: OpEq, Value: record.Int(9)}
	bTrue := &Leaf{Field: "b", Op: OpEq, Value: record.Int(2)}
	bFalse := &Leaf{Field: "b", Op: OpEq, Value: record.Int(9)}

	tests := []struct {
		name string
		g    Group
		want bool
	}{
		{name: "and both true", g: Group{Combinator: And, Children: []Clause{aTrue, bTrue}}, want: true},
		{name: "and one false", g: Group{Combinator: And, Children: []Clause{aTrue, bFalse}}, want: false},
		{name: "and order independent", g: Group{Combinator: And, Children: []Clause{bFalse, aTrue}}, want: false},
		{name: "or one true", g: Group{Combinator: Or, Children: []Clause{aFalse, bTrue}}, want: true},
		{name: "or both false", g: Group{Combinator: Or, Children: []Clause{aFalse, bFalse}}, want: false},
		{name: "nested or inside and", g: Group{Combinator: And, Children: []Clause{
			aTrue,
			&Group{Combinator: Or, Children: []Clause{bFalse, bTrue}},
		}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Matches(meta, ""); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesIdempotent(t *testing.T) {
	meta := record.Metadata{"x": record.Float(1.5)}
	clause, err := Parse(map[string]any{"x": map[string]any{"$gte": 1}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	first := clause.Matches(meta, "")
	for range 10 {
		if got := clause.Matches(meta, ""); got != first {
			t.Fatalf("evaluation not idempotent: %v then %v", first, got)
		}
	}
	if !first {
		t.Error("expected match")
	}
}
