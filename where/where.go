package where

import (
	"strings"

	"github.com/hupe1980/embedb/record"
)

// Op is a comparison operator in a filter leaf.
type Op string

const (
	// OpEq represents the equality operator.
	OpEq Op = "$eq"
	// OpNe represents the inequality operator.
	OpNe Op = "$ne"
	// OpGt represents the greater than operator.
	OpGt Op = "$gt"
	// OpGte represents the greater than or equal operator.
	OpGte Op = "$gte"
	// OpLt represents the less than operator.
	OpLt Op = "$lt"
	// OpLte represents the less than or equal operator.
	OpLte Op = "$lte"
	// OpContains matches a whitespace-delimited token of the document.
	OpContains Op = "$contains"
)

// Combinator joins child clauses.
type Combinator string

const (
	// And matches iff every child matches.
	And Combinator = "$and"
	// Or matches iff any child matches.
	Or Combinator = "$or"
)

// Clause is one node of a parsed filter tree: either a Leaf comparison
// or a Group of children under a combinator. The union is closed.
type Clause interface {
	// Matches evaluates the clause against one record's metadata and
	// document text.
	Matches(meta record.Metadata, doc string) bool

	sealed()
}

// Leaf compares one field against a literal value.
//
// For OpContains the Field is empty and the comparison targets the
// document text instead of metadata.
type Leaf struct {
	Field string
	Op    Op
	Value record.Value
}

// Group combines child clauses under $and or $or.
type Group struct {
	Combinator Combinator
	Children   []Clause
}

func (*Leaf) sealed()  {}
func (*Group) sealed() {}

// Matches implements Clause.
//
// A leaf referencing a metadata field that the record does not carry
// evaluates to non-match, never an error; absence is not a toggled
// match even under $ne.
func (l *Leaf) Matches(meta record.Metadata, doc string) bool {
	if l.Op == OpContains {
		return containsToken(doc, l.Value.S)
	}

	v, ok := meta[l.Field]
	if !ok {
		return false
	}

	switch l.Op {
	case OpEq:
		return v.Equal(l.Value)
	case OpNe:
		return !v.Equal(l.Value)
	case OpGt:
		return compareGreater(v, l.Value)
	case OpGte:
		return compareGreater(v, l.Value) || v.Equal(l.Value)
	case OpLt:
		return compareLess(v, l.Value)
	case OpLte:
		return compareLess(v, l.Value) || v.Equal(l.Value)
	default:
		return false
	}
}

// Matches implements Clause. $and short-circuits on the first
// non-matching child and $or on the first match; the result is
// order-independent.
func (g *Group) Matches(meta record.Metadata, doc string) bool {
	if g.Combinator == Or {
		for _, c := range g.Children {
			if c.Matches(meta, doc) {
				return true
			}
		}
		return false
	}
	for _, c := range g.Children {
		if !c.Matches(meta, doc) {
			return false
		}
	}
	return true
}

func compareGreater(a, b record.Value) bool {
	if !a.IsNumeric() || !b.IsNumeric() {
		return false
	}
	return a.Float64() > b.Float64()
}

func compareLess(a, b record.Value) bool {
	if !a.IsNumeric() || !b.IsNumeric() {
		return false
	}
	return a.Float64() < b.Float64()
}

// containsToken reports whether word occurs as a whitespace-delimited
// token of doc. Substring hits do not count: "head" does not match
// "ahead". The tokenization policy is strings.Fields and is part of
// the match contract.
func containsToken(doc, word string) bool {
	for _, tok := range strings.Fields(doc) {
		if tok == word {
			return true
		}
	}
	return false
}
