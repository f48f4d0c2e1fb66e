package where

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/embedb/record"
)

// Snapshot is an immutable, position-addressed view of stored metadata
// and documents. Implementations must not change while evaluation
// runs; the store guarantees this by materializing snapshots inside a
// single read transaction.
type Snapshot interface {
	// Len returns the number of records in the view.
	Len() int
	// Metadata returns the metadata document at a position.
	Metadata(pos uint32) record.Metadata
	// Document returns the document text at a position.
	Document(pos uint32) string
}

// Eval evaluates a parsed clause against a snapshot and returns the
// bitmap of matching record positions.
//
// Combinators evaluate as bitmap algebra over their children, so the
// result is independent of child order; $and stops early once the
// running intersection is empty. A nil clause selects every position.
func Eval(snap Snapshot, c Clause) *roaring.Bitmap {
	if c == nil {
		all := roaring.New()
		all.AddRange(0, uint64(snap.Len()))
		return all
	}

	switch n := c.(type) {
	case *Group:
		return evalGroup(snap, n)
	case *Leaf:
		return evalLeaf(snap, n)
	default:
		return roaring.New()
	}
}

func evalGroup(snap Snapshot, g *Group) *roaring.Bitmap {
	if len(g.Children) == 0 {
		out := roaring.New()
		if g.Combinator == And {
			// Vacuous truth over zero children.
			out.AddRange(0, uint64(snap.Len()))
		}
		return out
	}

	out := Eval(snap, g.Children[0])
	for _, child := range g.Children[1:] {
		if g.Combinator == And {
			if out.IsEmpty() {
				return out
			}
			out.And(Eval(snap, child))
		} else {
			out.Or(Eval(snap, child))
		}
	}
	return out
}

func evalLeaf(snap Snapshot, l *Leaf) *roaring.Bitmap {
	out := roaring.New()
	n := snap.Len()
	for i := 0; i < n; i++ {
		pos := uint32(i)
		if l.Matches(snap.Metadata(pos), snap.Document(pos)) {
			out.Add(pos)
		}
	}
	return out
}
