// Package delta provides copy-on-write overlays over immutable list and map
// bases.
//
// An overlay records changes as a log instead of touching its base. Reads see
// base plus changes through a lazily materialized view. An overlay can itself
// be the base of another overlay; once it is wrapped it is sealed and further
// writes panic. Merge flattens an overlay into a fresh plain base.
package delta

import "fmt"

// Op tags a recorded change.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "ADD"
	case OpUpdate:
		return "UPDATE"
	case OpRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// overlay is implemented by List and Map so that a new layer can seal the
// one below it and account for the chain under it.
type overlay interface {
	seal()
	Depth() int
	TotalChanges() int
}

// wrapBase seals base if it is an overlay and returns the depth and
// cumulative change count of the chain it heads. Plain bases count as zero.
func wrapBase(base any) (depth, changes int) {
	o, ok := base.(overlay)
	if !ok {
		return 0, 0
	}
	o.seal()
	return o.Depth(), o.TotalChanges()
}
