package tree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hikettei/tadashi/pkg/util"
)

// Path is a construct for describing positions within schedule trees as the
// sequence of child indices walked from the root.  Paths are immutable;
// extension and truncation return fresh paths.
type Path struct {
	// Segments in the path.
	segments []int
}

// NewPath constructs a path from the given segments.
func NewPath(segments ...int) Path {
	return Path{segments}
}

// Depth returns the number of segments in this path (a.k.a its depth).
func (p Path) Depth() uint {
	return uint(len(p.segments))
}

// IsRoot determines whether this path identifies the root node.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Get returns the nth segment of this path.
func (p Path) Get(nth uint) int {
	return p.segments[nth]
}

// Tail returns the last (i.e. innermost) segment of this path.
func (p Path) Tail() int {
	return p.segments[len(p.segments)-1]
}

// Equals determines whether two paths are the same.
func (p Path) Equals(other Path) bool {
	return slices.Equal(p.segments, other.segments)
}

// PrefixOf checks whether this path is a prefix of the other.
func (p Path) PrefixOf(other Path) bool {
	if len(p.segments) > len(other.segments) {
		return false
	}
	//
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	// Looks good
	return true
}

// Parent returns the parent of this path.
func (p Path) Parent() Path {
	n := len(p.segments) - 1
	return Path{p.segments[0:n]}
}

// Extend returns this path extended with a new innermost segment.
func (p Path) Extend(tail int) Path {
	return Path{util.Append(p.segments, tail)}
}

// Return a string representation of this path.
func (p Path) String() string {
	var builder strings.Builder
	//
	for _, s := range p.segments {
		builder.WriteString(fmt.Sprintf("/%d", s))
	}
	//
	if builder.Len() == 0 {
		return "/"
	}
	//
	return builder.String()
}
