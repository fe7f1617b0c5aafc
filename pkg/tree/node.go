// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package tree

import (
	"fmt"
	"strings"

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/util/collection/bit"
)

// Kind tags the variants of schedule-tree nodes.
type Kind int

// The node variants.  A schedule tree is rooted at a Domain node; Sequence
// and Set nodes have Filter children only; every other inner node has
// exactly one child.
const (
	KindDomain Kind = iota
	KindContext
	KindBand
	KindSequence
	KindSet
	KindFilter
	KindMark
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindContext:
		return "context"
	case KindBand:
		return "band"
	case KindSequence:
		return "sequence"
	case KindSet:
		return "set"
	case KindFilter:
		return "filter"
	case KindMark:
		return "mark"
	default:
		return "leaf"
	}
}

// LoopType is the AST-build annotation of one band dimension.
type LoopType int

// Loop types mirror the code generator's loop shaping directives.
const (
	LoopDefault LoopType = iota
	LoopAtomic
	LoopUnroll
	LoopSeparate
	LoopParallel
)

func (t LoopType) String() string {
	switch t {
	case LoopAtomic:
		return "atomic"
	case LoopUnroll:
		return "unroll"
	case LoopSeparate:
		return "separate"
	case LoopParallel:
		return "parallel"
	default:
		return "default"
	}
}

// ParseLoopType reads a loop type back from its name.
func ParseLoopType(name string) (LoopType, error) {
	switch name {
	case "default", "":
		return LoopDefault, nil
	case "atomic":
		return LoopAtomic, nil
	case "unroll":
		return LoopUnroll, nil
	case "separate":
		return LoopSeparate, nil
	case "parallel":
		return LoopParallel, nil
	default:
		return LoopDefault, fmt.Errorf("unknown loop type %q", name)
	}
}

// Node is a schedule-tree node.  Nodes are treated as immutable: rewrites
// construct fresh spines and the cursor machinery enforces single ownership
// of whole trees.
type Node interface {
	// Kind returns the variant tag of this node.
	Kind() Kind
	// NumChildren returns the number of children of this node.
	NumChildren() int
	// Child returns the ith child of this node.
	Child(i int) Node
	// WithChild constructs a copy of this node with the ith child replaced.
	WithChild(i int, child Node) Node
}

// Domain is the tree root, carrying the set of statement instances.
type Domain struct {
	// Instances scheduled by this tree.
	Instances *poly.UnionSet
	Body      Node
}

// Kind returns the variant tag of this node.
func (p *Domain) Kind() Kind { return KindDomain }

// NumChildren returns the number of children of this node.
func (p *Domain) NumChildren() int { return 1 }

// Child returns the ith child of this node.
func (p *Domain) Child(i int) Node { return one(i, p.Body) }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Domain) WithChild(i int, child Node) Node {
	one(i, p.Body)
	return &Domain{p.Instances, child}
}

// Context constrains the symbolic parameters below it.
type Context struct {
	// Constraint on the parameters, as a zero-dimensional set.
	Constraint *poly.UnionSet
	Body       Node
}

// Kind returns the variant tag of this node.
func (p *Context) Kind() Kind { return KindContext }

// NumChildren returns the number of children of this node.
func (p *Context) NumChildren() int { return 1 }

// Child returns the ith child of this node.
func (p *Context) Child(i int) Node { return one(i, p.Body) }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Context) WithChild(i int, child Node) Node {
	one(i, p.Body)
	return &Context{p.Constraint, child}
}

// Band carries a block of schedule dimensions together with their
// per-dimension annotations.
type Band struct {
	// Schedule is the partial schedule of this band.
	Schedule *poly.MultiUnionPwAff
	// Permutable indicates the dimensions of this band may be freely
	// interchanged.
	Permutable bool
	// Coincident flags dimensions along which no dependence is carried.
	Coincident bit.Set
	// LoopTypes gives the AST-build annotation per dimension.
	LoopTypes []LoopType
	Body      Node
}

// Kind returns the variant tag of this node.
func (p *Band) Kind() Kind { return KindBand }

// NumChildren returns the number of children of this node.
func (p *Band) NumChildren() int { return 1 }

// Child returns the ith child of this node.
func (p *Band) Child(i int) Node { return one(i, p.Body) }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Band) WithChild(i int, child Node) Node {
	one(i, p.Body)
	return &Band{p.Schedule, p.Permutable, p.Coincident.Clone(), p.LoopTypes, child}
}

// LoopType returns the annotation of the given dimension, defaulting where
// none was ever set.
func (p *Band) LoopType(dim int) LoopType {
	if dim < len(p.LoopTypes) {
		return p.LoopTypes[dim]
	}
	//
	return LoopDefault
}

// Sequence executes its filter children in order.
type Sequence struct {
	Children []*Filter
}

// Kind returns the variant tag of this node.
func (p *Sequence) Kind() Kind { return KindSequence }

// NumChildren returns the number of children of this node.
func (p *Sequence) NumChildren() int { return len(p.Children) }

// Child returns the ith child of this node.
func (p *Sequence) Child(i int) Node { return p.Children[i] }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Sequence) WithChild(i int, child Node) Node {
	filter, ok := child.(*Filter)
	if !ok {
		panic("sequence children must be filters")
	}
	//
	children := make([]*Filter, len(p.Children))
	copy(children, p.Children)
	children[i] = filter
	//
	return &Sequence{children}
}

// SetNode executes its filter children in no particular order; sibling
// filters must be pairwise disjoint.
type SetNode struct {
	Children []*Filter
}

// Kind returns the variant tag of this node.
func (p *SetNode) Kind() Kind { return KindSet }

// NumChildren returns the number of children of this node.
func (p *SetNode) NumChildren() int { return len(p.Children) }

// Child returns the ith child of this node.
func (p *SetNode) Child(i int) Node { return p.Children[i] }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *SetNode) WithChild(i int, child Node) Node {
	filter, ok := child.(*Filter)
	if !ok {
		panic("set children must be filters")
	}
	//
	children := make([]*Filter, len(p.Children))
	copy(children, p.Children)
	children[i] = filter
	//
	return &SetNode{children}
}

// Filter restricts its subtree to the given instances.
type Filter struct {
	// Instances admitted into this subtree.
	Instances *poly.UnionSet
	Body      Node
}

// Kind returns the variant tag of this node.
func (p *Filter) Kind() Kind { return KindFilter }

// NumChildren returns the number of children of this node.
func (p *Filter) NumChildren() int { return 1 }

// Child returns the ith child of this node.
func (p *Filter) Child(i int) Node { return one(i, p.Body) }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Filter) WithChild(i int, child Node) Node {
	one(i, p.Body)
	return &Filter{p.Instances, child}
}

// Mark attaches a symbolic label to its subtree.
type Mark struct {
	Label string
	Body  Node
}

// Kind returns the variant tag of this node.
func (p *Mark) Kind() Kind { return KindMark }

// NumChildren returns the number of children of this node.
func (p *Mark) NumChildren() int { return 1 }

// Child returns the ith child of this node.
func (p *Mark) Child(i int) Node { return one(i, p.Body) }

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Mark) WithChild(i int, child Node) Node {
	one(i, p.Body)
	return &Mark{p.Label, child}
}

// Leaf terminates a branch.
type Leaf struct{}

// Kind returns the variant tag of this node.
func (p *Leaf) Kind() Kind { return KindLeaf }

// NumChildren returns the number of children of this node.
func (p *Leaf) NumChildren() int { return 0 }

// Child returns the ith child of this node.
func (p *Leaf) Child(i int) Node {
	panic(fmt.Sprintf("leaf has no child %d", i))
}

// WithChild constructs a copy of this node with the ith child replaced.
func (p *Leaf) WithChild(i int, child Node) Node {
	panic(fmt.Sprintf("leaf has no child %d", i))
}

func one(i int, child Node) Node {
	if i != 0 {
		panic(fmt.Sprintf("single-child node has no child %d", i))
	}
	//
	return child
}

// Copy creates a deep copy of a tree, copying every owned polyhedral value
// against its context.  The copy is an independently owned tree.
func Copy(node Node) Node {
	switch n := node.(type) {
	case *Domain:
		return &Domain{n.Instances.Copy(), Copy(n.Body)}
	case *Context:
		return &Context{n.Constraint.Copy(), Copy(n.Body)}
	case *Band:
		var types []LoopType
		// a band without loop annotations stays without them
		if n.LoopTypes != nil {
			types = make([]LoopType, len(n.LoopTypes))
			copy(types, n.LoopTypes)
		}
		//
		return &Band{n.Schedule.Copy(), n.Permutable, n.Coincident.Clone(), types, Copy(n.Body)}
	case *Sequence:
		children := make([]*Filter, len(n.Children))
		for i, c := range n.Children {
			children[i] = Copy(c).(*Filter)
		}
		//
		return &Sequence{children}
	case *SetNode:
		children := make([]*Filter, len(n.Children))
		for i, c := range n.Children {
			children[i] = Copy(c).(*Filter)
		}
		//
		return &SetNode{children}
	case *Filter:
		return &Filter{n.Instances.Copy(), Copy(n.Body)}
	case *Mark:
		return &Mark{n.Label, Copy(n.Body)}
	case *Leaf:
		return &Leaf{}
	default:
		panic(fmt.Sprintf("unknown node variant %T", node))
	}
}

// Free releases every owned polyhedral value held by a tree.  The tree must
// not be used afterwards.
func Free(node Node) {
	switch n := node.(type) {
	case *Domain:
		n.Instances.Free()
		Free(n.Body)
	case *Context:
		n.Constraint.Free()
		Free(n.Body)
	case *Band:
		n.Schedule.Free()
		Free(n.Body)
	case *Sequence:
		for _, c := range n.Children {
			Free(c)
		}
	case *SetNode:
		for _, c := range n.Children {
			Free(c)
		}
	case *Filter:
		n.Instances.Free()
		Free(n.Body)
	case *Mark:
		Free(n.Body)
	case *Leaf:
		// nothing held
	default:
		panic(fmt.Sprintf("unknown node variant %T", node))
	}
}

// Dump renders a tree as an indented multi-line description.
func Dump(node Node) string {
	var builder strings.Builder
	dump(&builder, node, 0)
	//
	return builder.String()
}

func dump(builder *strings.Builder, node Node, depth int) {
	indent := strings.Repeat("  ", depth)
	//
	switch n := node.(type) {
	case *Domain:
		fmt.Fprintf(builder, "%sdomain: \"%s\"\n", indent, n.Instances)
		dump(builder, n.Body, depth+1)
	case *Context:
		fmt.Fprintf(builder, "%scontext: \"%s\"\n", indent, n.Constraint)
		dump(builder, n.Body, depth+1)
	case *Band:
		fmt.Fprintf(builder, "%sschedule: \"%s\"\n", indent, n.Schedule)
		//
		if n.Permutable {
			fmt.Fprintf(builder, "%spermutable: 1\n", indent)
		}
		//
		for i := 0; i < n.Schedule.Dim(); i++ {
			if n.Coincident.Contains(uint(i)) {
				fmt.Fprintf(builder, "%scoincident[%d]: 1\n", indent, i)
			}
			//
			if t := n.LoopType(i); t != LoopDefault {
				fmt.Fprintf(builder, "%sloop[%d]: %s\n", indent, i, t)
			}
		}
		//
		dump(builder, n.Body, depth+1)
	case *Sequence:
		fmt.Fprintf(builder, "%ssequence:\n", indent)
		//
		for _, c := range n.Children {
			dump(builder, c, depth+1)
		}
	case *SetNode:
		fmt.Fprintf(builder, "%sset:\n", indent)
		//
		for _, c := range n.Children {
			dump(builder, c, depth+1)
		}
	case *Filter:
		fmt.Fprintf(builder, "%sfilter: \"%s\"\n", indent, n.Instances)
		dump(builder, n.Body, depth+1)
	case *Mark:
		fmt.Fprintf(builder, "%smark: \"%s\"\n", indent, n.Label)
		dump(builder, n.Body, depth+1)
	case *Leaf:
		fmt.Fprintf(builder, "%sleaf\n", indent)
	}
}
