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
)

// Cursor pairs an owned tree with a path identifying the focused node.
// Navigation is pure: it returns a new cursor over the same tree.  Mutation
// (Replace) rebuilds the spine from the focused node up to the root and
// returns a cursor over the new tree; by the ownership protocol the old
// cursor must not be used afterwards.
type Cursor struct {
	root Node
	path Path
}

// NewCursor creates a cursor focused on the root of the given tree.
func NewCursor(root Node) Cursor {
	return Cursor{root, NewPath()}
}

// Root moves the focus to the root node.
func (p Cursor) Root() Cursor {
	return Cursor{p.root, NewPath()}
}

// Tree returns the tree this cursor owns.
func (p Cursor) Tree() Node {
	return p.root
}

// Path returns the focused position.
func (p Cursor) Path() Path {
	return p.path
}

// Node returns the focused node.
func (p Cursor) Node() Node {
	node := p.root
	//
	for i := uint(0); i < p.path.Depth(); i++ {
		node = node.Child(p.path.Get(i))
	}
	//
	return node
}

// Parent moves the focus one step towards the root.
func (p Cursor) Parent() (Cursor, error) {
	if p.path.IsRoot() {
		return p, fmt.Errorf("root node has no parent")
	}
	//
	return Cursor{p.root, p.path.Parent()}, nil
}

// Child moves the focus to the given child of the focused node.
func (p Cursor) Child(i int) (Cursor, error) {
	n := p.Node()
	//
	if i < 0 || i >= n.NumChildren() {
		return p, fmt.Errorf("node %s has no child %d", n.Kind(), i)
	}
	//
	return Cursor{p.root, p.path.Extend(i)}, nil
}

// At refocuses this cursor at an arbitrary path, which must identify a node.
func (p Cursor) At(path Path) (Cursor, error) {
	node := p.root
	//
	for i := uint(0); i < path.Depth(); i++ {
		idx := path.Get(i)
		if idx < 0 || idx >= node.NumChildren() {
			return p, fmt.Errorf("no node at path %s", path)
		}
		//
		node = node.Child(idx)
	}
	//
	return Cursor{p.root, path}, nil
}

// Replace substitutes the focused node, rebuilding the spine up to the root,
// and returns a cursor focused at the same path within the new tree.
func (p Cursor) Replace(node Node) Cursor {
	return Cursor{replaceAt(p.root, p.path, 0, node), p.path}
}

func replaceAt(node Node, path Path, depth uint, replacement Node) Node {
	if depth == path.Depth() {
		return replacement
	}
	//
	idx := path.Get(depth)
	//
	return node.WithChild(idx, replaceAt(node.Child(idx), path, depth+1, replacement))
}

// Copy duplicates the whole tree, returning a cursor at the same position in
// the copy.
func (p Cursor) Copy() Cursor {
	return Cursor{Copy(p.root), p.path}
}

// Free releases the tree owned by this cursor.
func (p Cursor) Free() {
	Free(p.root)
}
