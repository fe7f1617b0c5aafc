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
package transform

import (
	"fmt"

	"github.com/hikettei/tadashi/pkg/tree"
	"github.com/hikettei/tadashi/pkg/util"
)

// Fuse merges filter children idx1 and idx2 of the focused sequence (or set)
// node.  The two filters are unioned into one; below the unified filter sits
// a band whose partial schedule is the union of the two original bands'
// schedules, each restricted to its original filter; and below that band an
// inner sequence preserves the two original loop bodies under their original
// filters.  Where the two bands' output identifiers differ, the first band's
// identifier is adopted; parameter spaces are aligned before the union.  The
// focus stays on the outer sequence node.
func Fuse(cur tree.Cursor, idx1 int, idx2 int) (tree.Cursor, error) {
	children, isSet, err := focusedFilters(cur)
	if err != nil {
		return cur, err
	}
	//
	if idx1 < 0 || idx2 >= len(children) || idx1 >= idx2 {
		return cur, fmt.Errorf("%w: fuse indices %d, %d of %d children", ErrBadParameter, idx1, idx2, len(children))
	}
	//
	var (
		f1 = children[idx1]
		f2 = children[idx2]
	)
	//
	b1, ok1 := f1.Body.(*tree.Band)
	b2, ok2 := f2.Body.(*tree.Band)
	//
	if !ok1 || !ok2 {
		return cur, fmt.Errorf("%w: fuse requires a band directly below each filter", ErrNotBand)
	}
	//
	if b1.Schedule.Dim() != 1 || b2.Schedule.Dim() != 1 {
		return cur, fmt.Errorf("%w: fuse requires one-dimensional bands", ErrBadParameter)
	}
	// restrict each schedule to its own filter, then union them; the
	// receiver's output identifier (the first band's) wins
	s1 := b1.Schedule.Copy().IntersectDomain(f1.Instances.Copy())
	s2 := b2.Schedule.Copy().IntersectDomain(f2.Instances.Copy())
	fusedSched := s1.UnionAdd(s2)
	// the unified filter admits both original instance sets
	mergedFilter := f1.Instances.Copy().Union(f2.Instances.Copy())
	// the inner sequence keeps both bodies under their original filters
	innerSeq := &tree.Sequence{Children: []*tree.Filter{
		{Instances: f1.Instances, Body: b1.Body},
		{Instances: f2.Instances, Body: b2.Body},
	}}
	//
	fusedBand := &tree.Band{
		Schedule:   fusedSched,
		Permutable: b1.Permutable && b2.Permutable,
		Body:       innerSeq,
	}
	// the original band schedules leave the tree
	b1.Schedule.Free()
	b2.Schedule.Free()
	// remaining filters keep their relative order; idx2 is subsumed
	unified := &tree.Filter{Instances: mergedFilter, Body: fusedBand}
	merged := util.RemoveAt(util.ReplaceAt(children, idx1, unified), idx2)
	//
	var replacement tree.Node
	//
	if isSet {
		replacement = &tree.SetNode{Children: merged}
	} else {
		replacement = &tree.Sequence{Children: merged}
	}
	//
	return cur.Replace(replacement), nil
}

// FuseAll folds every filter child of the focused sequence into one, by
// repeatedly fusing the first two children until a single filter remains.
func FuseAll(cur tree.Cursor) (tree.Cursor, error) {
	children, _, err := focusedFilters(cur)
	if err != nil {
		return cur, err
	}
	//
	for n := len(children); n > 1; n-- {
		if cur, err = Fuse(cur, 0, 1); err != nil {
			return cur, err
		}
	}
	//
	return cur, nil
}

// focusedFilters extracts the filter children of the focused sequence or set
// node.
func focusedFilters(cur tree.Cursor) ([]*tree.Filter, bool, error) {
	switch n := cur.Node().(type) {
	case *tree.Sequence:
		return n.Children, false, nil
	case *tree.SetNode:
		return n.Children, true, nil
	default:
		return nil, false, fmt.Errorf("%w (found %s)", ErrNotSequence, cur.Node().Kind())
	}
}
