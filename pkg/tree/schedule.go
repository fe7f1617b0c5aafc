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

	"github.com/hikettei/tadashi/pkg/poly"
)

// stmtState tracks one statement while flattening a tree: its (possibly
// filtered) instance set, and the schedule expressions accumulated so far.
type stmtState struct {
	domain *poly.Set
	affs   []*poly.Aff
}

// ScheduleMap flattens a schedule tree into the relation from statement
// instances to schedule points.  Band members contribute schedule
// dimensions; sequence (and set) children contribute their ordinal as a
// constant dimension.  Branches of unequal depth are padded with trailing
// zeros so that every schedule point lives in one space, which is what the
// legality oracle's delta computation requires.
func ScheduleMap(root Node) (*poly.UnionMap, error) {
	domain, ok := root.(*Domain)
	//
	if !ok {
		return nil, fmt.Errorf("root must be a domain node, found %s", root.Kind())
	}
	//
	var (
		ctx    = domain.Instances.Ctx()
		states []stmtState
		final  []stmtState
	)
	//
	for _, s := range domain.Instances.Sets() {
		states = append(states, stmtState{s.Clone(), nil})
	}
	//
	if err := flatten(domain.Body, states, &final); err != nil {
		return nil, err
	}
	// pad every branch to uniform depth
	depth := 0
	for _, s := range final {
		depth = max(depth, len(s.affs))
	}
	//
	outDims := make([]string, depth)
	for i := range outDims {
		outDims[i] = fmt.Sprintf("o%d", i)
	}
	//
	var maps []*poly.Map
	//
	for _, s := range final {
		space := s.domain.Space
		//
		for len(s.affs) < depth {
			s.affs = append(s.affs, poly.NewConstAff(space, 0))
		}
		//
		graph := poly.BasicMapFromAffs(poly.Tuple{Name: "", Dims: outDims}, s.affs)
		//
		var basics []*poly.BasicMap
		for _, b := range s.domain.Basics {
			basics = append(basics, graph.IntersectDomain(b))
		}
		//
		maps = append(maps, poly.MapFromBasics(basics...))
	}
	//
	return poly.UnionMapFromMaps(ctx, maps...), nil
}

// flatten walks the subtree accumulating schedule expressions, appending
// fully scheduled statements to final.
func flatten(node Node, states []stmtState, final *[]stmtState) error {
	switch n := node.(type) {
	case *Domain:
		return fmt.Errorf("nested domain node")
	case *Context:
		return flatten(n.Body, states, final)
	case *Band:
		for si := range states {
			name := states[si].domain.Space.Out.Name
			//
			for d := 0; d < n.Schedule.Dim(); d++ {
				member := n.Schedule.Member(d)
				found := false
				//
				for _, piece := range member.Pieces {
					if piece.Domain.Space.Out.Name == name {
						states[si].affs = append(states[si].affs, piece.Value)
						found = true
						//
						break
					}
				}
				//
				if !found {
					return fmt.Errorf("band schedule undefined on statement %s", name)
				}
			}
		}
		//
		return flatten(n.Body, states, final)
	case *Sequence:
		return flattenFilters(n.Children, states, final)
	case *SetNode:
		// children of a set node are unordered; scheduling them by ordinal
		// picks one of the permitted orders
		return flattenFilters(n.Children, states, final)
	case *Filter:
		return flatten(n.Body, restrict(states, n.Instances), final)
	case *Mark:
		return flatten(n.Body, states, final)
	case *Leaf:
		*final = append(*final, states...)
		return nil
	default:
		return fmt.Errorf("unknown node variant %T", node)
	}
}

func flattenFilters(children []*Filter, states []stmtState, final *[]stmtState) error {
	for i, child := range children {
		sub := restrict(states, child.Instances)
		//
		for si := range sub {
			ordinal := poly.NewConstAff(sub[si].domain.Space, int64(i))
			sub[si].affs = append(append([]*poly.Aff{}, sub[si].affs...), ordinal)
		}
		//
		if err := flatten(child.Body, sub, final); err != nil {
			return err
		}
	}
	//
	return nil
}

// restrict intersects each statement's domain with a filter, dropping
// statements the filter excludes.
func restrict(states []stmtState, filter *poly.UnionSet) []stmtState {
	var result []stmtState
	//
	for _, s := range states {
		f := filter.Lookup(s.domain.Space.Out.Name)
		if f == nil {
			continue
		}
		//
		restricted := s.domain.Intersect(f)
		if restricted.IsEmpty() {
			continue
		}
		//
		affs := append([]*poly.Aff{}, s.affs...)
		result = append(result, stmtState{restricted, affs})
	}
	//
	return result
}
