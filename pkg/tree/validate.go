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

// Validate checks the structural invariants of a schedule tree:
//
//  1. the root is a Domain node;
//  2. children of Sequence/Set nodes are Filters whose union covers the
//     instances reaching the node;
//  3. sibling filters of a Set node are pairwise disjoint;
//  4. a band's partial schedule is defined on every instance reaching it;
//  5. band annotations are consistent with the band's dimensionality.
//
// A violation is reported as an error naming the offending path; it
// indicates a defective rewrite, not invalid user input.
func Validate(root Node) error {
	domain, ok := root.(*Domain)
	//
	if !ok {
		return fmt.Errorf("root must be a domain node, found %s", root.Kind())
	}
	//
	return validate(domain.Body, domain.Instances.Copy(), NewPath(0))
}

// validate walks the subtree, consuming the reaching set.
func validate(node Node, reaching *poly.UnionSet, path Path) error {
	switch n := node.(type) {
	case *Domain:
		reaching.Free()
		return fmt.Errorf("%s: nested domain node", path)
	case *Context:
		return validate(n.Body, reaching, path.Extend(0))
	case *Band:
		if n.Schedule.Dim() != len(n.LoopTypes) && n.LoopTypes != nil {
			reaching.Free()
			return fmt.Errorf("%s: band has %d dimensions but %d loop annotations", path, n.Schedule.Dim(), len(n.LoopTypes))
		}
		//
		domain := n.Schedule.Domain()
		//
		if !reaching.IsSubset(domain) {
			domain.Free()
			reaching.Free()
			//
			return fmt.Errorf("%s: band schedule undefined on part of its instances", path)
		}
		//
		domain.Free()
		//
		return validate(n.Body, reaching, path.Extend(0))
	case *Sequence:
		return validateFilters(n.Children, reaching, path, false)
	case *SetNode:
		return validateFilters(n.Children, reaching, path, true)
	case *Filter:
		restricted := reaching.Intersect(n.Instances.Copy())
		return validate(n.Body, restricted, path.Extend(0))
	case *Mark:
		return validate(n.Body, reaching, path.Extend(0))
	case *Leaf:
		reaching.Free()
		return nil
	default:
		reaching.Free()
		return fmt.Errorf("%s: unknown node variant %T", path, node)
	}
}

func validateFilters(children []*Filter, reaching *poly.UnionSet, path Path, disjoint bool) error {
	ctx := reaching.Ctx()
	union := poly.NewUnionSet(ctx)
	//
	for i, child := range children {
		union = union.Union(child.Instances.Copy())
		// disjointness applies to set nodes only
		if disjoint {
			for j := i + 1; j < len(children); j++ {
				overlap := child.Instances.Copy().Intersect(children[j].Instances.Copy())
				empty := overlap.IsEmpty()
				overlap.Free()
				//
				if !empty {
					union.Free()
					reaching.Free()
					//
					return fmt.Errorf("%s: filters %d and %d of set node overlap", path, i, j)
				}
			}
		}
	}
	// the filters must cover everything that reaches this node
	covered := reaching.IsSubset(union)
	union.Free()
	//
	if !covered {
		reaching.Free()
		return fmt.Errorf("%s: filters do not cover the instances reaching the node", path)
	}
	//
	for i, child := range children {
		restricted := reaching.Copy().Intersect(child.Instances.Copy())
		//
		if err := validate(child.Body, restricted, path.Extend(i).Extend(0)); err != nil {
			reaching.Free()
			return err
		}
	}
	//
	reaching.Free()
	//
	return nil
}
