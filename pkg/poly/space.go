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
package poly

import (
	"fmt"
	"slices"
	"strings"
)

// Tuple identifies a named space of dimensions, such as the instance space
// S[i,j] of a statement S, or the anonymous target space of a schedule.
type Tuple struct {
	// Name of this tuple, which may be empty for anonymous spaces (e.g.
	// schedule points).
	Name string
	// Dims gives the dimension names.  Dimension names matter only for
	// printing and parsing; identity is positional.
	Dims []string
}

// Arity returns the number of dimensions in this tuple.
func (p Tuple) Arity() int {
	return len(p.Dims)
}

// Equals determines whether two tuples are compatible, meaning they have the
// same name and the same number of dimensions.
func (p Tuple) Equals(other Tuple) bool {
	return p.Name == other.Name && len(p.Dims) == len(other.Dims)
}

func (p Tuple) String() string {
	return fmt.Sprintf("%s[%s]", p.Name, strings.Join(p.Dims, ", "))
}

// Space describes the universe a set or relation lives in: its parameters,
// its input tuple (empty for sets) and its output tuple.
type Space struct {
	// Params gives the symbolic parameter names, shared across all tuples.
	Params []string
	// In is the input tuple.  For sets this is empty.
	In Tuple
	// Out is the output tuple.  For sets this is the set tuple.
	Out Tuple
}

// NewSetSpace constructs the space of a set over the given tuple.
func NewSetSpace(params []string, tuple Tuple) *Space {
	return &Space{slices.Clone(params), Tuple{}, tuple}
}

// NewMapSpace constructs the space of a relation between two tuples.
func NewMapSpace(params []string, in Tuple, out Tuple) *Space {
	return &Space{slices.Clone(params), in, out}
}

// IsSet determines whether this is a set space (i.e. has no input tuple).
func (p *Space) IsSet() bool {
	return p.In.Arity() == 0 && p.In.Name == ""
}

// Dim returns the total number of dimension columns in this space, excluding
// parameters.
func (p *Space) Dim() int {
	return p.In.Arity() + p.Out.Arity()
}

// ParamIndex returns the column of the given parameter, or -1 if absent.
func (p *Space) ParamIndex(name string) int {
	return slices.Index(p.Params, name)
}

// Equals determines whether two spaces are identical.
func (p *Space) Equals(other *Space) bool {
	return slices.Equal(p.Params, other.Params) && p.In.Equals(other.In) && p.Out.Equals(other.Out)
}

// Reverse swaps the input and output tuples of this space.
func (p *Space) Reverse() *Space {
	return &Space{p.Params, p.Out, p.In}
}

// AlignParams merges the parameters of two spaces, returning the combined
// parameter list together with the column remapping for each input.  Shared
// names map to the same column.
func AlignParams(lhs []string, rhs []string) (params []string, lmap []int, rmap []int) {
	params = slices.Clone(lhs)
	lmap = make([]int, len(lhs))
	rmap = make([]int, len(rhs))
	//
	for i := range lhs {
		lmap[i] = i
	}
	//
	for i, name := range rhs {
		j := slices.Index(params, name)
		if j < 0 {
			j = len(params)
			params = append(params, name)
		}
		//
		rmap[i] = j
	}
	//
	return params, lmap, rmap
}

func (p *Space) String() string {
	var builder strings.Builder
	//
	if len(p.Params) > 0 {
		builder.WriteString(fmt.Sprintf("[%s] -> ", strings.Join(p.Params, ", ")))
	}
	//
	if p.IsSet() {
		builder.WriteString(fmt.Sprintf("{ %s }", p.Out.String()))
	} else {
		builder.WriteString(fmt.Sprintf("{ %s -> %s }", p.In.String(), p.Out.String()))
	}
	//
	return builder.String()
}
