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

// Package transform provides the loop-restructuring primitives.  Every
// primitive consumes its input cursor, rewrites the tree underneath and
// returns a cursor into the new tree.  Primitives maintain the structural
// invariants of schedule trees but do not consult the legality oracle; that
// is the session's job.
package transform

import (
	"errors"
	"fmt"

	"github.com/hikettei/tadashi/pkg/tree"
)

// ErrNotBand indicates a band-only primitive was applied elsewhere.
var ErrNotBand = errors.New("focused node is not a band")

// ErrNotSequence indicates a sequence-only primitive was applied elsewhere.
var ErrNotSequence = errors.New("focused node is not a sequence or set")

// ErrBadParameter indicates a primitive parameter out of its legal range.
var ErrBadParameter = errors.New("parameter out of range")

// focusedBand extracts the band at the cursor's focus.
func focusedBand(cur tree.Cursor) (*tree.Band, error) {
	band, ok := cur.Node().(*tree.Band)
	//
	if !ok {
		return nil, fmt.Errorf("%w (found %s)", ErrNotBand, cur.Node().Kind())
	}
	//
	return band, nil
}

// cloneLoopTypes duplicates a band's per-dimension annotations.
func cloneLoopTypes(types []tree.LoopType) []tree.LoopType {
	if types == nil {
		return nil
	}
	//
	cloned := make([]tree.LoopType, len(types))
	copy(cloned, types)
	//
	return cloned
}
