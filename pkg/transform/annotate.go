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
)

// SetParallel marks dimension 0 of the focused band as coincident, i.e. as a
// candidate for parallel execution.  The session consults the legality
// oracle's parallel variant before committing this annotation; the loop-type
// annotation is an orthogonal, codegen-only directive and is not touched.
func SetParallel(cur tree.Cursor) (tree.Cursor, error) {
	band, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	coincident := band.Coincident.Clone()
	coincident.Insert(0)
	//
	marked := &tree.Band{
		Schedule:   band.Schedule,
		Permutable: band.Permutable,
		Coincident: coincident,
		LoopTypes:  cloneLoopTypes(band.LoopTypes),
		Body:       band.Body,
	}
	//
	return cur.Replace(marked), nil
}

// SetLoopType sets the AST-build annotation for dimension pos of the focused
// band.  This is a pure code-generation directive; no legality check is
// needed.
func SetLoopType(cur tree.Cursor, pos int, loopType tree.LoopType) (tree.Cursor, error) {
	band, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	if pos < 0 || pos >= band.Schedule.Dim() {
		return cur, fmt.Errorf("%w: dimension %d of %d", ErrBadParameter, pos, band.Schedule.Dim())
	}
	//
	types := make([]tree.LoopType, band.Schedule.Dim())
	copy(types, band.LoopTypes)
	types[pos] = loopType
	//
	annotated := &tree.Band{
		Schedule:   band.Schedule,
		Permutable: band.Permutable,
		Coincident: band.Coincident.Clone(),
		LoopTypes:  types,
		Body:       band.Body,
	}
	//
	return cur.Replace(annotated), nil
}
