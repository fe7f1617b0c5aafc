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

// Tile replaces the focused band with a two-level band tower: the outer band
// schedules tiles via floor(d / size), the inner band schedules the offset
// within a tile via d mod size, for every dimension d of the original band.
// The focus remains on the outer band.
func Tile(cur tree.Cursor, size int64) (tree.Cursor, error) {
	band, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	if size <= 0 {
		return cur, fmt.Errorf("%w: tile size %d", ErrBadParameter, size)
	}
	//
	outerSched := band.Schedule.Copy().FloorDiv(size)
	innerSched := band.Schedule.Copy().Mod(size)
	band.Schedule.Free()
	//
	inner := &tree.Band{
		Schedule:   innerSched,
		Permutable: band.Permutable,
		Coincident: band.Coincident.Clone(),
		LoopTypes:  cloneLoopTypes(band.LoopTypes),
		Body:       band.Body,
	}
	//
	outer := &tree.Band{
		Schedule:   outerSched,
		Permutable: band.Permutable,
		Coincident: band.Coincident.Clone(),
		LoopTypes:  cloneLoopTypes(band.LoopTypes),
		Body:       inner,
	}
	//
	return cur.Replace(outer), nil
}

// Interchange swaps the partial schedules of the focused band and its direct
// band child.  Following the delete/insert construction, the inner band's
// annotations travel with its schedule to the outer position while the
// reinserted schedule gets a fresh, unannotated band.  The focus ends on the
// (originally inner, now outer) band.
func Interchange(cur tree.Cursor) (tree.Cursor, error) {
	outer, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	inner, ok := outer.Body.(*tree.Band)
	if !ok {
		return cur, fmt.Errorf("%w: interchange requires a direct band child", ErrNotBand)
	}
	//
	newInner := &tree.Band{Schedule: outer.Schedule, Body: inner.Body}
	newOuter := &tree.Band{
		Schedule:   inner.Schedule,
		Permutable: inner.Permutable,
		Coincident: inner.Coincident.Clone(),
		LoopTypes:  cloneLoopTypes(inner.LoopTypes),
		Body:       newInner,
	}
	//
	return cur.Replace(newOuter), nil
}

// Scale multiplies every output dimension of the focused band's partial
// schedule by the given positive constant.
func Scale(cur tree.Cursor, factor int64) (tree.Cursor, error) {
	band, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	if factor <= 0 {
		return cur, fmt.Errorf("%w: scale factor %d", ErrBadParameter, factor)
	}
	//
	scaled := &tree.Band{
		Schedule:   band.Schedule.Scale(factor),
		Permutable: band.Permutable,
		Coincident: band.Coincident.Clone(),
		LoopTypes:  cloneLoopTypes(band.LoopTypes),
		Body:       band.Body,
	}
	//
	return cur.Replace(scaled), nil
}
