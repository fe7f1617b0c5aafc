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

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
)

// The shift family adds an affine delta to a band's one-dimensional partial
// schedule.  Partial variants touch a single piece of the piecewise domain;
// full variants touch every piece.  The delta is either a constant, the
// identity on one input dimension, or a multiple of one parameter.  The
// output tuple identifier is preserved throughout.

// shiftFn builds the delta expression for one selected piece.
type shiftFn func(space *poly.Space) (*poly.Aff, error)

// shiftPartial enumerates the piece domains of the band's partial schedule,
// applies fn to the selected piece (or all pieces when pieceIdx is
// negative), sums zero elsewhere, and shifts the band by the resulting
// piecewise delta.
func shiftPartial(cur tree.Cursor, pieceIdx int, fn shiftFn) (tree.Cursor, error) {
	band, err := focusedBand(cur)
	if err != nil {
		return cur, err
	}
	//
	if band.Schedule.Dim() != 1 {
		return cur, fmt.Errorf("%w: shift requires a one-dimensional band", ErrBadParameter)
	}
	//
	member := band.Schedule.Member(0)
	//
	if pieceIdx >= len(member.Pieces) {
		return cur, fmt.Errorf("%w: piece %d of %d", ErrBadParameter, pieceIdx, len(member.Pieces))
	}
	//
	deltaPieces := make([]poly.Piece, len(member.Pieces))
	//
	for i, piece := range member.Pieces {
		var value *poly.Aff
		//
		if pieceIdx < 0 || pieceIdx == i {
			if value, err = fn(piece.Domain.Space); err != nil {
				return cur, err
			}
		} else {
			value = poly.NewConstAff(piece.Domain.Space, 0)
		}
		//
		deltaPieces[i] = poly.Piece{Domain: piece.Domain.Clone(), Value: value}
	}
	//
	ctx := band.Schedule.Ctx()
	delta := poly.NewMultiUnionPwAff(ctx, band.Schedule.OutName(), poly.NewUnionPwAff(deltaPieces...))
	//
	shifted := &tree.Band{
		Schedule:   band.Schedule.Add(delta),
		Permutable: band.Permutable,
		Coincident: band.Coincident.Clone(),
		LoopTypes:  cloneLoopTypes(band.LoopTypes),
		Body:       band.Body,
	}
	//
	return cur.Replace(shifted), nil
}

// constShift yields the constant delta val.
func constShift(val int64) shiftFn {
	return func(space *poly.Space) (*poly.Aff, error) {
		return poly.NewConstAff(space, val), nil
	}
}

// varShift yields the identity on input dimension idx.
func varShift(idx int) shiftFn {
	return func(space *poly.Space) (*poly.Aff, error) {
		if idx < 0 || idx >= space.Out.Arity() {
			return nil, fmt.Errorf("%w: input dimension %d", ErrBadParameter, idx)
		}
		//
		return poly.NewVarAff(space, idx), nil
	}
}

// paramShift yields coeff times the given parameter.
func paramShift(coeff int64, idx int) shiftFn {
	return func(space *poly.Space) (*poly.Aff, error) {
		if idx < 0 || idx >= len(space.Params) {
			return nil, fmt.Errorf("%w: parameter %d", ErrBadParameter, idx)
		}
		//
		return poly.NewParamAff(space, coeff, idx), nil
	}
}

// ShiftPartialVal adds the constant val to piece pieceIdx of the focused
// band's partial schedule.
func ShiftPartialVal(cur tree.Cursor, pieceIdx int, val int64) (tree.Cursor, error) {
	if pieceIdx < 0 {
		return cur, fmt.Errorf("%w: piece %d", ErrBadParameter, pieceIdx)
	}
	//
	return shiftPartial(cur, pieceIdx, constShift(val))
}

// ShiftPartialVar adds input dimension varIdx to piece pieceIdx of the
// focused band's partial schedule.
func ShiftPartialVar(cur tree.Cursor, pieceIdx int, varIdx int) (tree.Cursor, error) {
	if pieceIdx < 0 {
		return cur, fmt.Errorf("%w: piece %d", ErrBadParameter, pieceIdx)
	}
	//
	return shiftPartial(cur, pieceIdx, varShift(varIdx))
}

// ShiftPartialParam adds coeff times parameter paramIdx to piece pieceIdx of
// the focused band's partial schedule.
func ShiftPartialParam(cur tree.Cursor, pieceIdx int, coeff int64, paramIdx int) (tree.Cursor, error) {
	if pieceIdx < 0 {
		return cur, fmt.Errorf("%w: piece %d", ErrBadParameter, pieceIdx)
	}
	//
	return shiftPartial(cur, pieceIdx, paramShift(coeff, paramIdx))
}

// ShiftFullVal adds the constant val to every piece of the focused band's
// partial schedule.
func ShiftFullVal(cur tree.Cursor, val int64) (tree.Cursor, error) {
	return shiftPartial(cur, -1, constShift(val))
}

// ShiftFullVar adds input dimension varIdx to every piece of the focused
// band's partial schedule.
func ShiftFullVar(cur tree.Cursor, varIdx int) (tree.Cursor, error) {
	return shiftPartial(cur, -1, varShift(varIdx))
}

// ShiftFullParam adds coeff times parameter paramIdx to every piece of the
// focused band's partial schedule.
func ShiftFullParam(cur tree.Cursor, coeff int64, paramIdx int) (tree.Cursor, error) {
	return shiftPartial(cur, -1, paramShift(coeff, paramIdx))
}
