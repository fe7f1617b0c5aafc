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
	"errors"
	"testing"

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
)

const bandTowerTree = `
domain: "[n] -> { S_0[i, j] : 0 <= i < n and 0 <= j < n }"
child:
  schedule: "[{ S_0[i, j] -> [(i)] }]"
  child:
    schedule: "[{ S_0[i, j] -> [(j)] }]"
`

const singleBandTree = `
domain: "{ S_0[i] : 0 <= i < 100 }"
child:
  schedule: "[{ S_0[i] -> [(i)] }]"
`

const twoLoopTree = `
domain: "{ S_0[i] : 0 <= i < 50; S_1[i] : 0 <= i < 50 }"
child:
  sequence:
  - filter: "{ S_0[i] }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
  - filter: "{ S_1[i] }"
    child:
      schedule: "[{ S_1[i] -> [(i)] }]"
`

func Test_Tile_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := Tile(cur, 32)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	// focus remains on the outer band; its child is the inner band
	outer, ok := cur.Node().(*tree.Band)
	if !ok {
		t.Fatalf("focus should be a band, got %s", cur.Node().Kind())
	}
	//
	inner, ok := outer.Body.(*tree.Band)
	if !ok {
		t.Fatalf("outer band's child should be a band")
	}
	// flattening outer * 32 + inner recovers the original schedule
	for _, i := range []int64{0, 1, 31, 32, 63, 99} {
		var (
			o    = evalMember(t, outer, "S_0", i)
			v    = evalMember(t, inner, "S_0", i)
			flat = o*32 + v
		)
		//
		if flat != i {
			t.Errorf("32 * %d + %d != %d", o, v, i)
		}
	}
	//
	check_Valid(t, cur)
	cur.Free()
	check_Close(t, ctx)
}

func Test_Tile_02(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	// tiling a domain node is a precondition violation
	if _, err := Tile(cur, 32); !errors.Is(err, ErrNotBand) {
		t.Errorf("expected ErrNotBand, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Tile_03(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	// non-positive tile sizes are rejected
	if _, err := Tile(cur, 0); !errors.Is(err, ErrBadParameter) {
		t.Errorf("expected ErrBadParameter, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Interchange_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, bandTowerTree)
	cur = check_Child(t, cur, 0)
	//
	before := tree.Dump(cur.Tree())
	//
	cur, err := Interchange(cur)
	if err != nil {
		t.Fatalf("interchange: %v", err)
	}
	// outer band now schedules j
	outer := cur.Node().(*tree.Band)
	//
	if v := evalMemberAt(t, outer, "S_0", []int64{3, 7}); v != 7 {
		t.Errorf("outer band should schedule j, got %d", v)
	}
	// applying interchange twice returns the original tree
	cur, err = Interchange(cur)
	if err != nil {
		t.Fatalf("second interchange: %v", err)
	}
	//
	if after := tree.Dump(cur.Tree()); after != before {
		t.Errorf("interchange is not an involution:\n%s\nvs\n%s", before, after)
	}
	//
	check_Valid(t, cur)
	cur.Free()
	check_Close(t, ctx)
}

func Test_Interchange_02(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	// the band's child is a leaf, not a band
	if _, err := Interchange(cur); !errors.Is(err, ErrNotBand) {
		t.Errorf("expected ErrNotBand, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Scale_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	before := tree.Dump(cur.Tree())
	// scaling by one is the identity
	cur, err := Scale(cur, 1)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	//
	if after := tree.Dump(cur.Tree()); after != before {
		t.Errorf("scale by 1 changed the schedule:\n%s\nvs\n%s", before, after)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Scale_02(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := Scale(cur, 3)
	if err != nil {
		t.Fatalf("scale: %v", err)
	}
	//
	band := cur.Node().(*tree.Band)
	//
	if v := evalMember(t, band, "S_0", 5); v != 15 {
		t.Errorf("scaled schedule should map 5 to 15, got %d", v)
	}
	//
	check_Valid(t, cur)
	cur.Free()
	check_Close(t, ctx)
}

func Test_Shift_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	before := tree.Dump(cur.Tree())
	// shift by 5 then by -5: the schedule is restored
	cur, err := ShiftPartialVal(cur, 0, 5)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	//
	band := cur.Node().(*tree.Band)
	//
	if v := evalMember(t, band, "S_0", 10); v != 15 {
		t.Errorf("shifted schedule should map 10 to 15, got %d", v)
	}
	//
	cur, err = ShiftPartialVal(cur, 0, -5)
	if err != nil {
		t.Fatalf("negated shift: %v", err)
	}
	//
	if after := tree.Dump(cur.Tree()); after != before {
		t.Errorf("shift then negated shift changed the schedule:\n%s\nvs\n%s", before, after)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Shift_02(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	// shifting by the iteration variable doubles the coordinate
	cur, err := ShiftFullVar(cur, 0)
	if err != nil {
		t.Fatalf("shift: %v", err)
	}
	//
	band := cur.Node().(*tree.Band)
	//
	if v := evalMember(t, band, "S_0", 21); v != 42 {
		t.Errorf("variable shift should map 21 to 42, got %d", v)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Shift_03(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	// out of range piece index
	if _, err := ShiftPartialVal(cur, 3, 5); !errors.Is(err, ErrBadParameter) {
		t.Errorf("expected ErrBadParameter, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Fuse_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, twoLoopTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := Fuse(cur, 0, 1)
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	// focus returns to the sequence, now with a single filter
	seq, ok := cur.Node().(*tree.Sequence)
	if !ok {
		t.Fatalf("focus should be a sequence, got %s", cur.Node().Kind())
	}
	//
	if len(seq.Children) != 1 {
		t.Fatalf("expected 1 filter after fuse, got %d", len(seq.Children))
	}
	// below the unified filter sits the fused band
	band, ok := seq.Children[0].Body.(*tree.Band)
	if !ok {
		t.Fatalf("unified filter should hold a band")
	}
	// the fused schedule covers both statements
	if v := evalMember(t, band, "S_0", 7); v != 7 {
		t.Errorf("fused band should schedule S_0 at 7, got %d", v)
	}
	//
	if v := evalMember(t, band, "S_1", 7); v != 7 {
		t.Errorf("fused band should schedule S_1 at 7, got %d", v)
	}
	// both bodies survive under the inner sequence
	if _, ok := band.Body.(*tree.Sequence); !ok {
		t.Errorf("fused band should hold the preserved bodies")
	}
	//
	check_Valid(t, cur)
	cur.Free()
	check_Close(t, ctx)
}

func Test_Fuse_02(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, twoLoopTree)
	cur = check_Child(t, cur, 0)
	// out of range indices
	if _, err := Fuse(cur, 0, 2); !errors.Is(err, ErrBadParameter) {
		t.Errorf("expected ErrBadParameter, got %v", err)
	}
	//
	if _, err := Fuse(cur, 1, 1); !errors.Is(err, ErrBadParameter) {
		t.Errorf("expected ErrBadParameter, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_FuseAll_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, twoLoopTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := FuseAll(cur)
	if err != nil {
		t.Fatalf("full fuse: %v", err)
	}
	//
	seq := cur.Node().(*tree.Sequence)
	//
	if len(seq.Children) != 1 {
		t.Errorf("expected a single filter, got %d", len(seq.Children))
	}
	//
	check_Valid(t, cur)
	cur.Free()
	check_Close(t, ctx)
}

func Test_Parallel_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := SetParallel(cur)
	if err != nil {
		t.Fatalf("set parallel: %v", err)
	}
	//
	band := cur.Node().(*tree.Band)
	//
	if !band.Coincident.Contains(0) {
		t.Errorf("dimension 0 should be marked coincident")
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_LoopType_01(t *testing.T) {
	ctx := poly.NewCtx()
	cur := check_Load(t, ctx, singleBandTree)
	cur = check_Child(t, cur, 0)
	//
	cur, err := SetLoopType(cur, 0, tree.LoopUnroll)
	if err != nil {
		t.Fatalf("set loop type: %v", err)
	}
	//
	band := cur.Node().(*tree.Band)
	//
	if band.LoopType(0) != tree.LoopUnroll {
		t.Errorf("dimension 0 should be annotated unroll")
	}
	// out of range dimension
	if _, err := SetLoopType(cur, 5, tree.LoopAtomic); !errors.Is(err, ErrBadParameter) {
		t.Errorf("expected ErrBadParameter, got %v", err)
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Load(t *testing.T, ctx *poly.Ctx, input string) tree.Cursor {
	root, err := tree.UnmarshalYAML(ctx, []byte(input))
	if err != nil {
		t.Fatalf("unmarshalling tree: %v", err)
	}
	//
	return tree.NewCursor(root)
}

func check_Child(t *testing.T, cur tree.Cursor, i int) tree.Cursor {
	next, err := cur.Child(i)
	if err != nil {
		t.Fatalf("child %d: %v", i, err)
	}
	//
	return next
}

func check_Valid(t *testing.T, cur tree.Cursor) {
	if err := tree.Validate(cur.Tree()); err != nil {
		t.Errorf("structural invariant broken: %v", err)
	}
}

func check_Close(t *testing.T, ctx *poly.Ctx) {
	if err := ctx.Close(); err != nil {
		t.Errorf("teardown: %v", err)
	}
}

// evalMember evaluates dimension 0 of a band's schedule for a statement at a
// one-dimensional point.
func evalMember(t *testing.T, band *tree.Band, stmt string, point int64) int64 {
	return evalMemberAt(t, band, stmt, []int64{point})
}

func evalMemberAt(t *testing.T, band *tree.Band, stmt string, point []int64) int64 {
	member := band.Schedule.Member(0)
	//
	for _, piece := range member.Pieces {
		if piece.Domain.Space.Out.Name == stmt {
			params := make([]int64, len(piece.Domain.Space.Params))
			// any parameter valuation works for these schedules
			for i := range params {
				params[i] = 100
			}
			//
			val := piece.Value.Eval(params, point)
			//
			if !val.IsInt() {
				t.Fatalf("non-integral schedule value %s", val)
			}
			//
			return val.Num().Int64()
		}
	}
	//
	t.Fatalf("no piece for statement %s", stmt)
	//
	return 0
}
