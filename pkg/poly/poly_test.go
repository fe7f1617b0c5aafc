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
	"math/big"
	"testing"
)

func Test_Parse_01(t *testing.T) {
	ctx := NewCtx()
	us := check_ParseUnionSet(t, ctx, "[n] -> { S[i, j] : 0 <= i < n and 0 <= j < n }")
	//
	if len(us.Sets()) != 1 {
		t.Errorf("expected one tuple, got %d", len(us.Sets()))
	}
	//
	if us.IsEmpty() {
		t.Errorf("parametric set reported empty: %s", us)
	}
	//
	us.Free()
	check_Close(t, ctx)
}

func Test_Parse_02(t *testing.T) {
	ctx := NewCtx()
	us := check_ParseUnionSet(t, ctx, "{ S[i] : 0 <= i and i < 10; T[i, j] : i = j }")
	//
	if len(us.Sets()) != 2 {
		t.Errorf("expected two tuples, got %d", len(us.Sets()))
	}
	//
	if us.Lookup("S") == nil || us.Lookup("T") == nil {
		t.Errorf("missing tuple in %s", us)
	}
	//
	us.Free()
	check_Close(t, ctx)
}

func Test_Parse_03(t *testing.T) {
	ctx := NewCtx()
	um := check_ParseUnionMap(t, ctx, "[n] -> { S[i, j] -> A[i, j + 1] : 0 <= i < n }")
	//
	if um.IsEmpty() {
		t.Errorf("access relation reported empty: %s", um)
	}
	//
	um.Free()
	check_Close(t, ctx)
}

func Test_Parse_04(t *testing.T) {
	ctx := NewCtx()
	// round trip: print then reparse
	us := check_ParseUnionSet(t, ctx, "[n] -> { S[i] : 0 <= i and i < n }")
	us2 := check_ParseUnionSet(t, ctx, us.String())
	//
	if !us.IsSubset(us2) || !us2.IsSubset(us) {
		t.Errorf("round trip changed the set: %s vs %s", us, us2)
	}
	//
	us.Free()
	us2.Free()
	check_Close(t, ctx)
}

func Test_Empty_01(t *testing.T) {
	ctx := NewCtx()
	us := check_ParseUnionSet(t, ctx, "{ S[i] : i > 10 and i < 5 }")
	//
	if !us.IsEmpty() {
		t.Errorf("contradictory set not empty: %s", us)
	}
	//
	us.Free()
	check_Close(t, ctx)
}

func Test_Empty_02(t *testing.T) {
	ctx := NewCtx()
	us := check_ParseUnionSet(t, ctx, "{ S[i] : 0 <= i and i <= 0 }")
	//
	if us.IsEmpty() {
		t.Errorf("singleton set reported empty: %s", us)
	}
	//
	us.Free()
	check_Close(t, ctx)
}

func Test_Subset_01(t *testing.T) {
	ctx := NewCtx()
	a := check_ParseUnionSet(t, ctx, "{ S[i] : 0 <= i and i < 5 }")
	b := check_ParseUnionSet(t, ctx, "{ S[i] : 0 <= i and i < 10 }")
	//
	if !a.IsSubset(b) {
		t.Errorf("%s should be contained in %s", a, b)
	}
	//
	if b.IsSubset(a) {
		t.Errorf("%s should not be contained in %s", b, a)
	}
	//
	a.Free()
	b.Free()
	check_Close(t, ctx)
}

func Test_Intersect_01(t *testing.T) {
	ctx := NewCtx()
	a := check_ParseUnionSet(t, ctx, "{ S[i] : 0 <= i and i < 5 }")
	b := check_ParseUnionSet(t, ctx, "{ S[i] : 10 <= i and i < 20 }")
	c := a.Intersect(b)
	//
	if !c.IsEmpty() {
		t.Errorf("disjoint intersection not empty: %s", c)
	}
	//
	c.Free()
	check_Close(t, ctx)
}

func Test_Compose_01(t *testing.T) {
	ctx := NewCtx()
	// writes then reads of the same cell
	w := check_ParseUnionMap(t, ctx, "{ S[i] -> A[i] : 0 <= i and i < 10 }")
	r := check_ParseUnionMap(t, ctx, "{ T[i] -> A[i - 1] : 1 <= i and i < 10 }")
	// conflict relation S -> T through A
	conflict := w.ApplyRange(r.Inverse())
	//
	if conflict.IsEmpty() {
		t.Errorf("expected a conflict relation")
	}
	//
	conflict.Free()
	check_Close(t, ctx)
}

func Test_Deltas_01(t *testing.T) {
	ctx := NewCtx()
	m := check_ParseUnionMap(t, ctx, "{ [i, j] -> [i + 1, j - 1] : 0 <= i and i < 10 and 0 <= j and j < 10 }")
	deltas := m.Deltas()
	//
	if len(deltas.Sets()) != 1 {
		t.Errorf("expected one delta set")
	} else {
		// the only delta is (1, -1), so pinning the first component to -1
		// leaves nothing
		probe := deltas.Sets()[0].Clone()
		//
		for _, b := range probe.Basics {
			b.AddEquality(NewVarAff(b.Space, 0).Add(NewConstAff(b.Space, 1)))
		}
		//
		if !probe.IsEmpty() {
			t.Errorf("delta with first component -1 should not exist")
		}
	}
	//
	deltas.Free()
	check_Close(t, ctx)
}

func Test_LexLT_01(t *testing.T) {
	lex := LexLT(nil, 2)
	//
	if len(lex.Basics) != 2 {
		t.Errorf("expected 2 disjuncts, got %d", len(lex.Basics))
	}
}

func Test_LexLE_01(t *testing.T) {
	lex := LexLE(nil, 2)
	// the strict disjuncts plus equality
	if len(lex.Basics) != 3 {
		t.Errorf("expected 3 disjuncts, got %d", len(lex.Basics))
	}
	// x <=lex x holds: intersecting with the diagonal is not empty
	diag := NewBasicMap(lex.Space)
	//
	for i := 0; i < 2; i++ {
		row := newVec(diag.sys.ncols())
		row.co[i].SetInt64(-1)
		row.co[2+i].SetInt64(1)
		diag.sys.addEq(row)
	}
	//
	reflexive := false
	//
	for _, b := range lex.Basics {
		if !b.Intersect(diag).IsEmpty() {
			reflexive = true
		}
	}
	//
	if !reflexive {
		t.Errorf("non-strict order should include the diagonal")
	}
	// while the strict order excludes it
	strict := LexLT(nil, 2)
	//
	for _, b := range strict.Basics {
		if !b.Intersect(diag).IsEmpty() {
			t.Errorf("strict order should exclude the diagonal")
		}
	}
}

func Test_Bounds_01(t *testing.T) {
	ctx := NewCtx()
	s, err := ParseSet(ctx, "[n] -> { S[i, j] : 0 <= i and i < n and i <= j and j < n }")
	//
	if err != nil {
		t.Fatalf("parse failure: %v", err)
	}
	//
	lower, upper := s.Basics[0].Bounds(1)
	//
	if len(lower) == 0 || len(upper) == 0 {
		t.Errorf("expected bounds on j, got %d lower / %d upper", len(lower), len(upper))
	}
	//
	check_Close(t, ctx)
}

func Test_Solve_01(t *testing.T) {
	ctx := NewCtx()
	m := check_ParseUnionMap(t, ctx, "{ S[i, j] -> [j, i] }")
	//
	solved, err := m.Maps()[0].Basics[0].SolveInputs()
	if err != nil {
		t.Fatalf("solve failure: %v", err)
	}
	// i == out_1, j == out_0
	if v := solved[0].Eval(nil, []int64{7, 3}); v.Cmp(ratInt(3)) != 0 {
		t.Errorf("expected i = 3, got %s", v)
	}
	//
	if v := solved[1].Eval(nil, []int64{7, 3}); v.Cmp(ratInt(7)) != 0 {
		t.Errorf("expected j = 7, got %s", v)
	}
	//
	m.Free()
	check_Close(t, ctx)
}

func Test_Aff_01(t *testing.T) {
	ctx := NewCtx()
	upa, err := ParseUnionPwAff("{ S[i] -> [(floord(i, 32))] : 0 <= i and i < 100 }")
	//
	if err != nil {
		t.Fatalf("parse failure: %v", err)
	}
	//
	val := upa.Pieces[0].Value.Eval(nil, []int64{65})
	//
	if val.Cmp(ratInt(2)) != 0 {
		t.Errorf("floord(65, 32) = %s, expected 2", val)
	}
	//
	check_Close(t, ctx)
}

func Test_Aff_02(t *testing.T) {
	// tiling inversion: 32 * floor(i/32) + (i mod 32) == i
	upa, err := ParseUnionPwAff("{ S[i] -> [(i)] : 0 <= i and i < 100 }")
	if err != nil {
		t.Fatalf("parse failure: %v", err)
	}
	//
	orig := upa.Pieces[0].Value
	outer := orig.FloorDiv(32)
	inner := orig.Sub(outer.Scale(ratInt(32)))
	flat := outer.Scale(ratInt(32)).Add(inner)
	//
	for _, i := range []int64{0, 1, 31, 32, 33, 99} {
		if flat.Eval(nil, []int64{i}).Cmp(orig.Eval(nil, []int64{i})) != 0 {
			t.Errorf("flattened tile differs from original at i = %d", i)
		}
	}
}

func Test_MUPA_01(t *testing.T) {
	ctx := NewCtx()
	mupa, err := ParseMultiUnionPwAff(ctx, "[{ S[i] -> [(i)] : 0 <= i and i < 10 }]")
	//
	if err != nil {
		t.Fatalf("parse failure: %v", err)
	}
	//
	if mupa.Dim() != 1 {
		t.Errorf("expected one member, got %d", mupa.Dim())
	}
	//
	um := mupa.AsUnionMap()
	//
	if um.IsEmpty() {
		t.Errorf("graph of schedule is empty")
	}
	//
	um.Free()
	mupa.Free()
	check_Close(t, ctx)
}

func Test_Ctx_01(t *testing.T) {
	ctx := NewCtx()
	us := NewUnionSet(ctx)
	//
	if ctx.LiveObjects() != 1 {
		t.Errorf("expected 1 live object, got %d", ctx.LiveObjects())
	}
	//
	us.Free()
	//
	if ctx.LiveObjects() != 0 {
		t.Errorf("expected 0 live objects, got %d", ctx.LiveObjects())
	}
	//
	check_Close(t, ctx)
}

func Test_Ctx_02(t *testing.T) {
	ctx := NewCtx()
	NewUnionSet(ctx)
	//
	if err := ctx.Close(); err == nil {
		t.Errorf("closing a context with live objects should fail")
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_ParseUnionSet(t *testing.T, ctx *Ctx, input string) *UnionSet {
	us, err := ParseUnionSet(ctx, input)
	if err != nil {
		t.Fatalf("parsing %q: %v", input, err)
	}
	//
	return us
}

func check_ParseUnionMap(t *testing.T, ctx *Ctx, input string) *UnionMap {
	um, err := ParseUnionMap(ctx, input)
	if err != nil {
		t.Fatalf("parsing %q: %v", input, err)
	}
	//
	return um
}

func check_Close(t *testing.T, ctx *Ctx) {
	if err := ctx.Close(); err != nil {
		t.Errorf("teardown: %v", err)
	}
}

func ratInt(v int64) *big.Rat {
	return new(big.Rat).SetInt64(v)
}
