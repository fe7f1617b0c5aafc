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
	"strings"
	"testing"

	"github.com/hikettei/tadashi/pkg/poly"
)

// A two-statement loop nest: initialisation followed by accumulation.
const twoStatementTree = `
domain: "[n] -> { S_0[i] : 0 <= i < n; S_1[i] : 0 <= i < n }"
child:
  sequence:
  - filter: "[n] -> { S_0[i] }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
  - filter: "[n] -> { S_1[i] }"
    child:
      schedule: "[{ S_1[i] -> [(i)] }]"
`

const bandTowerTree = `
domain: "[n] -> { S_0[i, j] : 0 <= i < n and 0 <= j < n }"
child:
  schedule: "[{ S_0[i, j] -> [(i)] }]"
  child:
    schedule: "[{ S_0[i, j] -> [(j)] }]"
`

func Test_Tree_01(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, twoStatementTree)
	//
	if root.Kind() != KindDomain {
		t.Errorf("root should be a domain, got %s", root.Kind())
	}
	//
	if err := Validate(root); err != nil {
		t.Errorf("tree invalid: %v", err)
	}
	//
	Free(root)
	check_Close(t, ctx)
}

func Test_Tree_02(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, bandTowerTree)
	// round trip through yaml
	data, err := MarshalYAML(root)
	if err != nil {
		t.Fatalf("marshalling: %v", err)
	}
	//
	again, err := UnmarshalYAML(ctx, data)
	if err != nil {
		t.Fatalf("remarshalling: %v", err)
	}
	//
	if err := Validate(again); err != nil {
		t.Errorf("round-tripped tree invalid: %v", err)
	}
	//
	Free(root)
	Free(again)
	check_Close(t, ctx)
}

func Test_Cursor_01(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, bandTowerTree)
	cur := NewCursor(root)
	// descend to the inner band
	cur, err := cur.Child(0)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	//
	if cur.Node().Kind() != KindBand {
		t.Errorf("expected band, got %s", cur.Node().Kind())
	}
	//
	cur, err = cur.Child(0)
	if err != nil {
		t.Fatalf("child: %v", err)
	}
	//
	if cur.Node().Kind() != KindBand {
		t.Errorf("expected inner band, got %s", cur.Node().Kind())
	}
	// navigation is pure: the root cursor still works
	back, err := cur.Parent()
	if err != nil {
		t.Fatalf("parent: %v", err)
	}
	//
	if !back.Path().Equals(NewPath(0)) {
		t.Errorf("unexpected path %s", back.Path())
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Cursor_02(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, bandTowerTree)
	cur := NewCursor(root)
	// the root has no parent
	if _, err := cur.Parent(); err == nil {
		t.Errorf("parent of root should fail")
	}
	// out of range child
	if _, err := cur.Child(1); err == nil {
		t.Errorf("child 1 of a domain should fail")
	}
	//
	cur.Free()
	check_Close(t, ctx)
}

func Test_Cursor_03(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, bandTowerTree)
	cur := NewCursor(root)
	// a copy is an independent tree
	dup := cur.Copy()
	//
	if Dump(cur.Tree()) != Dump(dup.Tree()) {
		t.Errorf("copy changed the tree")
	}
	//
	dup.Free()
	cur.Free()
	check_Close(t, ctx)
}

func Test_Validate_01(t *testing.T) {
	ctx := poly.NewCtx()
	// a sequence whose filters do not cover the domain
	broken := `
domain: "{ S_0[i] : 0 <= i < 10; S_1[i] : 0 <= i < 10 }"
child:
  sequence:
  - filter: "{ S_0[i] }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
`
	root := check_Unmarshal(t, ctx, broken)
	//
	if err := Validate(root); err == nil {
		t.Errorf("expected a coverage violation")
	}
	//
	Free(root)
	check_Close(t, ctx)
}

func Test_Validate_02(t *testing.T) {
	ctx := poly.NewCtx()
	// overlapping filters under a set node
	broken := `
domain: "{ S_0[i] : 0 <= i < 10 }"
child:
  set:
  - filter: "{ S_0[i] : 0 <= i < 7 }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
  - filter: "{ S_0[i] : 5 <= i < 10 }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
`
	root := check_Unmarshal(t, ctx, broken)
	//
	if err := Validate(root); err == nil {
		t.Errorf("expected a disjointness violation")
	}
	//
	Free(root)
	check_Close(t, ctx)
}

func Test_Schedule_01(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, bandTowerTree)
	//
	schedule, err := ScheduleMap(root)
	if err != nil {
		t.Fatalf("schedule map: %v", err)
	}
	//
	if len(schedule.Maps()) != 1 {
		t.Errorf("expected one statement relation")
	} else if n := schedule.Maps()[0].Space.Out.Arity(); n != 2 {
		t.Errorf("expected 2 schedule dimensions, got %d", n)
	}
	//
	schedule.Free()
	Free(root)
	check_Close(t, ctx)
}

func Test_Schedule_02(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, twoStatementTree)
	//
	schedule, err := ScheduleMap(root)
	if err != nil {
		t.Fatalf("schedule map: %v", err)
	}
	// branches are padded to uniform depth: ordinal + band
	for _, m := range schedule.Maps() {
		if m.Space.Out.Arity() != 2 {
			t.Errorf("statement %s has %d dimensions, expected 2", m.Space.In.Name, m.Space.Out.Arity())
		}
	}
	//
	schedule.Free()
	Free(root)
	check_Close(t, ctx)
}

func Test_Dump_01(t *testing.T) {
	ctx := poly.NewCtx()
	root := check_Unmarshal(t, ctx, twoStatementTree)
	dump := Dump(root)
	//
	for _, want := range []string{"domain:", "sequence:", "filter:", "schedule:"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
	//
	Free(root)
	check_Close(t, ctx)
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Unmarshal(t *testing.T, ctx *poly.Ctx, input string) Node {
	root, err := UnmarshalYAML(ctx, []byte(input))
	if err != nil {
		t.Fatalf("unmarshalling tree: %v", err)
	}
	//
	return root
}

func check_Close(t *testing.T, ctx *poly.Ctx) {
	if err := ctx.Close(); err != nil {
		t.Errorf("teardown: %v", err)
	}
}
