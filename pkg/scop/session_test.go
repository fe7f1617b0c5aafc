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
package scop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hikettei/tadashi/pkg/tree"
)

// gemm: a three-deep loop nest accumulating into C.
const gemmSource = `void gemm(int n, double A[n][n], double B[n][n], double C[n][n]) {
#pragma scop
  for (int i = 0; i < n; i++)
    for (int j = 0; j < n; j++)
      for (int k = 0; k < n; k++)
        C[i][j] += A[i][k] * B[k][j];
#pragma endscop
}
`

const gemmSidecar = `scops:
- params: [n]
  context: "[n] -> { [] : n >= 1 }"
  statements:
  - name: S_0
    domain: "[n] -> { S_0[i, j, k] : 0 <= i < n and 0 <= j < n and 0 <= k < n }"
    body: "C[i][j] += A[i][k] * B[k][j];"
  reads: "[n] -> { S_0[i, j, k] -> A[i, k]; S_0[i, j, k] -> B[k, j]; S_0[i, j, k] -> C[i, j] }"
  writes: "[n] -> { S_0[i, j, k] -> C[i, j] }"
  must_writes: "[n] -> { S_0[i, j, k] -> C[i, j] }"
  schedule:
    domain: "[n] -> { S_0[i, j, k] : 0 <= i < n and 0 <= j < n and 0 <= k < n }"
    child:
      schedule: "[{ S_0[i, j, k] -> [(i)] }]"
      child:
        schedule: "[{ S_0[i, j, k] -> [(j)] }]"
        child:
          schedule: "[{ S_0[i, j, k] -> [(k)] }]"
`

// A skewed dependence (i, j) -> (i + 1, j - 1): interchange is illegal.
const skewSource = `void skew(double A[10][10]) {
#pragma scop
  for (int i = 0; i < 9; i++)
    for (int j = 1; j < 10; j++)
      A[i + 1][j - 1] = A[i][j];
#pragma endscop
}
`

const skewSidecar = `scops:
- params: []
  statements:
  - name: S_0
    domain: "{ S_0[i, j] : 0 <= i < 9 and 1 <= j < 10 }"
    body: "A[i + 1][j - 1] = A[i][j];"
  reads: "{ S_0[i, j] -> A[i, j] }"
  writes: "{ S_0[i, j] -> A[i + 1, j - 1] }"
  must_writes: "{ S_0[i, j] -> A[i + 1, j - 1] }"
  schedule:
    domain: "{ S_0[i, j] : 0 <= i < 9 and 1 <= j < 10 }"
    child:
      schedule: "[{ S_0[i, j] -> [(i)] }]"
      child:
        schedule: "[{ S_0[i, j] -> [(j)] }]"
`

func Test_Session_01(t *testing.T) {
	session := check_Load(t, gemmSource, gemmSidecar)
	//
	if session.NumScops() != 1 {
		t.Errorf("expected 1 scop, got %d", session.NumScops())
	}
	//
	kind, err := session.GetType(0)
	if err != nil || kind != tree.KindDomain {
		t.Errorf("root should be a domain node, got %s (%v)", kind, err)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_02(t *testing.T) {
	// navigate to the k band and tile it
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0, 0)
	//
	legal, err := session.Tile(0, 32)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	//
	if !legal {
		t.Errorf("tiling the k loop of gemm should be legal")
	}
	// the focus is the outer tiled band, whose child is the intra-tile band
	kind, _ := session.GetType(0)
	if kind != tree.KindBand {
		t.Errorf("focus should be a band, got %s", kind)
	}
	//
	if err := session.GotoChild(0, 0); err != nil {
		t.Fatalf("goto child: %v", err)
	}
	//
	if kind, _ = session.GetType(0); kind != tree.KindBand {
		t.Errorf("child of the tiled band should be a band, got %s", kind)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_03(t *testing.T) {
	// an illegal interchange leaves the current schedule untouched
	session := check_Load(t, skewSource, skewSidecar)
	check_Goto(t, session, 0, 0)
	//
	before, err := session.PrintScheduleNode(0)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	//
	legal, err := session.Interchange(0)
	if err != nil {
		t.Fatalf("interchange: %v", err)
	}
	//
	if legal {
		t.Errorf("interchange across a skewed dependence should be illegal")
	}
	//
	after, err := session.PrintScheduleNode(0)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	//
	if before != after {
		t.Errorf("rejected transformation modified the current schedule:\n%s\nvs\n%s", before, after)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_04(t *testing.T) {
	// legality gate: a committed schedule re-checks as legal
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0, 0)
	//
	legal, err := session.Tile(0, 32)
	if err != nil || !legal {
		t.Fatalf("tile: legal=%t err=%v", legal, err)
	}
	//
	scop, _ := session.Scop(0)
	//
	if !scop.Dirty() {
		t.Errorf("commit should mark the scop dirty")
	}
	//
	check_Teardown(t, session)
}

func Test_Session_05(t *testing.T) {
	// parallel mark on the j loop of gemm: dependences ride only on k
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0)
	//
	legal, err := session.SetParallel(0)
	if err != nil {
		t.Fatalf("set parallel: %v", err)
	}
	//
	if !legal {
		t.Errorf("the j loop of gemm should be parallel")
	}
	//
	check_Teardown(t, session)
}

func Test_Session_06(t *testing.T) {
	// parallel mark on the k loop must be rejected
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0, 0)
	//
	legal, err := session.SetParallel(0)
	if err != nil {
		t.Fatalf("set parallel: %v", err)
	}
	//
	if legal {
		t.Errorf("the accumulation loop must not be parallel")
	}
	//
	check_Teardown(t, session)
}

func Test_Session_07(t *testing.T) {
	// precondition violation: tiling the root is rejected, not an error
	session := check_Load(t, gemmSource, gemmSidecar)
	//
	legal, err := session.Tile(0, 32)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	//
	if legal {
		t.Errorf("tiling a domain node should be rejected")
	}
	//
	check_Teardown(t, session)
}

func Test_Session_08(t *testing.T) {
	// shift by 5 then by -5: both commits are legal
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0, 0)
	//
	before, _ := session.GetExpr(0)
	//
	if legal, err := session.PartialShiftVal(0, 0, 5); err != nil || !legal {
		t.Fatalf("shift: legal=%t err=%v", legal, err)
	}
	//
	if legal, err := session.PartialShiftVal(0, 0, -5); err != nil || !legal {
		t.Fatalf("negated shift: legal=%t err=%v", legal, err)
	}
	//
	after, _ := session.GetExpr(0)
	//
	if before != after {
		t.Errorf("shift and negated shift should restore the schedule: %s vs %s", before, after)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_09(t *testing.T) {
	// introspection surface
	session := check_Load(t, gemmSource, gemmSidecar)
	//
	if expr, _ := session.GetExpr(0); expr != "" {
		t.Errorf("domain node should have no schedule expression, got %q", expr)
	}
	//
	check_Goto(t, session, 0, 0)
	//
	expr, _ := session.GetExpr(0)
	if !strings.Contains(expr, "S_0") {
		t.Errorf("band expression missing statement: %q", expr)
	}
	//
	sig, _ := session.GetLoopSignature(0)
	if !strings.Contains(sig, "\"params\"") || !strings.Contains(sig, "\"vars\"") {
		t.Errorf("malformed loop signature: %q", sig)
	}
	//
	n, _ := session.GetNumChildren(0)
	if n != 1 {
		t.Errorf("band should have one child, got %d", n)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_10(t *testing.T) {
	// set_loop_opt always succeeds on a band
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0)
	//
	ok, err := session.SetLoopOpt(0, 0, tree.LoopUnroll)
	if err != nil || !ok {
		t.Errorf("set_loop_opt: ok=%t err=%v", ok, err)
	}
	// it also reports success on a non-band focus and on an out-of-range
	// dimension, where it is a no-op
	before, _ := session.PrintScheduleNode(0)
	//
	if ok, err = session.SetLoopOpt(0, 5, tree.LoopAtomic); err != nil || !ok {
		t.Errorf("set_loop_opt out of range: ok=%t err=%v", ok, err)
	}
	//
	check_Goto(t, session, 0)
	//
	if ok, err = session.SetLoopOpt(0, 0, tree.LoopAtomic); err != nil || !ok {
		t.Errorf("set_loop_opt on domain: ok=%t err=%v", ok, err)
	}
	//
	check_Goto(t, session, 0, 0)
	//
	if after, _ := session.PrintScheduleNode(0); before != after {
		t.Errorf("ignored set_loop_opt modified the schedule:\n%s\nvs\n%s", before, after)
	}
	//
	check_Teardown(t, session)
}

func Test_Session_11(t *testing.T) {
	// out of range scop index is an input error
	session := check_Load(t, gemmSource, gemmSidecar)
	//
	if _, err := session.Tile(7, 32); err == nil {
		t.Errorf("expected an input error for a bad index")
	}
	//
	check_Teardown(t, session)
}

func Test_Emit_01(t *testing.T) {
	// untouched scops are passed through verbatim
	session := check_Load(t, gemmSource, gemmSidecar)
	//
	var out strings.Builder
	//
	if err := session.EmitCode(&out); err != nil {
		t.Fatalf("emit: %v", err)
	}
	//
	if !strings.Contains(out.String(), "C[i][j] += A[i][k] * B[k][j];") {
		t.Errorf("verbatim pass-through lost the region:\n%s", out.String())
	}
	//
	check_Teardown(t, session)
}

func Test_Emit_02(t *testing.T) {
	// after a committed tile, the emitted code holds the tiled nest
	session := check_Load(t, gemmSource, gemmSidecar)
	check_Goto(t, session, 0, 0, 0, 0)
	//
	if legal, err := session.Tile(0, 32); err != nil || !legal {
		t.Fatalf("tile: legal=%t err=%v", legal, err)
	}
	//
	var out strings.Builder
	//
	if err := session.EmitCode(&out); err != nil {
		t.Fatalf("emit: %v", err)
	}
	//
	text := out.String()
	// four loop levels now: i, j, tile counter, intra-tile offset
	if got := strings.Count(text, "for (int c"); got != 4 {
		t.Errorf("expected 4 generated loops, got %d:\n%s", got, text)
	}
	//
	if !strings.Contains(text, "32 * c2") && !strings.Contains(text, "32*c2") {
		t.Errorf("intra-tile remap missing:\n%s", text)
	}
	//
	check_Teardown(t, session)
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Load(t *testing.T, source string, sidecar string) *Session {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.c")
	//
	if err := os.WriteFile(path, []byte(source), 0666); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	//
	if err := os.WriteFile(path+".scops.yaml", []byte(sidecar), 0666); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	//
	session, err := Load(path)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	//
	return session
}

func check_Goto(t *testing.T, session *Session, idx int, children ...int) {
	if err := session.GotoRoot(idx); err != nil {
		t.Fatalf("goto root: %v", err)
	}
	//
	for _, c := range children {
		if err := session.GotoChild(idx, c); err != nil {
			t.Fatalf("goto child %d: %v", c, err)
		}
	}
	//
}

func check_Teardown(t *testing.T, session *Session) {
	if err := session.Close(); err != nil {
		t.Errorf("teardown leaked polyhedral values: %v", err)
	}
}
