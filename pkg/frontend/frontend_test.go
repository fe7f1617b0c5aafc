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
package frontend

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
)

const testSource = `#include <stdio.h>

void kernel(int n, double A[n]) {
#pragma scop
  for (int i = 0; i < n; i++)
    A[i] = 2 * A[i];
#pragma endscop
  printf("done\n");
}
`

const testSidecar = `scops:
- params: [n]
  context: "[n] -> { [] : n >= 1 }"
  statements:
  - name: S_0
    domain: "[n] -> { S_0[i] : 0 <= i < n }"
    body: "A[i] = 2 * A[i];"
  reads: "[n] -> { S_0[i] -> A[i] }"
  writes: "[n] -> { S_0[i] -> A[i] }"
  must_writes: "[n] -> { S_0[i] -> A[i] }"
  schedule:
    domain: "[n] -> { S_0[i] : 0 <= i < n }"
    child:
      schedule: "[{ S_0[i] -> [(i)] }]"
`

func Test_Extract_01(t *testing.T) {
	ctx := poly.NewCtx()
	path := check_Fixture(t, testSource, testSidecar)
	//
	scops, err := Extract(ctx, path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	//
	if len(scops) != 1 {
		t.Fatalf("expected 1 scop, got %d", len(scops))
	}
	//
	scop := scops[0]
	//
	if len(scop.Statements) != 1 || scop.Statements[0].Name != "S_0" {
		t.Errorf("unexpected statements: %v", scop.Statements)
	}
	//
	if scop.MayReads.IsEmpty() || scop.MayWrites.IsEmpty() {
		t.Errorf("access relations should not be empty")
	}
	//
	if scop.Schedule == nil || scop.Schedule.Kind() != tree.KindDomain {
		t.Errorf("missing or malformed schedule tree")
	}
	//
	if !strings.Contains(scop.Text, "for (int i = 0") {
		t.Errorf("region text not captured: %q", scop.Text)
	}
	//
	scop.Free()
	check_Close(t, ctx)
}

func Test_Extract_02(t *testing.T) {
	ctx := poly.NewCtx()
	// missing source file is an input error
	if _, err := Extract(ctx, "does-not-exist.c"); err == nil {
		t.Errorf("expected an error for a missing file")
	}
	//
	check_Close(t, ctx)
}

func Test_Extract_03(t *testing.T) {
	ctx := poly.NewCtx()
	// a file without scop regions is an input error
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.c")
	//
	if err := os.WriteFile(path, []byte("int main() { return 0; }\n"), 0666); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	//
	if _, err := Extract(ctx, path); err == nil {
		t.Errorf("expected an error for a file without scops")
	}
	//
	check_Close(t, ctx)
}

func Test_Transform_01(t *testing.T) {
	path := check_Fixture(t, testSource, testSidecar)
	//
	var out strings.Builder
	//
	err := Transform(path, &out, func(w io.Writer, index int) error {
		_, err := io.WriteString(w, "/* replaced */")
		return err
	})
	//
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	// surrounding text is passed through verbatim
	text := out.String()
	//
	if !strings.Contains(text, "#include <stdio.h>") || !strings.Contains(text, "printf") {
		t.Errorf("non-scop text not passed through:\n%s", text)
	}
	//
	if !strings.Contains(text, "/* replaced */") {
		t.Errorf("callback output missing:\n%s", text)
	}
	//
	if strings.Contains(text, "for (int i = 0") {
		t.Errorf("region text should have been replaced:\n%s", text)
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_Fixture(t *testing.T, source string, sidecar string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.c")
	//
	if err := os.WriteFile(path, []byte(source), 0666); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	//
	if err := os.WriteFile(path+SidecarSuffix, []byte(sidecar), 0666); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	//
	return path
}

func check_Close(t *testing.T, ctx *poly.Ctx) {
	if err := ctx.Close(); err != nil {
		t.Errorf("teardown: %v", err)
	}
}
