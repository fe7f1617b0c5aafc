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
package bit

import (
	"testing"
)

func Test_BitSet_01(t *testing.T) {
	check_BitSet(t, []uint{1, 2, 3, 4, 3, 2, 1})
}

func Test_BitSet_02(t *testing.T) {
	check_BitSet(t, []uint{0, 63, 64, 65, 127, 128})
}

func Test_BitSet_03(t *testing.T) {
	var set Set
	set.InsertAll(1, 5, 9)
	set.Remove(5)
	//
	if set.Contains(5) {
		t.Errorf("removed item still present: %s", set.String())
	}
	//
	if set.Count() != 2 {
		t.Errorf("expected 2 items, got %d", set.Count())
	}
}

func Test_BitSet_04(t *testing.T) {
	var a, b Set
	a.InsertAll(0, 2)
	b.InsertAll(2, 70)
	a.Union(b)
	//
	for _, v := range []uint{0, 2, 70} {
		if !a.Contains(v) {
			t.Errorf("missing item %d after union: %s", v, a.String())
		}
	}
}

func Test_BitSet_05(t *testing.T) {
	var a Set
	a.InsertAll(3, 9)
	b := a.Clone()
	b.Insert(50)
	// clones do not alias
	if a.Contains(50) {
		t.Errorf("clone aliases original: %s", a.String())
	}
}

// ===================================================================
// Test Helpers
// ===================================================================

func check_BitSet(t *testing.T, items []uint) {
	var set Set
	//
	for _, item := range items {
		set.Insert(item)
	}
	// count unique items
	unique := make(map[uint]bool)
	for _, item := range items {
		unique[item] = true
	}
	//
	if set.Count() != uint(len(unique)) {
		t.Errorf("expected %d unique items, got %d: %s", len(unique), set.Count(), set.String())
	}
	// sanity check containership
	for _, item := range items {
		if !set.Contains(item) {
			t.Errorf("missing item %d: %s", item, set.String())
		}
	}
}
