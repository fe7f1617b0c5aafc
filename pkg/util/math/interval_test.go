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
package math

import (
	"math/big"
	"testing"
)

func Test_Interval_01(t *testing.T) {
	iv := NewInterval64(0, 31)
	//
	if !iv.IsFinite() {
		t.Errorf("finite interval reported infinite: %s", iv.String())
	}
	//
	if !iv.Contains(*big.NewInt(31)) || iv.Contains(*big.NewInt(32)) {
		t.Errorf("containment broken: %s", iv.String())
	}
}

func Test_Interval_02(t *testing.T) {
	a := NewInterval64(0, 10)
	b := NewInterval64(5, 20)
	c := a.Union(b)
	//
	if !a.Within(c) || !b.Within(c) {
		t.Errorf("union does not enclose operands: %s", c.String())
	}
}

func Test_Interval_03(t *testing.T) {
	a := NewInterval64(1, 2)
	a.Add(NewInterval64(10, 20))
	//
	want := NewInterval64(11, 22)
	//
	if !a.Within(want) || !want.Within(a) {
		t.Errorf("expected %s, got %s", want.String(), a.String())
	}
}

func Test_InfInt_01(t *testing.T) {
	v := NewInfInt64(5)
	//
	if NegInfinity.Cmp(v) >= 0 || PosInfinity.Cmp(v) <= 0 {
		t.Errorf("infinities do not bound finite values")
	}
	//
	if v.Cmp(v.Min(PosInfinity)) != 0 {
		t.Errorf("min against positive infinity should be the finite value")
	}
}

func Test_InfInt_02(t *testing.T) {
	a := NewInfInt64(3)
	b := a.Add(NewInfInt64(4))
	//
	if b.String() != "7" {
		t.Errorf("expected 7, got %s", b.String())
	}
	//
	c := a.Add(PosInfinity)
	//
	if c.IsNotAnInfinity() {
		t.Errorf("adding infinity should stay infinite")
	}
}
