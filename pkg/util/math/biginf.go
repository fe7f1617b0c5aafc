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
	"fmt"
	"math/big"
)

const notAnInfinity = 0
const negativeInfinity = 1
const positiveInfinity = 2

// PosInfinity represents positive infinity
var PosInfinity = InfInt{big.Int{}, positiveInfinity}

// NegInfinity represents negative infinity
var NegInfinity = InfInt{big.Int{}, negativeInfinity}

// InfInt represents an unbound (i.e. big) integer value which can,
// additionally, be either negative or positive infinity.
type InfInt struct {
	// value of this integer, meaningless when sign marks an infinity.
	val big.Int
	// sign indicates whether we are not an infinity, or are negative infinity
	// or positive infinity.
	sign uint8
}

// NewInfInt constructs a finite value.
func NewInfInt(val big.Int) InfInt {
	return InfInt{val, notAnInfinity}
}

// NewInfInt64 constructs a finite value from a machine integer.
func NewInfInt64(val int64) InfInt {
	return NewInfInt(*big.NewInt(val))
}

// Add two (potentially infinite) integers together.  Adding opposing
// infinities is a bug.
func (p *InfInt) Add(other InfInt) InfInt {
	var val big.Int
	//
	switch {
	case p.sign == notAnInfinity && other.sign == notAnInfinity:
		val.Add(&p.val, &other.val)
		//
		return InfInt{val, notAnInfinity}
	case p.sign == notAnInfinity:
		return other
	case other.sign == notAnInfinity || p.sign == other.sign:
		return *p
	default:
		panic("cannot add opposing infinities")
	}
}

// Cmp performs a comparison of two (potentially infinite) integer values.
func (p *InfInt) Cmp(o InfInt) int {
	switch {
	case p.sign == notAnInfinity && o.sign == notAnInfinity:
		return p.val.Cmp(&o.val)
	case p.sign == o.sign:
		return 0
	case p.sign == negativeInfinity || o.sign == positiveInfinity:
		return -1
	case p.sign == positiveInfinity || o.sign == negativeInfinity:
		return 1
	default:
		panic(fmt.Sprintf("unreachable (%s ~ %s)", p.String(), o.String()))
	}
}

// CmpInt compares a potentially infinite integer value against a finite
// integer value.
func (p *InfInt) CmpInt(other big.Int) int {
	switch p.sign {
	case notAnInfinity:
		return p.val.Cmp(&other)
	case negativeInfinity:
		return -1
	default:
		return 1
	}
}

// IntVal converts a potentially infinite integer into a finite value.  This
// will panic if this value is an infinity.
func (p *InfInt) IntVal() big.Int {
	if p.sign != notAnInfinity {
		panic("cannot cast infinity into a big integer")
	}
	//
	return p.val
}

// IsNotAnInfinity returns true if this represents a finite integer value.
func (p *InfInt) IsNotAnInfinity() bool {
	return p.sign == notAnInfinity
}

// Min determines the least of two values.
func (p *InfInt) Min(o InfInt) InfInt {
	if p.Cmp(o) <= 0 {
		return *p
	}
	//
	return o
}

// Max determines the greatest of two values.
func (p *InfInt) Max(o InfInt) InfInt {
	if p.Cmp(o) >= 0 {
		return *p
	}
	//
	return o
}

// Set assigns a given value to this integer.
func (p *InfInt) Set(o InfInt) {
	p.val.Set(&o.val)
	p.sign = o.sign
}

func (p *InfInt) String() string {
	switch p.sign {
	case negativeInfinity:
		return "-inf"
	case positiveInfinity:
		return "+inf"
	default:
		return p.val.String()
	}
}
