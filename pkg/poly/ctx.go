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
	"fmt"
)

// Ctx is the shared allocation context for owned polyhedral values
// (UnionSet, UnionMap, MultiUnionPwAff).  Every owned value is registered
// against exactly one context and must be released, through Free or by being
// consumed by an operation, before the context is closed.  The context is
// not safe for concurrent use; all callers must serialise on it.
type Ctx struct {
	// live counts currently registered owned values.
	live int
	// closed is set once the context has been torn down.
	closed bool
}

// NewCtx creates a fresh allocation context.
func NewCtx() *Ctx {
	return &Ctx{}
}

// LiveObjects reports how many owned values are currently registered.
func (p *Ctx) LiveObjects() int {
	return p.live
}

// Close tears the context down.  Closing with live values still registered
// indicates an ownership leak and is reported as an error.
func (p *Ctx) Close() error {
	if p.closed {
		return fmt.Errorf("context closed twice")
	}
	//
	p.closed = true
	//
	if p.live != 0 {
		return fmt.Errorf("context closed with %d live objects", p.live)
	}
	//
	return nil
}

func (p *Ctx) retain() {
	if p.closed {
		panic("allocation against a closed context")
	}
	//
	p.live++
}

func (p *Ctx) release() {
	if p.live <= 0 {
		panic("release without matching allocation")
	}
	//
	p.live--
}
