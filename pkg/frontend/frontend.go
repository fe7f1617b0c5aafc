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

// Package frontend loads SCoPs from an annotated C source file.  Regions
// amenable to polyhedral analysis are delimited with "#pragma scop" /
// "#pragma endscop" markers; the polyhedral description of each region
// (instance domains, access relations, the initial schedule tree) travels in
// a YAML sidecar next to the source, holding what a polyhedral extractor
// would have computed.  Parsing C itself is out of scope.
package frontend

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
)

// SidecarSuffix is appended to the source path to locate the sidecar.
const SidecarSuffix = ".scops.yaml"

const (
	pragmaBegin = "#pragma scop"
	pragmaEnd   = "#pragma endscop"
)

// Statement is one user statement of a SCoP.
type Statement struct {
	// Name of the statement's instance tuple.
	Name string
	// Domain holds the statement's instance set.
	Domain *poly.Set
	// Body is the statement's C text, written in terms of the original
	// iteration variables.
	Body string
}

// ArrayDecl describes an array used inside a SCoP, for declaration printing.
type ArrayDecl struct {
	// Name of the array.
	Name string
	// ElementType is the C element type, e.g. "double".
	ElementType string
	// Size gives the per-dimension extents as C expressions.
	Size []string
	// Declared indicates the array is declared inside the SCoP.
	Declared bool
	// Exposed indicates a declared array is visible after the SCoP.
	Exposed bool
}

// ScopInfo is the polyhedral description of one source region.
type ScopInfo struct {
	// Params names the symbolic parameters.
	Params []string
	// Context constrains the parameters (may be nil).
	Context *poly.UnionSet
	// Statements in textual order.
	Statements []*Statement
	// MayReads, MayWrites and MustWrites are the access relations from
	// statement instances to array cells.
	MayReads   *poly.UnionMap
	MayWrites  *poly.UnionMap
	MustWrites *poly.UnionMap
	// Arrays used by the region.
	Arrays []ArrayDecl
	// Schedule is the initial schedule tree.
	Schedule tree.Node
	// Text is the original region text, pragmas excluded.
	Text string
}

// Free releases the polyhedral values owned by this record.  The schedule
// tree is freed only if it has not been taken by a session.
func (p *ScopInfo) Free() {
	if p.MustWrites != nil {
		p.MustWrites.Free()
	}
	//
	if p.MayWrites != nil {
		p.MayWrites.Free()
	}
	//
	if p.MayReads != nil {
		p.MayReads.Free()
	}
	//
	if p.Context != nil {
		p.Context.Free()
	}
	//
	if p.Schedule != nil {
		tree.Free(p.Schedule)
	}
	//
	p.MayReads, p.MayWrites, p.MustWrites = nil, nil, nil
	p.Context, p.Schedule = nil, nil
}

// TakeSchedule transfers ownership of the initial schedule tree to the
// caller.
func (p *ScopInfo) TakeSchedule() tree.Node {
	root := p.Schedule
	p.Schedule = nil
	//
	return root
}

// sidecar is the serialised shape of the YAML sidecar.
type sidecar struct {
	Scops []sidecarScop `yaml:"scops"`
}

type sidecarScop struct {
	Params     []string           `yaml:"params"`
	Context    string             `yaml:"context,omitempty"`
	Statements []sidecarStatement `yaml:"statements"`
	Reads      string             `yaml:"reads,omitempty"`
	Writes     string             `yaml:"writes,omitempty"`
	MustWrites string             `yaml:"must_writes,omitempty"`
	Arrays     []sidecarArray     `yaml:"arrays,omitempty"`
	Schedule   yaml.Node          `yaml:"schedule"`
}

type sidecarStatement struct {
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
	Body   string `yaml:"body"`
}

type sidecarArray struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Size     []string `yaml:"size,omitempty"`
	Declared bool     `yaml:"declared,omitempty"`
	Exposed  bool     `yaml:"exposed,omitempty"`
}

// Extract loads every SCoP of the given source file.  Allocation happens
// against the given context; on error nothing remains allocated.
func Extract(ctx *poly.Ctx, path string) ([]*ScopInfo, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	//
	regions, err := splitRegions(string(source))
	if err != nil {
		return nil, err
	}
	//
	if len(regions.scops) == 0 {
		return nil, fmt.Errorf("no scop found in %s", path)
	}
	//
	raw, err := os.ReadFile(path + SidecarSuffix)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	//
	var sc sidecar
	//
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("malformed sidecar: %w", err)
	}
	//
	if len(sc.Scops) != len(regions.scops) {
		return nil, fmt.Errorf("source has %d scop regions but sidecar describes %d", len(regions.scops), len(sc.Scops))
	}
	//
	var scops []*ScopInfo
	//
	for i := range sc.Scops {
		scop, err := buildScop(ctx, &sc.Scops[i], regions.scops[i])
		//
		if err != nil {
			for _, s := range scops {
				s.Free()
			}
			//
			return nil, fmt.Errorf("scop %d: %w", i, err)
		}
		//
		scops = append(scops, scop)
	}
	//
	log.Debugf("extracted %d scops from %s", len(scops), path)
	//
	return scops, nil
}

func buildScop(ctx *poly.Ctx, sc *sidecarScop, text string) (*ScopInfo, error) {
	scop := &ScopInfo{Params: sc.Params, Text: text}
	//
	fail := func(err error) (*ScopInfo, error) {
		scop.Free()
		return nil, err
	}
	//
	if sc.Context != "" {
		context, err := poly.ParseUnionSet(ctx, sc.Context)
		if err != nil {
			return fail(fmt.Errorf("context: %w", err))
		}
		//
		scop.Context = context
	}
	//
	for _, stmt := range sc.Statements {
		domain, err := poly.ParseSet(ctx, stmt.Domain)
		if err != nil {
			return fail(fmt.Errorf("statement %s: %w", stmt.Name, err))
		}
		//
		scop.Statements = append(scop.Statements, &Statement{stmt.Name, domain, stmt.Body})
	}
	//
	var err error
	//
	if scop.MayReads, err = parseAccess(ctx, sc.Reads); err != nil {
		return fail(fmt.Errorf("reads: %w", err))
	}
	//
	if scop.MayWrites, err = parseAccess(ctx, sc.Writes); err != nil {
		return fail(fmt.Errorf("writes: %w", err))
	}
	//
	if scop.MustWrites, err = parseAccess(ctx, sc.MustWrites); err != nil {
		return fail(fmt.Errorf("must_writes: %w", err))
	}
	//
	for _, arr := range sc.Arrays {
		scop.Arrays = append(scop.Arrays, ArrayDecl{arr.Name, arr.Type, arr.Size, arr.Declared, arr.Exposed})
	}
	// the schedule subtree re-serialises into tree YAML
	encoded, err := yaml.Marshal(&sc.Schedule)
	if err != nil {
		return fail(fmt.Errorf("schedule: %w", err))
	}
	//
	if scop.Schedule, err = tree.UnmarshalYAML(ctx, encoded); err != nil {
		return fail(fmt.Errorf("schedule: %w", err))
	}
	//
	if err := tree.Validate(scop.Schedule); err != nil {
		return fail(fmt.Errorf("schedule: %w", err))
	}
	//
	return scop, nil
}

// parseAccess reads an access relation, defaulting to the empty relation.
func parseAccess(ctx *poly.Ctx, text string) (*poly.UnionMap, error) {
	if text == "" {
		return poly.NewUnionMap(ctx), nil
	}
	//
	return poly.ParseUnionMap(ctx, text)
}

// regions is the decomposition of a source file into SCoP and non-SCoP
// parts.
type regions struct {
	// outside holds the verbatim text surrounding the scops; it has exactly
	// one more entry than scops.
	outside []string
	// scops holds the region bodies, in order.
	scops []string
}

func splitRegions(source string) (regions, error) {
	var r regions
	//
	rest := source
	//
	for {
		begin := strings.Index(rest, pragmaBegin)
		if begin < 0 {
			r.outside = append(r.outside, rest)
			return r, nil
		}
		//
		afterBegin := begin + len(pragmaBegin)
		end := strings.Index(rest[afterBegin:], pragmaEnd)
		//
		if end < 0 {
			return r, fmt.Errorf("unterminated %q region", pragmaBegin)
		}
		//
		r.outside = append(r.outside, rest[:begin])
		r.scops = append(r.scops, rest[afterBegin:afterBegin+end])
		rest = rest[afterBegin+end+len(pragmaEnd):]
	}
}

// Callback rewrites one SCoP region.  It writes either the original region
// text or generated code onto w.
type Callback func(w io.Writer, index int) error

// Transform streams the source file onto w, passing non-SCoP text through
// verbatim and invoking the callback in place of each SCoP region.
func Transform(path string, w io.Writer, callback Callback) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	//
	r, err := splitRegions(string(source))
	if err != nil {
		return err
	}
	//
	for i := range r.scops {
		if _, err := io.WriteString(w, r.outside[i]); err != nil {
			return err
		}
		//
		if err := callback(w, i); err != nil {
			return err
		}
	}
	//
	_, err = io.WriteString(w, r.outside[len(r.outside)-1])
	//
	return err
}
