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

// Package scop owns the session state of an interactive scheduling run: the
// SCoPs extracted from one source file, each with its accepted schedule, its
// cached dependences and its in-flight candidate.  Every transformation runs
// as a begin/apply/commit transaction gated on the legality oracle, so an
// unsuccessful transformation is observable but never committed.
package scop

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/hikettei/tadashi/pkg/codegen"
	"github.com/hikettei/tadashi/pkg/frontend"
	"github.com/hikettei/tadashi/pkg/legality"
	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/transform"
	"github.com/hikettei/tadashi/pkg/tree"
	"github.com/hikettei/tadashi/pkg/util"
)

// Session owns an ordered list of SCoP records plus the shared polyhedral
// context.  All operations must be serialised by the caller; the session
// introduces no concurrency of its own.
type Session struct {
	ctx   *poly.Ctx
	path  string
	scops []*Scop
}

// Load creates a session from a source file, extracting its SCoPs and
// computing the dependence relation of each.
func Load(path string) (*Session, error) {
	ctx := poly.NewCtx()
	//
	infos, err := frontend.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	//
	session := &Session{ctx: ctx, path: path}
	//
	for i, info := range infos {
		root := info.TakeSchedule()
		//
		dependence, err := computeDependences(info, root)
		if err != nil {
			tree.Free(root)
			info.Free()
			// release the records not yet adopted, then the session
			for _, rest := range infos[i+1:] {
				rest.Free()
			}
			//
			session.Close()
			//
			return nil, fmt.Errorf("scop %d: %w", i, err)
		}
		//
		session.scops = append(session.scops, &Scop{
			info:       info,
			dependence: dependence,
			current:    tree.NewCursor(root),
			scratch:    util.None[tree.Cursor](),
		})
	}
	//
	log.Infof("loaded %d scops from %s", len(session.scops), path)
	//
	return session, nil
}

// NumScops returns the number of SCoPs in this session.
func (p *Session) NumScops() int {
	return len(p.scops)
}

// Scop returns the record at the given index.
func (p *Session) Scop(idx int) (*Scop, error) {
	if idx < 0 || idx >= len(p.scops) {
		return nil, fmt.Errorf("scop index %d out of range [0, %d)", idx, len(p.scops))
	}
	//
	return p.scops[idx], nil
}

// Close tears the session down, releasing every record in reverse
// allocation order and finally the shared context.  An error indicates an
// ownership leak.
func (p *Session) Close() error {
	for i := len(p.scops) - 1; i >= 0; i-- {
		p.scops[i].free()
	}
	//
	p.scops = nil
	//
	return p.ctx.Close()
}

// ============================================================================
// Introspection
// ============================================================================

// GetType returns the variant tag of the focused node.
func (p *Session) GetType(idx int) (tree.Kind, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return 0, err
	}
	//
	return scop.current.Node().Kind(), nil
}

// GetNumChildren returns the child count of the focused node.
func (p *Session) GetNumChildren(idx int) (int, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return 0, err
	}
	//
	return scop.current.Node().NumChildren(), nil
}

// GetExpr returns the partial-schedule text of the focused node, or the
// empty string when the focus is not a band.  The string stays valid until
// the record is released.
func (p *Session) GetExpr(idx int) (string, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return "", err
	}
	//
	band, ok := scop.current.Node().(*tree.Band)
	if !ok {
		return "", nil
	}
	//
	return scop.addString(band.Schedule.String()), nil
}

// GetLoopSignature returns the structured per-piece parameter and variable
// names of the focused band as a JSON document, or "[]" elsewhere.
func (p *Session) GetLoopSignature(idx int) (string, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return "", err
	}
	//
	band, ok := scop.current.Node().(*tree.Band)
	if !ok {
		return "[]", nil
	}
	//
	return scop.addString(loopSignature(band)), nil
}

// PrintScheduleNode returns an indented dump of the subtree below the
// focused node.
func (p *Session) PrintScheduleNode(idx int) (string, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return "", err
	}
	//
	return scop.addString(tree.Dump(scop.current.Node())), nil
}

// ============================================================================
// Navigation
// ============================================================================

// GotoRoot refocuses the current cursor at the tree root.
func (p *Session) GotoRoot(idx int) error {
	scop, err := p.Scop(idx)
	if err != nil {
		return err
	}
	//
	scop.current = scop.current.Root()
	//
	return nil
}

// GotoParent moves the current cursor one step towards the root.
func (p *Session) GotoParent(idx int) error {
	scop, err := p.Scop(idx)
	if err != nil {
		return err
	}
	//
	cur, err := scop.current.Parent()
	if err != nil {
		return err
	}
	//
	scop.current = cur
	//
	return nil
}

// GotoChild moves the current cursor to the given child.
func (p *Session) GotoChild(idx int, child int) error {
	scop, err := p.Scop(idx)
	if err != nil {
		return err
	}
	//
	cur, err := scop.current.Child(child)
	if err != nil {
		return err
	}
	//
	scop.current = cur
	//
	return nil
}

// ============================================================================
// Transactions
// ============================================================================

// begin copies the current cursor into the scratch slot, discarding any
// stale candidate first.
func (p *Scop) begin() {
	if p.scratch.HasValue() {
		p.scratch.Unwrap().Free()
	}
	//
	p.scratch = util.Some(p.current.Copy())
}

// commit extracts the candidate schedule from the scratch cursor and runs
// the legality oracle against the cached dependences.  A legal candidate is
// swapped into place atomically; an illegal one stays in the scratch slot
// for inspection.
func (p *Scop) commit() (bool, error) {
	scratch := p.scratch.Unwrap()
	//
	schedule, err := tree.ScheduleMap(scratch.Tree())
	if err != nil {
		return false, err
	}
	//
	legal := legality.Check(p.dependence, schedule)
	schedule.Free()
	//
	if legal {
		p.scratch = util.Some(p.current)
		p.current = scratch
		p.dirty = true
	}
	//
	return legal, nil
}

// commitParallel is the commit variant for parallel marking: the candidate
// is gated on the parallel legality check at the focused band's depth.
func (p *Scop) commitParallel() (bool, error) {
	scratch := p.scratch.Unwrap()
	//
	schedule, err := tree.ScheduleMap(scratch.Tree())
	if err != nil {
		return false, err
	}
	//
	depth, err := bandDepth(scratch)
	if err != nil {
		schedule.Free()
		return false, err
	}
	//
	legal := legality.CheckParallel(p.dependence, schedule, depth)
	schedule.Free()
	//
	if legal {
		p.scratch = util.Some(p.current)
		p.current = scratch
		p.dirty = true
	}
	//
	return legal, nil
}

// Rollback swaps the scratch cursor back to current, discarding the
// in-flight mutation of the given SCoP.
func (p *Session) Rollback(idx int) error {
	scop, err := p.Scop(idx)
	if err != nil {
		return err
	}
	//
	if !scop.scratch.HasValue() {
		return fmt.Errorf("scop %d has no in-flight candidate", idx)
	}
	//
	current := scop.current
	scop.current = scop.scratch.Unwrap()
	scop.scratch = util.Some(current)
	//
	return nil
}

// primitive runs one transformation as a begin/apply/commit transaction.
// Structural precondition failures surface as legal = false with the
// scratch slot discarded.  Errors are a bad index, a candidate tree that
// fails validation, and a failure of the commit step.
func (p *Session) primitive(idx int, name string, fn func(tree.Cursor) (tree.Cursor, error)) (bool, error) {
	return p.transaction(idx, name, fn, (*Scop).commit)
}

func (p *Session) transaction(idx int, name string, fn func(tree.Cursor) (tree.Cursor, error),
	commit func(*Scop) (bool, error)) (bool, error) {
	scop, err := p.Scop(idx)
	//
	if err != nil {
		return false, err
	}
	//
	scop.begin()
	//
	cur, err := fn(scop.scratch.Unwrap())
	if err != nil {
		// precondition violation: discard the candidate
		log.Debugf("scop %d: %s rejected: %v", idx, name, err)
		cur.Free()
		scop.scratch = util.None[tree.Cursor]()
		//
		return false, nil
	}
	//
	if err := tree.Validate(cur.Tree()); err != nil {
		// a structural invariant broke; this is a bug in the primitive
		cur.Free()
		scop.scratch = util.None[tree.Cursor]()
		//
		return false, fmt.Errorf("scop %d: %s: %w", idx, name, err)
	}
	//
	scop.scratch = util.Some(cur)
	//
	legal, err := commit(scop)
	if err != nil {
		return false, fmt.Errorf("scop %d: %s: %w", idx, name, err)
	}
	//
	log.Debugf("scop %d: %s legal=%t", idx, name, legal)
	//
	return legal, nil
}

// bandDepth counts the schedule dimensions contributed by the ancestors of
// the focused band, i.e. the flattened position of its first dimension.
func bandDepth(cur tree.Cursor) (int, error) {
	var (
		depth = 0
		node  = cur.Tree()
		path  = cur.Path()
	)
	//
	for i := uint(0); i < path.Depth(); i++ {
		switch n := node.(type) {
		case *tree.Band:
			depth += n.Schedule.Dim()
		case *tree.Sequence, *tree.SetNode:
			depth++
		}
		//
		node = node.Child(path.Get(i))
	}
	//
	if _, ok := node.(*tree.Band); !ok {
		return 0, fmt.Errorf("focused node is not a band")
	}
	//
	return depth, nil
}

// ============================================================================
// Transformations
// ============================================================================

// Tile tiles the focused band of the given SCoP.
func (p *Session) Tile(idx int, size int64) (bool, error) {
	return p.primitive(idx, "tile", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.Tile(cur, size)
	})
}

// Interchange swaps the focused band with its direct band child.
func (p *Session) Interchange(idx int) (bool, error) {
	return p.primitive(idx, "interchange", transform.Interchange)
}

// Fuse merges two filter children of the focused sequence node.
func (p *Session) Fuse(idx int, idx1 int, idx2 int) (bool, error) {
	return p.primitive(idx, "fuse", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.Fuse(cur, idx1, idx2)
	})
}

// FullFuse merges every filter child of the focused sequence node.
func (p *Session) FullFuse(idx int) (bool, error) {
	return p.primitive(idx, "full_fuse", transform.FuseAll)
}

// Scale multiplies the focused band's schedule by a constant.
func (p *Session) Scale(idx int, factor int64) (bool, error) {
	return p.primitive(idx, "scale", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.Scale(cur, factor)
	})
}

// PartialShiftVal shifts one piece of the focused band by a constant.
func (p *Session) PartialShiftVal(idx int, pieceIdx int, val int64) (bool, error) {
	return p.primitive(idx, "partial_shift_val", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftPartialVal(cur, pieceIdx, val)
	})
}

// PartialShiftVar shifts one piece of the focused band by an iteration
// variable.
func (p *Session) PartialShiftVar(idx int, pieceIdx int, varIdx int) (bool, error) {
	return p.primitive(idx, "partial_shift_var", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftPartialVar(cur, pieceIdx, varIdx)
	})
}

// PartialShiftParam shifts one piece of the focused band by a parameter
// multiple.
func (p *Session) PartialShiftParam(idx int, pieceIdx int, coeff int64, paramIdx int) (bool, error) {
	return p.primitive(idx, "partial_shift_param", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftPartialParam(cur, pieceIdx, coeff, paramIdx)
	})
}

// FullShiftVal shifts every piece of the focused band by a constant.
func (p *Session) FullShiftVal(idx int, val int64) (bool, error) {
	return p.primitive(idx, "full_shift_val", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftFullVal(cur, val)
	})
}

// FullShiftVar shifts every piece of the focused band by an iteration
// variable.
func (p *Session) FullShiftVar(idx int, varIdx int) (bool, error) {
	return p.primitive(idx, "full_shift_var", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftFullVar(cur, varIdx)
	})
}

// FullShiftParam shifts every piece of the focused band by a parameter
// multiple.
func (p *Session) FullShiftParam(idx int, coeff int64, paramIdx int) (bool, error) {
	return p.primitive(idx, "full_shift_param", func(cur tree.Cursor) (tree.Cursor, error) {
		return transform.ShiftFullParam(cur, coeff, paramIdx)
	})
}

// SetParallel marks the focused band as parallel, gated on the parallel
// legality check.
func (p *Session) SetParallel(idx int) (bool, error) {
	return p.transaction(idx, "set_parallel", transform.SetParallel, (*Scop).commitParallel)
}

// SetLoopOpt sets the AST loop-type annotation of the focused band.  As a
// pure codegen directive it bypasses the transaction and always reports
// success; when the focus is not a band or the dimension is out of range
// the annotation has nothing to attach to and the call is a no-op.
func (p *Session) SetLoopOpt(idx int, pos int, loopType tree.LoopType) (bool, error) {
	scop, err := p.Scop(idx)
	if err != nil {
		return false, err
	}
	//
	cur, err := transform.SetLoopType(scop.current, pos, loopType)
	if err != nil {
		log.Debugf("scop %d: set_loop_opt ignored: %v", idx, err)
		return true, nil
	}
	//
	scop.current = cur
	//
	return true, nil
}

// ============================================================================
// Code emission
// ============================================================================

// GenerateCode walks all SCoPs of the session's source file, emitting
// original text for untouched regions and regenerated C for dirty ones.
func (p *Session) GenerateCode(outputPath string) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	//
	defer output.Close()
	//
	return p.EmitCode(output)
}

// EmitCode streams the transformed source onto the given writer.
func (p *Session) EmitCode(w io.Writer) error {
	return frontend.Transform(p.path, w, func(w io.Writer, index int) error {
		scop, err := p.Scop(index)
		if err != nil {
			return err
		}
		//
		if !scop.dirty {
			_, err := io.WriteString(w, scop.info.Text)
			return err
		}
		//
		return codegen.Generate(w, scop.info, scop.current.Tree())
	})
}
