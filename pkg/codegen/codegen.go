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

// Package codegen turns a schedule tree back into C text.  The generator
// scans the flattened schedule space dimension by dimension: ordinal
// dimensions become statement ordering, the remaining dimensions become
// loops whose bounds are obtained by projecting the schedule image of each
// statement's domain.  Statement bodies are emitted with their original
// iterators substituted by the inverse of the schedule, following the
// pullback approach of the polyhedral code generators this mirrors.
package codegen

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/hikettei/tadashi/pkg/frontend"
	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/tree"
	"github.com/hikettei/tadashi/pkg/util"
	"github.com/hikettei/tadashi/pkg/util/math"
)

// unit is one emission unit: a single-piece slice of one statement, its
// iteration set in schedule space, and the inverse schedule.
type unit struct {
	// name of the statement this unit belongs to.
	name string
	// body is the statement's C text.
	body string
	// iters names the statement's original iteration variables.
	iters []string
	// set is the unit's iteration set in schedule space.
	set *poly.BasicSet
	// solved expresses each original iterator over the schedule dimensions.
	solved []*poly.Aff
	// guards accumulated along the descent, to wrap the body in.
	guards []string
}

// Generate emits C text for the SCoP under its (transformed) schedule tree.
func Generate(w io.Writer, info *frontend.ScopInfo, root tree.Node) error {
	schedule, err := tree.ScheduleMap(root)
	if err != nil {
		return err
	}
	//
	defer schedule.Free()
	//
	depth := 0
	for _, m := range schedule.Maps() {
		depth = max(depth, m.Space.Out.Arity())
	}
	//
	units, err := buildUnits(info, schedule)
	if err != nil {
		return err
	}
	//
	var (
		use      poly.MacroUse
		body     strings.Builder
		loopVars = make([]string, depth)
		parallel = parallelDims(root)
	)
	//
	for i := range loopVars {
		loopVars[i] = fmt.Sprintf("c%d", i)
	}
	//
	gen := &generator{info.Params, loopVars, &use, parallel}
	//
	if err := gen.emit(&body, units, 0, 0); err != nil {
		return err
	}
	// macros first, then declarations, then the loop nest
	writeMacros(w, &use)
	//
	indent := writeDeclarations(w, info)
	//
	if err := writeIndented(w, body.String(), indent); err != nil {
		return err
	}
	//
	return closeDeclarations(w, indent)
}

// buildUnits constructs the per-statement emission units in source order.
func buildUnits(info *frontend.ScopInfo, schedule *poly.UnionMap) ([]*unit, error) {
	var units []*unit
	//
	for _, stmt := range info.Statements {
		for _, m := range schedule.Maps() {
			if m.Space.In.Name != stmt.Name {
				continue
			}
			//
			for _, basic := range m.Basics {
				set := basic.Range()
				if set.IsEmpty() {
					continue
				}
				//
				solved, err := basic.SolveInputs()
				if err != nil {
					return nil, fmt.Errorf("statement %s: %w", stmt.Name, err)
				}
				//
				units = append(units, &unit{
					name:   stmt.Name,
					body:   stmt.Body,
					iters:  m.Space.In.Dims,
					set:    set,
					solved: solved,
				})
			}
		}
	}
	//
	if len(units) == 0 {
		return nil, fmt.Errorf("no statement instances to generate")
	}
	//
	return units, nil
}

// generator carries the immutable emission context.
type generator struct {
	params   []string
	loopVars []string
	use      *poly.MacroUse
	parallel map[int]bool
}

// names returns the rendering names for bound expressions at the given
// depth: parameters followed by the enclosing loop variables.
func (p *generator) names(depth int) []string {
	return util.AppendAll(p.params, p.loopVars[:depth]...)
}

// emit recursively generates the loop nest from the given dimension down.
func (p *generator) emit(w *strings.Builder, units []*unit, depth int, indent int) error {
	if depth == len(p.loopVars) {
		return p.emitBodies(w, units, indent)
	}
	// when every unit pins this dimension to a constant, it is an ordering
	// dimension: group and sequence, no loop
	if groups, ok := groupByConstant(units, depth); ok {
		for _, group := range groups {
			if err := p.emit(w, group, depth+1, indent); err != nil {
				return err
			}
		}
		//
		return nil
	}
	//
	return p.emitLoop(w, units, depth, indent)
}

// emitLoop generates one for loop covering the union of the units' ranges.
func (p *generator) emitLoop(w *strings.Builder, units []*unit, depth int, indent int) error {
	var (
		names     = p.names(depth)
		lowers    []string
		uppers    []string
		perUnitLB = make([]string, len(units))
		perUnitUB = make([]string, len(units))
		stride    = int64(1)
	)
	//
	for i, u := range units {
		lower, upper := u.set.Bounds(depth)
		//
		if len(lower) == 0 || len(upper) == 0 {
			return fmt.Errorf("statement %s: unbounded schedule dimension %d", u.name, depth)
		}
		//
		perUnitLB[i] = renderLower(lower, names, p.use)
		perUnitUB[i] = renderUpper(upper, names, p.use)
		//
		lowers = appendUnique(lowers, perUnitLB[i])
		uppers = appendUnique(uppers, perUnitUB[i])
		//
		stride = lcm64(stride, unitStride(u, depth))
	}
	// the union loop starts at the least lower bound and runs to the
	// greatest upper bound
	lb := foldMacro("min", lowers, p.use)
	ub := foldMacro("max", uppers, p.use)
	//
	v := p.loopVars[depth]
	//
	if p.parallel[depth] {
		fmt.Fprintf(w, "%s#pragma omp parallel for\n", tabs(indent))
	}
	//
	step := fmt.Sprintf("%s += %d", v, stride)
	//
	fmt.Fprintf(w, "%sfor (int %s = %s; %s <= %s; %s) {\n", tabs(indent), v, lb, v, ub, step)
	// units whose own range is narrower than the union get guarded
	sub := make([]*unit, len(units))
	//
	for i, u := range units {
		guards := u.guards
		//
		if perUnitLB[i] != lb {
			guards = util.Append(guards, fmt.Sprintf("%s >= %s", v, perUnitLB[i]))
		}
		//
		if perUnitUB[i] != ub {
			guards = util.Append(guards, fmt.Sprintf("%s <= %s", v, perUnitUB[i]))
		}
		//
		sub[i] = &unit{u.name, u.body, u.iters, u.set, u.solved, guards}
	}
	//
	if err := p.emit(w, sub, depth+1, indent+1); err != nil {
		return err
	}
	//
	fmt.Fprintf(w, "%s}\n", tabs(indent))
	//
	return nil
}

// emitBodies prints the statement bodies, iterators substituted, wrapped in
// any accumulated guards.
func (p *generator) emitBodies(w *strings.Builder, units []*unit, indent int) error {
	names := p.names(len(p.loopVars))
	//
	for _, u := range units {
		body := u.body
		//
		for i, iter := range u.iters {
			expr := u.solved[i].CExpr(names, p.use)
			body = substituteIdent(body, iter, fmt.Sprintf("(%s)", expr))
		}
		//
		if len(u.guards) > 0 {
			fmt.Fprintf(w, "%sif (%s) {\n", tabs(indent), strings.Join(u.guards, " && "))
			fmt.Fprintf(w, "%s%s\n", tabs(indent+1), body)
			fmt.Fprintf(w, "%s}\n", tabs(indent))
		} else {
			fmt.Fprintf(w, "%s%s\n", tabs(indent), body)
		}
	}
	//
	return nil
}

// groupByConstant partitions units by the constant value this dimension
// takes, in ascending order.  Fails if any unit does not pin the dimension.
func groupByConstant(units []*unit, depth int) ([][]*unit, bool) {
	var groups []util.Pair[*big.Int, []*unit]
	//
	for _, u := range units {
		val, ok := dimConstant(u.set, depth)
		if !ok {
			return nil, false
		}
		//
		placed := false
		//
		for i := range groups {
			if groups[i].Left.Cmp(val) == 0 {
				groups[i].Right = append(groups[i].Right, u)
				placed = true
				//
				break
			}
		}
		//
		if !placed {
			groups = append(groups, util.NewPair(val, []*unit{u}))
		}
	}
	// ascending schedule order
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			if groups[j].Left.Cmp(groups[i].Left) < 0 {
				groups[i], groups[j] = groups[j], groups[i]
			}
		}
	}
	//
	result := make([][]*unit, len(groups))
	for i, g := range groups {
		result[i] = g.Right
	}
	//
	return result, true
}

// dimConstant recognises a dimension pinned to a single integer, by folding
// its constant bounds into an interval and checking it has width zero.
func dimConstant(set *poly.BasicSet, dim int) (*big.Int, bool) {
	iv, ok := dimRange(set, dim)
	//
	if !ok || !iv.IsFinite() {
		return nil, false
	}
	//
	var (
		loInf = iv.MinValue()
		hiInf = iv.MaxValue()
		lo    = loInf.IntVal()
		hi    = hiInf.IntVal()
	)
	//
	if lo.Cmp(&hi) != 0 {
		return nil, false
	}
	//
	return &lo, true
}

// dimRange folds the bounds on a dimension into an interval.  False when a
// non-constant bound constrains the dimension (its range then depends on
// outer dimensions or parameters), when a side is unconstrained, or when the
// constant bounds contradict each other.
func dimRange(set *poly.BasicSet, dim int) (math.Interval, bool) {
	var (
		lower, upper             = set.Bounds(dim)
		lo           math.InfInt = math.NegInfinity
		hi           math.InfInt = math.PosInfinity
	)
	//
	for _, b := range lower {
		if !b.Expr.IsConstant() {
			return math.INFINITY, false
		}
		//
		v := constBound(b, true)
		lo = lo.Max(math.NewInfInt(v))
	}
	//
	for _, b := range upper {
		if !b.Expr.IsConstant() {
			return math.INFINITY, false
		}
		//
		v := constBound(b, false)
		hi = hi.Min(math.NewInfInt(v))
	}
	//
	if !lo.IsNotAnInfinity() || !hi.IsNotAnInfinity() || lo.Cmp(hi) > 0 {
		return math.INFINITY, false
	}
	//
	return math.NewInterval(lo.IntVal(), hi.IntVal()), true
}

// unitStride derives the loop stride this unit needs at the given dimension
// from the denominators of its inverse schedule.
func unitStride(u *unit, depth int) int64 {
	stride := int64(1)
	//
	for _, a := range u.solved {
		den := a.Coeff(depth).Denom()
		if den.IsInt64() {
			stride = lcm64(stride, den.Int64())
		}
	}
	//
	return stride
}

// renderLower renders the conjunction of lower bounds (the maximum).
// Constant bounds fold numerically; the tightest constant wins.
func renderLower(bounds []poly.Bound, names []string, use *poly.MacroUse) string {
	var (
		parts    []string
		folded   math.InfInt = math.NegInfinity
		anyConst             = false
	)
	//
	for _, b := range bounds {
		if b.Expr.IsConstant() {
			val := constBound(b, true)
			folded = folded.Max(math.NewInfInt(val))
			anyConst = true
			//
			continue
		}
		//
		if b.Den.Cmp(big.NewInt(1)) == 0 {
			parts = appendUnique(parts, b.Expr.CExpr(names, use))
		} else {
			use.Ceild = true
			parts = appendUnique(parts, fmt.Sprintf("ceild(%s, %s)", b.Expr.CExpr(names, use), b.Den))
		}
	}
	//
	if anyConst {
		v := folded.IntVal()
		parts = appendUnique(parts, v.String())
	}
	//
	return foldMacro("max", parts, use)
}

// renderUpper renders the conjunction of upper bounds (the minimum).
func renderUpper(bounds []poly.Bound, names []string, use *poly.MacroUse) string {
	var (
		parts    []string
		folded   math.InfInt = math.PosInfinity
		anyConst             = false
	)
	//
	for _, b := range bounds {
		if b.Expr.IsConstant() {
			val := constBound(b, false)
			folded = folded.Min(math.NewInfInt(val))
			anyConst = true
			//
			continue
		}
		//
		if b.Den.Cmp(big.NewInt(1)) == 0 {
			parts = appendUnique(parts, b.Expr.CExpr(names, use))
		} else {
			use.Floord = true
			parts = appendUnique(parts, fmt.Sprintf("floord(%s, %s)", b.Expr.CExpr(names, use), b.Den))
		}
	}
	//
	if anyConst {
		v := folded.IntVal()
		parts = appendUnique(parts, v.String())
	}
	//
	return foldMacro("min", parts, use)
}

// constBound evaluates a constant bound, rounding up for lower bounds and
// down for upper bounds.
func constBound(b poly.Bound, lower bool) big.Int {
	var (
		num = b.Expr.Constant().Num()
		rem = new(big.Int)
		val = new(big.Int)
	)
	//
	val.DivMod(num, b.Den, rem)
	// DivMod floors; round up instead for a lower bound
	if lower && rem.Sign() != 0 {
		val.Add(val, big.NewInt(1))
	}
	//
	return *val
}

// appendUnique appends an item unless already present.
func appendUnique(items []string, item string) []string {
	for _, existing := range items {
		if existing == item {
			return items
		}
	}
	//
	return append(items, item)
}

// foldMacro folds several expressions through a two-argument macro.
func foldMacro(macro string, parts []string, use *poly.MacroUse) string {
	switch {
	case len(parts) == 1:
		return parts[0]
	case macro == "min":
		use.Min = true
	case macro == "max":
		use.Max = true
	}
	//
	folded := parts[0]
	//
	for _, part := range parts[1:] {
		folded = fmt.Sprintf("%s(%s, %s)", macro, folded, part)
	}
	//
	return folded
}

// parallelDims collects the flat schedule dimensions annotated with the
// parallel loop type anywhere in the tree.
func parallelDims(root tree.Node) map[int]bool {
	result := make(map[int]bool)
	collectParallel(root, 0, result)
	//
	return result
}

func collectParallel(node tree.Node, depth int, result map[int]bool) {
	switch n := node.(type) {
	case *tree.Band:
		for d := 0; d < n.Schedule.Dim(); d++ {
			if n.LoopType(d) == tree.LoopParallel {
				result[depth+d] = true
			}
		}
		//
		collectParallel(n.Body, depth+n.Schedule.Dim(), result)
	case *tree.Sequence:
		for _, c := range n.Children {
			collectParallel(c.Body, depth+1, result)
		}
	case *tree.SetNode:
		for _, c := range n.Children {
			collectParallel(c.Body, depth+1, result)
		}
	case *tree.Domain:
		collectParallel(n.Body, depth, result)
	case *tree.Context:
		collectParallel(n.Body, depth, result)
	case *tree.Filter:
		collectParallel(n.Body, depth, result)
	case *tree.Mark:
		collectParallel(n.Body, depth, result)
	}
}

// substituteIdent replaces whole-identifier occurrences of name in body.
func substituteIdent(body string, name string, replacement string) string {
	var (
		builder strings.Builder
		i       = 0
	)
	//
	isWord := func(c byte) bool {
		return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	}
	//
	for i < len(body) {
		if strings.HasPrefix(body[i:], name) {
			before := i == 0 || !isWord(body[i-1])
			afterIdx := i + len(name)
			after := afterIdx >= len(body) || !isWord(body[afterIdx])
			//
			if before && after {
				builder.WriteString(replacement)
				i = afterIdx
				//
				continue
			}
		}
		//
		builder.WriteByte(body[i])
		i++
	}
	//
	return builder.String()
}

// writeMacros prints the definitions of the helper macros in use.
func writeMacros(w io.Writer, use *poly.MacroUse) {
	if use.Floord {
		fmt.Fprintln(w, "#define floord(n, d) (((n) < 0) ? -((-(n) + (d) - 1) / (d)) : (n) / (d))")
	}
	//
	if use.Ceild {
		fmt.Fprintln(w, "#define ceild(n, d) (((n) < 0) ? -((-(n)) / (d)) : ((n) + (d) - 1) / (d))")
	}
	//
	if use.Min {
		fmt.Fprintln(w, "#define min(x, y) ((x) < (y) ? (x) : (y))")
	}
	//
	if use.Max {
		fmt.Fprintln(w, "#define max(x, y) ((x) > (y) ? (x) : (y))")
	}
}

// writeDeclarations prints declarations for arrays declared inside the
// SCoP.  Hidden (non-exposed) arrays open an inner scope; the returned
// indent reflects whether one was opened.
func writeDeclarations(w io.Writer, info *frontend.ScopInfo) int {
	hidden := false
	//
	for _, arr := range info.Arrays {
		if arr.Declared && arr.Exposed {
			writeArrayDecl(w, arr, 0)
		}
		//
		hidden = hidden || (arr.Declared && !arr.Exposed)
	}
	//
	if !hidden {
		return 0
	}
	//
	fmt.Fprintln(w, "{")
	//
	for _, arr := range info.Arrays {
		if arr.Declared && !arr.Exposed {
			writeArrayDecl(w, arr, 1)
		}
	}
	//
	return 1
}

func writeArrayDecl(w io.Writer, arr frontend.ArrayDecl, indent int) {
	var dims strings.Builder
	//
	for _, size := range arr.Size {
		fmt.Fprintf(&dims, "[%s]", size)
	}
	//
	fmt.Fprintf(w, "%s%s %s%s;\n", tabs(indent), arr.ElementType, arr.Name, dims.String())
}

func closeDeclarations(w io.Writer, indent int) error {
	if indent > 0 {
		_, err := fmt.Fprintln(w, "}")
		return err
	}
	//
	return nil
}

// writeIndented shifts a block of generated text by the given indent.
func writeIndented(w io.Writer, text string, indent int) error {
	if indent == 0 {
		_, err := io.WriteString(w, text)
		return err
	}
	//
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if _, err := fmt.Fprintf(w, "%s%s\n", tabs(indent), line); err != nil {
			return err
		}
	}
	//
	return nil
}

func tabs(n int) string {
	return strings.Repeat("  ", n)
}

func lcm64(a int64, b int64) int64 {
	return a / gcd64(a, b) * b
}

func gcd64(a int64, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	//
	return a
}
