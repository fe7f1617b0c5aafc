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
	"slices"
	"strconv"
	"unicode"
)

// The textual notation follows the usual polyhedral conventions, e.g.
//
//	[n, m] -> { S[i, j] : 0 <= i < n and 0 <= j < m }
//	[n] -> { S[i] -> A[i, i + 1] }
//	{ S[i] -> [(floord(i, 32))] }
//
// Pieces are separated by semicolons, conjuncts by "and", and comparison
// chains (0 <= i < n) expand into their pairwise conjuncts.

type token struct {
	kind tokenKind
	text string
	pos  int
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokSymbol
	tokEOF
)

type lexer struct {
	input  string
	tokens []token
	pos    int
}

func lex(input string) (*lexer, error) {
	var (
		tokens []token
		i      = 0
	)
	//
	for i < len(input) {
		c := rune(input[i])
		//
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(input) && (unicode.IsLetter(rune(input[i])) || unicode.IsDigit(rune(input[i])) || input[i] == '_') {
				i++
			}
			//
			tokens = append(tokens, token{tokIdent, input[start:i], start})
		case unicode.IsDigit(c):
			start := i
			for i < len(input) && unicode.IsDigit(rune(input[i])) {
				i++
			}
			//
			tokens = append(tokens, token{tokNumber, input[start:i], start})
		default:
			// multi-character symbols first
			for _, sym := range []string{"->", "<=", ">=", "=="} {
				if i+1 < len(input) && input[i:i+2] == sym {
					tokens = append(tokens, token{tokSymbol, sym, i})
					i += 2
					//
					goto next
				}
			}
			//
			switch c {
			case '{', '}', '[', ']', '(', ')', ',', ';', ':', '+', '-', '*', '<', '>', '=':
				tokens = append(tokens, token{tokSymbol, string(c), i})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
		next:
		}
	}
	//
	tokens = append(tokens, token{tokEOF, "", len(input)})
	//
	return &lexer{input, tokens, 0}, nil
}

func (p *lexer) peek() token {
	return p.tokens[p.pos]
}

func (p *lexer) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	//
	return t
}

func (p *lexer) accept(text string) bool {
	if p.peek().text == text && p.peek().kind != tokEOF {
		p.pos++
		return true
	}
	//
	return false
}

func (p *lexer) expect(text string) error {
	if !p.accept(text) {
		return fmt.Errorf("expected %q at offset %d, found %q", text, p.peek().pos, p.peek().text)
	}
	//
	return nil
}

// parseParams reads the optional "[n, m] ->" prefix.
func (p *lexer) parseParams() ([]string, error) {
	var params []string
	// lookahead: a parameter prefix is "[ ... ] ->"
	if p.peek().text != "[" {
		return nil, nil
	}
	//
	save := p.pos
	p.pos++
	//
	for p.peek().text != "]" {
		t := p.next()
		if t.kind != tokIdent {
			p.pos = save
			return nil, nil
		}
		//
		params = append(params, t.text)
		//
		if !p.accept(",") {
			break
		}
	}
	//
	if !p.accept("]") || !p.accept("->") {
		p.pos = save
		return nil, nil
	}
	//
	return params, nil
}

// parseTupleHead reads "Name[d0, d1, ...]" where every entry must be a fresh
// identifier, returning the tuple.
func (p *lexer) parseTupleHead() (Tuple, error) {
	var tuple Tuple
	//
	if p.peek().kind == tokIdent {
		tuple.Name = p.next().text
	}
	//
	if err := p.expect("["); err != nil {
		return tuple, err
	}
	//
	for p.peek().text != "]" {
		t := p.next()
		if t.kind != tokIdent {
			return tuple, fmt.Errorf("expected dimension name at offset %d, found %q", t.pos, t.text)
		}
		//
		tuple.Dims = append(tuple.Dims, t.text)
		//
		if !p.accept(",") {
			break
		}
	}
	//
	return tuple, p.expect("]")
}

// exprEnv names the columns an expression may refer to.
type exprEnv struct {
	space *Space // set-shaped space [params | dims]
}

func (p *lexer) parseExpr(env exprEnv) (*Aff, error) {
	lhs, err := p.parseTerm(env)
	if err != nil {
		return nil, err
	}
	//
	for {
		switch {
		case p.accept("+"):
			rhs, err := p.parseTerm(env)
			if err != nil {
				return nil, err
			}
			//
			lhs = lhs.Add(rhs)
		case p.accept("-"):
			rhs, err := p.parseTerm(env)
			if err != nil {
				return nil, err
			}
			//
			lhs = lhs.Sub(rhs)
		default:
			return lhs, nil
		}
	}
}

func (p *lexer) parseTerm(env exprEnv) (*Aff, error) {
	lhs, err := p.parseFactor(env)
	if err != nil {
		return nil, err
	}
	//
	for p.accept("*") {
		rhs, err := p.parseFactor(env)
		//
		if err != nil {
			return nil, err
		}
		//
		switch {
		case lhs.IsConstant():
			lhs = rhs.Scale(lhs.Constant())
		case rhs.IsConstant():
			lhs = lhs.Scale(rhs.Constant())
		default:
			return nil, fmt.Errorf("non-affine product at offset %d", p.peek().pos)
		}
	}
	//
	return lhs, nil
}

func (p *lexer) parseFactor(env exprEnv) (*Aff, error) {
	t := p.next()
	//
	switch {
	case t.kind == tokNumber:
		val, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q at offset %d", t.text, t.pos)
		}
		//
		return NewConstAff(env.space, val), nil
	case t.text == "-":
		inner, err := p.parseFactor(env)
		if err != nil {
			return nil, err
		}
		//
		return inner.Neg(), nil
	case t.text == "(":
		inner, err := p.parseExpr(env)
		if err != nil {
			return nil, err
		}
		//
		return inner, p.expect(")")
	case t.text == "floord":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		//
		arg, err := p.parseExpr(env)
		if err != nil {
			return nil, err
		}
		//
		if err := p.expect(","); err != nil {
			return nil, err
		}
		//
		den := p.next()
		if den.kind != tokNumber {
			return nil, fmt.Errorf("expected divisor at offset %d", den.pos)
		}
		//
		d, err := strconv.ParseInt(den.text, 10, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("malformed divisor %q at offset %d", den.text, den.pos)
		}
		//
		return arg.FloorDiv(d), p.expect(")")
	case t.kind == tokIdent:
		if dim := slices.Index(env.space.Out.Dims, t.text); dim >= 0 {
			return NewVarAff(env.space, dim), nil
		}
		//
		if param := env.space.ParamIndex(t.text); param >= 0 {
			return NewParamAff(env.space, 1, param), nil
		}
		//
		return nil, fmt.Errorf("unknown name %q at offset %d", t.text, t.pos)
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", t.text, t.pos)
	}
}

// parseConstraints reads ": cond and cond ..." into the given adder.
func (p *lexer) parseConstraints(env exprEnv, addEq func(*Aff), addIneq func(*Aff)) error {
	if !p.accept(":") {
		return nil
	}
	//
	for {
		if err := p.parseChain(env, addEq, addIneq); err != nil {
			return err
		}
		//
		if !p.accept("and") {
			return nil
		}
	}
}

// parseChain reads a comparison chain such as 0 <= i < n.
func (p *lexer) parseChain(env exprEnv, addEq func(*Aff), addIneq func(*Aff)) error {
	lhs, err := p.parseExpr(env)
	if err != nil {
		return err
	}
	//
	seen := false
	//
	for {
		var op string
		//
		switch {
		case p.accept("<="):
			op = "<="
		case p.accept(">="):
			op = ">="
		case p.accept("<"):
			op = "<"
		case p.accept(">"):
			op = ">"
		case p.accept("=="), p.accept("="):
			op = "="
		default:
			if !seen {
				return fmt.Errorf("expected comparison at offset %d", p.peek().pos)
			}
			//
			return nil
		}
		//
		seen = true
		//
		rhs, err := p.parseExpr(env)
		if err != nil {
			return err
		}
		//
		switch op {
		case "<=":
			addIneq(rhs.Sub(lhs))
		case ">=":
			addIneq(lhs.Sub(rhs))
		case "<":
			// rhs - lhs - 1 >= 0
			addIneq(rhs.Sub(lhs).Add(NewConstAff(env.space, -1)))
		case ">":
			addIneq(lhs.Sub(rhs).Add(NewConstAff(env.space, -1)))
		case "=":
			addEq(lhs.Sub(rhs))
		}
		//
		lhs = rhs
	}
}

// ParseUnionSet parses the textual notation into a new owned union set.
func ParseUnionSet(ctx *Ctx, input string) (*UnionSet, error) {
	lx, err := lex(input)
	if err != nil {
		return nil, err
	}
	//
	params, err := lx.parseParams()
	if err != nil {
		return nil, err
	}
	//
	if err := lx.expect("{"); err != nil {
		return nil, err
	}
	//
	r := NewUnionSet(ctx)
	//
	for {
		if lx.accept("}") {
			break
		}
		//
		tuple, err := lx.parseTupleHead()
		if err != nil {
			r.Free()
			return nil, err
		}
		//
		space := NewSetSpace(params, tuple)
		basic := NewBasicSet(space)
		env := exprEnv{space}
		//
		if err := lx.parseConstraints(env, basic.AddEquality, basic.AddInequality); err != nil {
			r.Free()
			return nil, err
		}
		//
		r.add(SetFromBasics(basic))
		//
		if !lx.accept(";") {
			if err := lx.expect("}"); err != nil {
				r.Free()
				return nil, err
			}
			//
			break
		}
	}
	//
	return r, nil
}

// ParseSet parses notation containing a single tuple into an (unowned) set.
func ParseSet(ctx *Ctx, input string) (*Set, error) {
	us, err := ParseUnionSet(ctx, input)
	if err != nil {
		return nil, err
	}
	//
	defer us.Free()
	//
	if len(us.Sets()) != 1 {
		return nil, fmt.Errorf("expected a single tuple, found %d", len(us.Sets()))
	}
	//
	return us.Sets()[0].Clone(), nil
}

// parseMapPiece reads one "in -> out [: constraints]" piece.
func parseMapPiece(lx *lexer, params []string) (*BasicMap, error) {
	in, err := lx.parseTupleHead()
	if err != nil {
		return nil, err
	}
	//
	if err := lx.expect("->"); err != nil {
		return nil, err
	}
	// The output tuple may mix fresh dimension names with expressions over
	// the input dimensions.  Fresh names become dimensions; expressions
	// become equalities on anonymous dimensions.
	var outName string
	//
	if lx.peek().kind == tokIdent && lx.tokens[lx.pos+1].text == "[" {
		outName = lx.next().text
	}
	//
	if err := lx.expect("["); err != nil {
		return nil, err
	}
	//
	type outEntry struct {
		name string
		expr *Aff
	}
	//
	inSpace := NewSetSpace(params, in)
	//
	var entries []outEntry
	//
	for lx.peek().text != "]" {
		t := lx.peek()
		// a lone fresh identifier declares a dimension
		if t.kind == tokIdent && !slices.Contains(in.Dims, t.text) && !slices.Contains(params, t.text) {
			after := lx.tokens[lx.pos+1].text
			if after == "," || after == "]" {
				lx.next()
				entries = append(entries, outEntry{name: t.text})
				//
				if !lx.accept(",") {
					break
				}
				//
				continue
			}
		}
		// otherwise an expression over the input dimensions
		expr, err := lx.parseExpr(exprEnv{inSpace})
		if err != nil {
			return nil, err
		}
		//
		entries = append(entries, outEntry{expr: expr})
		//
		if !lx.accept(",") {
			break
		}
	}
	//
	if err := lx.expect("]"); err != nil {
		return nil, err
	}
	//
	out := Tuple{Name: outName}
	//
	for i, e := range entries {
		if e.name != "" {
			out.Dims = append(out.Dims, e.name)
		} else {
			out.Dims = append(out.Dims, fmt.Sprintf("o%d", i))
		}
	}
	//
	space := NewMapSpace(params, in, out)
	m := NewBasicMap(space)
	// combined environment over [in; out]
	combined := Tuple{"", AppendDims(in.Dims, out.Dims)}
	env := exprEnv{NewSetSpace(params, combined)}
	// pin expression entries to their dimensions
	for i, e := range entries {
		if e.expr != nil {
			// widen to the combined space
			widened := widenAff(e.expr, env.space, 0)
			widened = widened.Sub(NewVarAff(env.space, in.Arity()+i))
			m.AddEquality(widened)
		}
	}
	//
	if err := lx.parseConstraints(env, m.AddEquality, m.AddInequality); err != nil {
		return nil, err
	}
	//
	return m, nil
}

// AppendDims concatenates two dimension lists into a fresh slice.
func AppendDims(lhs []string, rhs []string) []string {
	r := make([]string, 0, len(lhs)+len(rhs))
	r = append(r, lhs...)
	r = append(r, rhs...)
	//
	return r
}

// widenAff re-expresses an expression over a wider dimension tuple, placing
// the original dimensions at the given offset.
func widenAff(a *Aff, space *Space, offset int) *Aff {
	basemap := make([]int, a.baseCols())
	//
	for i := range a.Space.Params {
		basemap[i] = slices.Index(space.Params, a.Space.Params[i])
	}
	//
	for i := 0; i < a.Space.Out.Arity(); i++ {
		basemap[len(a.Space.Params)+i] = len(space.Params) + offset + i
	}
	// rebuild via a scratch system to remap divisions
	sys := newSystem(len(space.Params), space.Out.Arity())
	row := embedAff(&sys, a, basemap)
	widened := rowToAff(space, &sys, row)
	//
	if widened == nil {
		panic("unrenderable expression after widening")
	}
	//
	return widened
}

// ParseUnionMap parses the textual notation into a new owned union map.
func ParseUnionMap(ctx *Ctx, input string) (*UnionMap, error) {
	lx, err := lex(input)
	if err != nil {
		return nil, err
	}
	//
	params, err := lx.parseParams()
	if err != nil {
		return nil, err
	}
	//
	if err := lx.expect("{"); err != nil {
		return nil, err
	}
	//
	r := NewUnionMap(ctx)
	//
	for {
		if lx.accept("}") {
			break
		}
		//
		m, err := parseMapPiece(lx, params)
		if err != nil {
			r.Free()
			return nil, err
		}
		//
		r.add(MapFromBasics(m))
		//
		if !lx.accept(";") {
			if err := lx.expect("}"); err != nil {
				r.Free()
				return nil, err
			}
			//
			break
		}
	}
	//
	return r, nil
}

// ParseUnionPwAff parses notation of the form { S[i] -> [(expr)] : conds }
// into a piecewise function.
func ParseUnionPwAff(input string) (UnionPwAff, error) {
	lx, err := lex(input)
	if err != nil {
		return UnionPwAff{}, err
	}
	//
	params, err := lx.parseParams()
	if err != nil {
		return UnionPwAff{}, err
	}
	//
	return parseUnionPwAffBody(lx, params)
}

// ParseMultiUnionPwAff parses "[{...}, {...}]" notation, with an optional
// "name" prefix on the bracket naming the output tuple, into a new owned
// multi piecewise function.
func ParseMultiUnionPwAff(ctx *Ctx, input string) (*MultiUnionPwAff, error) {
	lx, err := lex(input)
	if err != nil {
		return nil, err
	}
	//
	params, err := lx.parseParams()
	if err != nil {
		return nil, err
	}
	//
	var outName string
	//
	if lx.peek().kind == tokIdent {
		outName = lx.next().text
	}
	//
	if err := lx.expect("["); err != nil {
		return nil, err
	}
	//
	var members []UnionPwAff
	//
	for lx.peek().text != "]" {
		// re-lex the member in place by delegating to the same machinery
		member, err := parseUnionPwAffBody(lx, params)
		if err != nil {
			return nil, err
		}
		//
		members = append(members, member)
		//
		if !lx.accept(",") {
			break
		}
	}
	//
	if err := lx.expect("]"); err != nil {
		return nil, err
	}
	//
	return NewMultiUnionPwAff(ctx, outName, members...), nil
}

// parseUnionPwAffBody parses one "{ ... }" piecewise function member.
func parseUnionPwAffBody(lx *lexer, params []string) (UnionPwAff, error) {
	if err := lx.expect("{"); err != nil {
		return UnionPwAff{}, err
	}
	//
	var pieces []Piece
	//
	for {
		if lx.accept("}") {
			break
		}
		//
		in, err := lx.parseTupleHead()
		if err != nil {
			return UnionPwAff{}, err
		}
		//
		space := NewSetSpace(params, in)
		env := exprEnv{space}
		//
		if err := lx.expect("->"); err != nil {
			return UnionPwAff{}, err
		}
		//
		if err := lx.expect("["); err != nil {
			return UnionPwAff{}, err
		}
		//
		value, err := lx.parseExpr(env)
		if err != nil {
			return UnionPwAff{}, err
		}
		//
		if err := lx.expect("]"); err != nil {
			return UnionPwAff{}, err
		}
		//
		basic := NewBasicSet(space)
		//
		if err := lx.parseConstraints(env, basic.AddEquality, basic.AddInequality); err != nil {
			return UnionPwAff{}, err
		}
		//
		pieces = append(pieces, Piece{SetFromBasics(basic), value})
		//
		if !lx.accept(";") {
			if err := lx.expect("}"); err != nil {
				return UnionPwAff{}, err
			}
			//
			break
		}
	}
	//
	return UnionPwAff{pieces}, nil
}
