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
package tree

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hikettei/tadashi/pkg/poly"
	"github.com/hikettei/tadashi/pkg/util/collection/bit"
)

// yamlNode is the serialised shape of a schedule-tree node.  Exactly one of
// the variant-selecting fields is populated; a missing child denotes a leaf.
type yamlNode struct {
	Domain     string      `yaml:"domain,omitempty"`
	Context    string      `yaml:"context,omitempty"`
	Filter     string      `yaml:"filter,omitempty"`
	Mark       string      `yaml:"mark,omitempty"`
	Schedule   string      `yaml:"schedule,omitempty"`
	Permutable int         `yaml:"permutable,omitempty"`
	Coincident []int       `yaml:"coincident,omitempty,flow"`
	Loop       []string    `yaml:"loop,omitempty,flow"`
	Sequence   []*yamlNode `yaml:"sequence,omitempty"`
	Set        []*yamlNode `yaml:"set,omitempty"`
	Child      *yamlNode   `yaml:"child,omitempty"`
}

// MarshalYAML serialises a schedule tree.
func MarshalYAML(node Node) ([]byte, error) {
	enc, err := encode(node)
	if err != nil {
		return nil, err
	}
	//
	return yaml.Marshal(enc)
}

// UnmarshalYAML reconstructs a schedule tree, allocating its polyhedral
// payloads against the given context.
func UnmarshalYAML(ctx *poly.Ctx, data []byte) (Node, error) {
	var enc yamlNode
	//
	if err := yaml.Unmarshal(data, &enc); err != nil {
		return nil, err
	}
	//
	return decode(ctx, &enc)
}

func encode(node Node) (*yamlNode, error) {
	switch n := node.(type) {
	case *Domain:
		child, err := encodeChild(n.Body)
		return &yamlNode{Domain: n.Instances.String(), Child: child}, err
	case *Context:
		child, err := encodeChild(n.Body)
		return &yamlNode{Context: n.Constraint.String(), Child: child}, err
	case *Band:
		var (
			coincident []int
			loops      []string
		)
		//
		for i := 0; i < n.Schedule.Dim(); i++ {
			if n.Coincident.Contains(uint(i)) {
				coincident = append(coincident, 1)
			} else if n.Coincident.Count() > 0 {
				coincident = append(coincident, 0)
			}
		}
		//
		for _, t := range n.LoopTypes {
			loops = append(loops, t.String())
		}
		//
		permutable := 0
		if n.Permutable {
			permutable = 1
		}
		//
		child, err := encodeChild(n.Body)
		//
		return &yamlNode{
			Schedule:   n.Schedule.String(),
			Permutable: permutable,
			Coincident: coincident,
			Loop:       loops,
			Child:      child,
		}, err
	case *Sequence:
		children, err := encodeFilters(n.Children)
		return &yamlNode{Sequence: children}, err
	case *SetNode:
		children, err := encodeFilters(n.Children)
		return &yamlNode{Set: children}, err
	case *Filter:
		child, err := encodeChild(n.Body)
		return &yamlNode{Filter: n.Instances.String(), Child: child}, err
	case *Mark:
		child, err := encodeChild(n.Body)
		return &yamlNode{Mark: n.Label, Child: child}, err
	default:
		return nil, fmt.Errorf("cannot serialise node variant %T", node)
	}
}

func encodeChild(node Node) (*yamlNode, error) {
	if _, leaf := node.(*Leaf); leaf {
		return nil, nil
	}
	//
	return encode(node)
}

func encodeFilters(children []*Filter) ([]*yamlNode, error) {
	var result []*yamlNode
	//
	for _, child := range children {
		enc, err := encode(child)
		if err != nil {
			return nil, err
		}
		//
		result = append(result, enc)
	}
	//
	return result, nil
}

func decode(ctx *poly.Ctx, enc *yamlNode) (Node, error) {
	switch {
	case enc == nil:
		return &Leaf{}, nil
	case enc.Domain != "":
		instances, err := poly.ParseUnionSet(ctx, enc.Domain)
		if err != nil {
			return nil, fmt.Errorf("malformed domain: %w", err)
		}
		//
		body, err := decode(ctx, enc.Child)
		if err != nil {
			instances.Free()
			return nil, err
		}
		//
		return &Domain{instances, body}, nil
	case enc.Context != "":
		constraint, err := poly.ParseUnionSet(ctx, enc.Context)
		if err != nil {
			return nil, fmt.Errorf("malformed context: %w", err)
		}
		//
		body, err := decode(ctx, enc.Child)
		if err != nil {
			constraint.Free()
			return nil, err
		}
		//
		return &Context{constraint, body}, nil
	case enc.Schedule != "":
		schedule, err := poly.ParseMultiUnionPwAff(ctx, enc.Schedule)
		if err != nil {
			return nil, fmt.Errorf("malformed schedule: %w", err)
		}
		//
		var coincident bit.Set
		//
		for i, c := range enc.Coincident {
			if c != 0 {
				coincident.Insert(uint(i))
			}
		}
		//
		var loops []LoopType
		//
		for _, name := range enc.Loop {
			t, err := ParseLoopType(name)
			if err != nil {
				schedule.Free()
				return nil, err
			}
			//
			loops = append(loops, t)
		}
		//
		body, err := decode(ctx, enc.Child)
		if err != nil {
			schedule.Free()
			return nil, err
		}
		//
		return &Band{schedule, enc.Permutable != 0, coincident, loops, body}, nil
	case enc.Filter != "":
		instances, err := poly.ParseUnionSet(ctx, enc.Filter)
		if err != nil {
			return nil, fmt.Errorf("malformed filter: %w", err)
		}
		//
		body, err := decode(ctx, enc.Child)
		if err != nil {
			instances.Free()
			return nil, err
		}
		//
		return &Filter{instances, body}, nil
	case enc.Mark != "":
		body, err := decode(ctx, enc.Child)
		if err != nil {
			return nil, err
		}
		//
		return &Mark{enc.Mark, body}, nil
	case enc.Sequence != nil:
		children, err := decodeFilters(ctx, enc.Sequence)
		return &Sequence{children}, err
	case enc.Set != nil:
		children, err := decodeFilters(ctx, enc.Set)
		return &SetNode{children}, err
	default:
		return &Leaf{}, nil
	}
}

func decodeFilters(ctx *poly.Ctx, encs []*yamlNode) ([]*Filter, error) {
	var children []*Filter
	//
	for _, enc := range encs {
		node, err := decode(ctx, enc)
		if err != nil {
			for _, c := range children {
				Free(c)
			}
			//
			return nil, err
		}
		//
		filter, ok := node.(*Filter)
		if !ok {
			for _, c := range children {
				Free(c)
			}
			//
			Free(node)
			//
			return nil, fmt.Errorf("sequence/set children must be filters, found %s", node.Kind())
		}
		//
		children = append(children, filter)
	}
	//
	return children, nil
}
