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
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hikettei/tadashi/pkg/scop"
	"github.com/hikettei/tadashi/pkg/tree"
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply [flags] source_file script_file",
	Short: "Apply a script of transformations and emit the transformed code.",
	Long: `Apply a script of transformations and emit the transformed code.
The script is a YAML list of steps; each step names a scop index, an
operation and its integer arguments, e.g.

    - { scop: 0, op: goto_child, args: [0] }
    - { scop: 0, op: tile, args: [32] }

Navigation steps move the cursor; transformation steps run as a
begin/apply/commit transaction and report their legality.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 2 {
			fmt.Println(cmd.UsageString())
			fail(codeFrontendFailure, "missing source or script file")
		}
		//
		output := getString(cmd, "output")
		//
		session, err := scop.Load(args[0])
		if err != nil {
			fail(codeFrontendFailure, "%v", err)
		}
		//
		defer session.Close()
		//
		steps, err := readScript(args[1])
		if err != nil {
			fail(codeFrontendFailure, "%v", err)
		}
		//
		for i, step := range steps {
			legal, err := runStep(session, step)
			if err != nil {
				fail(codeFrontendFailure, "step %d (%s): %v", i, step.Op, err)
			}
			//
			fmt.Printf("step %d (%s): legal=%t\n", i, step.Op, legal)
		}
		//
		if err := session.GenerateCode(output); err != nil {
			fail(codeOutputFailure, "%v", err)
		}
		//
		log.Infof("wrote %s", output)
	},
}

// step is one entry of a transformation script.
type step struct {
	Scop int     `yaml:"scop"`
	Op   string  `yaml:"op"`
	Args []int64 `yaml:"args"`
}

func readScript(path string) ([]step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	//
	var steps []step
	//
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("malformed script: %w", err)
	}
	//
	return steps, nil
}

// runStep dispatches one script entry onto the session.
func runStep(session *scop.Session, s step) (bool, error) {
	arg := func(i int) int64 {
		if i < len(s.Args) {
			return s.Args[i]
		}
		//
		return 0
	}
	//
	switch s.Op {
	case "goto_root":
		return true, session.GotoRoot(s.Scop)
	case "goto_parent":
		return true, session.GotoParent(s.Scop)
	case "goto_child":
		return true, session.GotoChild(s.Scop, int(arg(0)))
	case "tile":
		return session.Tile(s.Scop, arg(0))
	case "interchange":
		return session.Interchange(s.Scop)
	case "fuse":
		return session.Fuse(s.Scop, int(arg(0)), int(arg(1)))
	case "full_fuse":
		return session.FullFuse(s.Scop)
	case "scale":
		return session.Scale(s.Scop, arg(0))
	case "partial_shift_val":
		return session.PartialShiftVal(s.Scop, int(arg(0)), arg(1))
	case "partial_shift_var":
		return session.PartialShiftVar(s.Scop, int(arg(0)), int(arg(1)))
	case "partial_shift_param":
		return session.PartialShiftParam(s.Scop, int(arg(0)), arg(1), int(arg(2)))
	case "full_shift_val":
		return session.FullShiftVal(s.Scop, arg(0))
	case "full_shift_var":
		return session.FullShiftVar(s.Scop, int(arg(0)))
	case "full_shift_param":
		return session.FullShiftParam(s.Scop, arg(0), int(arg(1)))
	case "set_parallel":
		return session.SetParallel(s.Scop)
	case "set_loop_opt":
		return session.SetLoopOpt(s.Scop, int(arg(0)), tree.LoopType(arg(1)))
	case "rollback":
		return true, session.Rollback(s.Scop)
	default:
		return false, fmt.Errorf("unknown operation %q", s.Op)
	}
}

func init() {
	applyCmd.Flags().StringP("output", "o", "out.c", "output file")
	rootCmd.AddCommand(applyCmd)
}
