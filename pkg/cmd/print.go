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

	"github.com/spf13/cobra"

	"github.com/hikettei/tadashi/pkg/scop"
)

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print [flags] source_file",
	Short: "Dump the schedule trees of a source file.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println(cmd.UsageString())
			fail(codeFrontendFailure, "missing source file")
		}
		//
		only := getInt(cmd, "scop")
		//
		session, err := scop.Load(args[0])
		if err != nil {
			fail(codeFrontendFailure, "%v", err)
		}
		//
		defer session.Close()
		//
		for i := 0; i < session.NumScops(); i++ {
			if only >= 0 && only != i {
				continue
			}
			//
			dump, err := session.PrintScheduleNode(i)
			if err != nil {
				fail(codeFrontendFailure, "%v", err)
			}
			//
			fmt.Printf("### sched[%d] begin ###\n%s### sched[%d] end ###\n", i, dump, i)
		}
	},
}

func init() {
	printCmd.Flags().Int("scop", -1, "print a single scop only")
	rootCmd.AddCommand(printCmd)
}
