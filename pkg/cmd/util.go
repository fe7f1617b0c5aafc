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

	"github.com/spf13/cobra"
)

// Exit codes of the command-line surface.
const (
	codeFrontendFailure = 1
	codeOutputFailure   = 2
)

// getFlag gets an expected flag, or panics if it doesn't exist.
func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		panic(fmt.Sprintf("unknown flag: %s", flag))
	}
	//
	return r
}

// getInt gets an expected int flag, or panics if it doesn't exist.
func getInt(cmd *cobra.Command, flag string) int {
	r, err := cmd.Flags().GetInt(flag)
	if err != nil {
		panic(fmt.Sprintf("unknown flag: %s", flag))
	}
	//
	return r
}

// getString gets an expected string flag, or panics if it doesn't exist.
func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		panic(fmt.Sprintf("unknown flag: %s", flag))
	}
	//
	return r
}

// fail reports an error and exits with the given code.
func fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(code)
}
