package main

import (
	"github.com/hikettei/tadashi/pkg/cmd"
)

func main() {
	cmd.Execute()
}
