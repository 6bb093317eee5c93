// ./main.go
package main

import (
	"github.com/Firstp1ck/android-agent/cmd"
)

// main is the entry point for the android-agent CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
