// ./main.go
package main

import (
	"github.com/RosendoLopez2014/PromptPilot/cmd"
)

// main is the entry point for the PromptPilot application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
