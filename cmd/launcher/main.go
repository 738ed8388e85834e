// "launcher" deploys tokens, burns their excess supply and seeds their AMM pair.
package main

import (
	"os"

	"github.com/fatih/color"

	"token-launcher/cmd/launcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		color.Red("launcher failed: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}
