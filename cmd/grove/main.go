// grove is the CLI entrypoint for Grove, a local orchestrator for
// running concurrent coding tasks against a git repo in separate
// worktrees.
package main

import (
	"os"

	"github.com/grove-run/grove/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
