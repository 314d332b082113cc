// Package cmd is Grove's thin CLI layer: cobra commands that parse flags,
// load config, and call into internal/taskops and internal/fsstore,
// rendering results through internal/style. It contains no orchestration
// logic of its own — every multi-step procedure lives in internal/taskops.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grove-run/grove/internal/style"
)

// Command groups, using `cobra.Command.GroupID` so `grove --help`
// buckets related commands.
const GroupTask = "task"

var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Run concurrent coding tasks against a git repo, each in its own worktree",
	Long: `Grove orchestrates concurrent coding tasks against a git repository.

Each task gets its own git worktree, optionally paired with a tmux or
zellij session, or an ACP-based AI agent conversation. Grove tracks file
edits, review comments, and hook-raised alerts per task.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: GroupTask, Title: "Task commands:"})
}

// requireSubcommand is RunE for parent commands that exist only to group
// subcommands and should print help rather than run anything themselves.
func requireSubcommand(c *cobra.Command, _ []string) error {
	return c.Help()
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		style.PrintError("%s", err)
		return 1
	}
	return 0
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
