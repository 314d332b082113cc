package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/mux"
	"github.com/grove-run/grove/internal/style"
	"github.com/grove-run/grove/internal/taskops"
)

var taskRepoFlag string

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: GroupTask,
	Short:   "Manage tasks within a project",
	RunE:    requireSubcommand,
}

func init() {
	taskCmd.PersistentFlags().StringVar(&taskRepoFlag, "repo", "", "path inside the target git repository (defaults to cwd)")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskArchiveCmd, taskRecoverCmd, taskMergeCmd, taskSyncCmd, taskResetCmd, taskCleanCmd)
	rootCmd.AddCommand(taskCmd)
}

var (
	taskCreateTarget         string
	taskCreateMux            string
	taskCreateAutolink       []string
	taskCreateCheckGitignore bool
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a task: a new branch, worktree, and task record",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		task, warnings, err := rc.Orch.CreateTask(rc.Repo, rc.ProjectKey, args[0], taskCreateTarget, fsstore.MultiplexerKind(taskCreateMux), taskCreateAutolink, taskCreateCheckGitignore)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			style.PrintWarning("%s", w.String())
		}
		fmt.Printf("created task %s (branch %s, worktree %s)\n", task.ID, task.Branch, task.WorktreePath)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskCreateTarget, "target", "HEAD", "git ref the new branch is created from")
	taskCreateCmd.Flags().StringVar(&taskCreateMux, "mux", "tmux", "session backend: tmux, zellij, or acp")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateAutolink, "autolink", nil, "glob patterns to symlink from the main repo into the worktree")
	taskCreateCmd.Flags().BoolVar(&taskCreateCheckGitignore, "check-gitignore", false, "only autolink paths that are actually gitignored")
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tasks",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		tf, err := fsstore.LoadTasks(rc.Root, rc.ProjectKey)
		if err != nil {
			return err
		}
		t := style.NewTable(
			style.Column{Name: "ID", Width: 24},
			style.Column{Name: "BRANCH", Width: 28},
			style.Column{Name: "STATUS", Width: 10},
			style.Column{Name: "MUX", Width: 8},
		)
		for _, task := range tf.Tasks {
			t.AddRow(task.ID, task.Branch, string(task.Status), string(task.Multiplexer))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a task, removing its worktree but keeping its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		task, err := taskRecord(rc.Root, rc.ProjectKey, args[0])
		if err != nil {
			return err
		}
		sessionName := rc.Orch.Mux.ResolveSessionName(task.SessionName, mux.Kind(task.Multiplexer), rc.ProjectKey, task.ID)
		if _, err := rc.Orch.ArchiveTask(rc.Repo, rc.ProjectKey, args[0], mux.Kind(task.Multiplexer), sessionName); err != nil {
			return err
		}
		fmt.Printf("archived task %s\n", args[0])
		return nil
	},
}

var taskRecoverCmd = &cobra.Command{
	Use:   "recover <id>",
	Short: "Recover an archived task, recreating its worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		task, err := rc.Orch.RecoverTask(rc.Repo, rc.ProjectKey, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("recovered task %s (worktree %s)\n", task.ID, task.WorktreePath)
		return nil
	},
}

var taskMergeMethod string

var taskMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Merge a task's branch into its target",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		method, err := parseMergeMethod(taskMergeMethod)
		if err != nil {
			return err
		}
		if _, err := rc.Orch.MergeTask(rc.Repo, rc.ProjectKey, args[0], method); err != nil {
			return err
		}
		fmt.Printf("merged task %s into its target\n", args[0])
		return nil
	},
}

func init() {
	taskMergeCmd.Flags().StringVar(&taskMergeMethod, "method", "squash", "merge method: squash or merge_commit")
}

var taskSyncCmd = &cobra.Command{
	Use:   "sync <id>",
	Short: "Rebase a task's worktree onto its target",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		if _, err := rc.Orch.SyncTask(rc.Repo, rc.ProjectKey, args[0]); err != nil {
			return err
		}
		fmt.Printf("synced task %s\n", args[0])
		return nil
	},
}

var taskResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Tear down and recreate a task's worktree from its target",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		task, err := taskRecord(rc.Root, rc.ProjectKey, args[0])
		if err != nil {
			return err
		}
		sessionName := rc.Orch.Mux.ResolveSessionName(task.SessionName, mux.Kind(task.Multiplexer), rc.ProjectKey, task.ID)
		if _, err := rc.Orch.ResetTask(rc.Repo, rc.ProjectKey, args[0], mux.Kind(task.Multiplexer), sessionName); err != nil {
			return err
		}
		fmt.Printf("reset task %s\n", args[0])
		return nil
	},
}

var taskCleanCmd = &cobra.Command{
	Use:   "clean <id>",
	Short: "Permanently delete a task: worktree, branch, data, and record",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		rc, err := resolveRepoContext(taskRepoFlag)
		if err != nil {
			return err
		}
		task, err := taskRecord(rc.Root, rc.ProjectKey, args[0])
		if err != nil {
			return err
		}
		sessionName := rc.Orch.Mux.ResolveSessionName(task.SessionName, mux.Kind(task.Multiplexer), rc.ProjectKey, task.ID)
		if err := rc.Orch.CleanTask(rc.Repo, rc.ProjectKey, args[0], mux.Kind(task.Multiplexer), sessionName); err != nil {
			return err
		}
		fmt.Printf("deleted task %s\n", args[0])
		return nil
	},
}

// parseMergeMethod maps the --method flag to a taskops.MergeMethod.
func parseMergeMethod(s string) (taskops.MergeMethod, error) {
	switch s {
	case "squash":
		return taskops.MergeSquash, nil
	case "merge_commit":
		return taskops.MergeCommitNoFF, nil
	default:
		return "", fatalf("unknown merge method %q (want squash or merge_commit)", s)
	}
}

// taskRecord loads an active task record, used by commands that need the
// stored multiplexer kind/session name before calling into taskops.
func taskRecord(root, projectKey, taskID string) (*fsstore.Task, error) {
	tf, err := fsstore.LoadTasks(root, projectKey)
	if err != nil {
		return nil, err
	}
	task := tf.Find(taskID)
	if task == nil {
		return nil, fatalf("task %q not found", taskID)
	}
	return task, nil
}
