package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeFrom string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start executing the installed graph",
	Long: `Start a run over the installed task graph.

With --resume-from, the named task's closure is reset and re-executed while
completed work outside it is kept.

EXAMPLES:
  wavectl run
  wavectl run --resume-from task-7`,
	RunE: runRun,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Abort the active run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := postJSON("/api/execution/stop", nil, nil); err != nil {
			return err
		}
		fmt.Println("Stop requested")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Requeue a failed task",
	Long: `Requeue a failed task.

On an active run the task is retried in place. On an idle daemon a new run
starts, resumed from the task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"taskId": args[0]}
		if err := postJSON("/api/execution/retry-task", body, nil); err != nil {
			return err
		}
		fmt.Printf("Retry requested for %s\n", args[0])
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "task id to resume the run from")
}

func runRun(cmd *cobra.Command, args []string) error {
	body := map[string]string{}
	if resumeFrom != "" {
		body["resumeFromTaskId"] = resumeFrom
	}
	if err := postJSON("/api/execution/run", body, nil); err != nil {
		return err
	}
	fmt.Println("Run started")
	return nil
}
