package cli

import (
	"github.com/spf13/cobra"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "wavectl",
	Short: "Control a running Wavefront execution daemon",
	Long: `wavectl talks to the Wavefront daemon's HTTP API.

WORKFLOW:
  1. wavectl graph plan.json   (install a task graph)
  2. wavectl run               (start executing it)
  3. wavectl status            (watch progress)
  4. wavectl retry <task-id>   (requeue a failed task)
  5. wavectl stop              (abort the run)

EXAMPLES:
  # Install a graph and run it
  wavectl graph plan.json
  wavectl run

  # Resume a run from a specific task
  wavectl run --resume-from task-7

  # Against a non-default daemon address
  wavectl --server http://build-host:8080 status`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "daemon base URL")
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(plansCmd)
}
