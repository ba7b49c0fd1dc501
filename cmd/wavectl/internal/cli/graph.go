package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var graphPlanID string

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Install a task graph from a JSON file",
	Long: `Install a task graph on the daemon for the next run.

The file holds a JSON object with "tasks" and "layout" fields, matching the
POST /api/execution/graph request body.

EXAMPLES:
  wavectl graph plan.json
  wavectl graph plan.json --plan-id release-42`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphPlanID, "plan-id", "", "plan id to assign (generated when empty)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var req map[string]any
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if graphPlanID != "" {
		req["planId"] = graphPlanID
	}

	var resp struct {
		PlanID string `json:"planId"`
		Tasks  int    `json:"tasks"`
	}
	if err := postJSON("/api/execution/graph", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Installed plan %s with %d task(s)\n", resp.PlanID, resp.Tasks)
	return nil
}
