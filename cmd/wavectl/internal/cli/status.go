package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current run",
	RunE:  runStatus,
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List stored plans",
	RunE:  runPlans,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status struct {
		Running bool   `json:"running"`
		PlanID  string `json:"planId"`
		Tasks   []struct {
			TaskID string `json:"task_id"`
			Status string `json:"status"`
		} `json:"tasks"`
		Stats struct {
			Total      int `json:"total"`
			Busy       int `json:"busy"`
			Validating int `json:"validating"`
			Idle       int `json:"idle"`
			Failed     int `json:"failed"`
		} `json:"stats"`
	}
	if err := getJSON("/api/execution/status", &status); err != nil {
		return err
	}

	state := "idle"
	if status.Running {
		state = "running"
	}
	fmt.Printf("Daemon: %s\n", state)
	if status.PlanID != "" {
		fmt.Printf("Plan: %s\n", status.PlanID)
	}
	fmt.Printf("Workers: %d total, %d busy, %d validating, %d idle, %d failed\n",
		status.Stats.Total, status.Stats.Busy, status.Stats.Validating,
		status.Stats.Idle, status.Stats.Failed)

	if len(status.Tasks) > 0 {
		fmt.Println("\nTasks:")
		counts := map[string]int{}
		for _, t := range status.Tasks {
			fmt.Printf("  %-24s %s\n", t.TaskID, t.Status)
			counts[t.Status]++
		}
		fmt.Printf("\n%d/%d done\n", counts["done"], len(status.Tasks))
	}
	return nil
}

func runPlans(cmd *cobra.Command, args []string) error {
	var resp struct {
		Plans []struct {
			ID        string `json:"id"`
			Tasks     int    `json:"tasks"`
			CreatedAt string `json:"createdAt"`
		} `json:"plans"`
	}
	if err := getJSON("/api/plans", &resp); err != nil {
		return err
	}

	if len(resp.Plans) == 0 {
		fmt.Println("No plans stored")
		return nil
	}
	for _, p := range resp.Plans {
		fmt.Printf("%-40s %3d task(s)  %s\n", p.ID, p.Tasks, p.CreatedAt)
	}
	return nil
}
