package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/server"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}
		if len(args) == 0 {
			var jobs []server.Job
			if err := getJSON(client, serverURL+"/api/v1/jobs", &jobs); err != nil {
				return err
			}
			printJobList(cmd.OutOrStdout(), jobs)
			return nil
		}
		var job server.Job
		if err := getJSON(client, fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, args[0]), &job); err != nil {
			return err
		}
		printJob(cmd.OutOrStdout(), &job, time.Now())
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Post(fmt.Sprintf("%s/api/v1/jobs/%s/cancel", serverURL, args[0]), "application/json", nil)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %s: %s", resp.Status, body)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for job %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, cancelCmd} {
		c.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
		rootCmd.AddCommand(c)
	}
}

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJobList(w io.Writer, jobs []server.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return
	}
	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Method: %s (%d dims)\n", job.Config.Method, job.Config.Dimensions)
		fmt.Fprintf(w, "  Cost: %s -> %s\n", formatCost(job.InitialCost), formatCost(job.Cost))
		fmt.Fprintln(w)
	}
}

func printJob(w io.Writer, job *server.Job, now time.Time) {
	fmt.Fprintf(w, "Job ID:       %s\n", job.ID)
	fmt.Fprintf(w, "State:        %s\n", job.State)
	fmt.Fprintf(w, "Target:       %s\n", job.Config.TargetPath)
	fmt.Fprintf(w, "Method:       %s\n", job.Config.Method)
	fmt.Fprintf(w, "Dimensions:   %d\n", job.Config.Dimensions)
	fmt.Fprintf(w, "Loop:         %d / %d\n", job.Loop, job.Config.MaxLoops)
	fmt.Fprintf(w, "Renders:      %d\n", job.Renders)
	fmt.Fprintf(w, "Initial cost: %s\n", formatCost(job.InitialCost))
	fmt.Fprintf(w, "Cost:         %s\n", formatCost(job.Cost))

	end := now
	if job.EndTime != nil {
		end = *job.EndTime
	}
	fmt.Fprintf(w, "Elapsed:      %s\n", end.Sub(job.StartTime).Round(time.Second))
	if job.Error != "" {
		fmt.Fprintf(w, "Error:        %s\n", job.Error)
	}
}

// formatCost prints "n/a" for unknown or infinite costs
func formatCost(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", *c)
}
