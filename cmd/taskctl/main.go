// Package main implements taskctl, a CLI client for the TaskIndex server.
// It talks to the HTTP API; run the server first (cmd/server).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

var (
	serverAddr string
	apiKey     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskctl",
		Short: "CLI client for the TaskIndex priority store",
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8081", "TaskIndex server address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("API_KEY"), "API key (defaults to $API_KEY)")

	rootCmd.AddCommand(
		addCmd(),
		getCmd(),
		listCmd(),
		rangeCmd(),
		rmCmd(),
		statsCmd(),
		scheduleCmd(),
		resetCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// request performs an API call and decodes the response body into out when
// out is non-nil. Non-2xx responses are returned as errors carrying the
// server's message.
func request(method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverAddr+path, payload)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(raw))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	fmt.Print(string(raw))
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func printTask(t tasks.Task) {
	assigned := t.AssignedTo
	if assigned == "" {
		assigned = "-"
	}
	fmt.Printf("%6d  %-12s  %-10s  %s\n", t.Priority, t.Status, assigned, t.Description)
}

// addCmd implements 'taskctl add'.
func addCmd() *cobra.Command {
	var assignedTo string
	cmd := &cobra.Command{
		Use:   "add <priority> <description>",
		Short: "Submit a task",
		Args:  cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			p, err := strconv.Atoi(args[0])
			if err != nil {
				fail(fmt.Errorf("priority must be an integer: %w", err))
			}
			body := map[string]any{
				"priority":    p,
				"description": args[1],
				"assigned_to": assignedTo,
			}
			var created tasks.Task
			if err := request(http.MethodPost, "/tasks", body, &created); err != nil {
				fail(err)
			}
			fmt.Printf("Created task %s\n", created.ID)
			printTask(created)
		},
	}
	cmd.Flags().StringVarP(&assignedTo, "assign", "a", "", "Assignee for the task")
	return cmd
}

// getCmd implements 'taskctl get'.
func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <priority>",
		Short: "Look up the task stored at a priority",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var t tasks.Task
			if err := request(http.MethodGet, "/tasks?priority="+args[0], nil, &t); err != nil {
				fail(err)
			}
			printTask(t)
		},
	}
}

// listCmd implements 'taskctl list'.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks in ascending priority order",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			var ts []tasks.Task
			if err := request(http.MethodGet, "/tasks/all", nil, &ts); err != nil {
				fail(err)
			}
			for _, t := range ts {
				printTask(t)
			}
			fmt.Printf("%d task(s)\n", len(ts))
		},
	}
}

// rangeCmd implements 'taskctl range'.
func rangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <min> <max>",
		Short: "List tasks with priority in [min, max]",
		Args:  cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			var ts []tasks.Task
			path := fmt.Sprintf("/tasks/range?min=%s&max=%s", args[0], args[1])
			if err := request(http.MethodGet, path, nil, &ts); err != nil {
				fail(err)
			}
			for _, t := range ts {
				printTask(t)
			}
			fmt.Printf("%d task(s)\n", len(ts))
		},
	}
}

// rmCmd implements 'taskctl rm'.
func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <priority>",
		Short: "Remove the task stored at a priority",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := request(http.MethodDelete, "/tasks?priority="+args[0], nil, nil); err != nil {
				fail(err)
			}
		},
	}
}

// statsCmd implements 'taskctl stats'.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			var s index.Stats
			if err := request(http.MethodGet, "/stats", nil, &s); err != nil {
				fail(err)
			}
			fmt.Printf("Tasks:    %d\n", s.Count)
			fmt.Printf("Height:   %d\n", s.Height)
			fmt.Printf("Balanced: %v\n", s.Balanced)
			if s.HasTasks {
				fmt.Printf("Min/Max:  %d / %d\n", s.MinPriority, s.MaxPriority)
			}
		},
	}
}

// scheduleCmd implements 'taskctl schedule'.
func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <cron-spec> <priority> <description>",
		Short: "Register a recurring task (e.g. '@every 1m')",
		Args:  cobra.ExactArgs(3),
		Run: func(_ *cobra.Command, args []string) {
			p, err := strconv.Atoi(args[1])
			if err != nil {
				fail(fmt.Errorf("priority must be an integer: %w", err))
			}
			body := map[string]any{
				"spec":        args[0],
				"priority":    p,
				"description": args[2],
			}
			if err := request(http.MethodPost, "/schedule", body, nil); err != nil {
				fail(err)
			}
		},
	}
}

// resetCmd implements 'taskctl reset'.
func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every task from the index",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if !yes {
				fail(fmt.Errorf("refusing to reset without --yes"))
			}
			if err := request(http.MethodPost, "/reset", nil, nil); err != nil {
				fail(err)
			}
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
