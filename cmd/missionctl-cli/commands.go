package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "missionctl-cli",
	Short: "Client for the Mission Control server",
	Long: `Client for the Mission Control server.

Records activities, scheduled tasks, indexed content and cron health
batches, typically invoked from cron jobs and shell hooks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server base URL (default $MISSIONCTL_URL or http://127.0.0.1:8080)")
	indexContentCmd.Flags().String("file", "", "Read content from a file instead of stdin")

	rootCmd.AddCommand(logActivityCmd)
	rootCmd.AddCommand(registerTaskCmd)
	rootCmd.AddCommand(indexContentCmd)
	rootCmd.AddCommand(ingestHealthCmd)
}

var logActivityCmd = &cobra.Command{
	Use:   "log-activity <type> <description> [detailsJSON] [channel] [status] [durationMs] [tokenCount]",
	Short: "Record one activity in the feed",
	Args:  cobra.RangeArgs(2, 7),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"type":        args[0],
			"description": args[1],
			"channel":     "system",
			"status":      "success",
		}

		if len(args) > 2 && args[2] != "" {
			var details map[string]any
			if err := json.Unmarshal([]byte(args[2]), &details); err != nil {
				return fmt.Errorf("invalid details JSON: %w", err)
			}
			req["details"] = details
		}
		if len(args) > 3 && args[3] != "" {
			req["channel"] = args[3]
		}
		if len(args) > 4 && args[4] != "" {
			req["status"] = args[4]
		}
		if len(args) > 5 && args[5] != "" {
			durationMs, err := strconv.ParseInt(args[5], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid durationMs: %w", err)
			}
			req["duration_ms"] = durationMs
		}
		if len(args) > 6 && args[6] != "" {
			tokenCount, err := strconv.ParseInt(args[6], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tokenCount: %w", err)
			}
			req["token_count"] = tokenCount
		}

		resp, err := newAPIClient().post(http.MethodPost, "/api/activities", req)
		if err != nil {
			return fmt.Errorf("failed to log activity: %w", err)
		}

		fmt.Println("Logged:", resp["id"])
		return nil
	},
}

var registerTaskCmd = &cobra.Command{
	Use:   "register-task <name> <description> <cron|every> <value> [nextRunAtMillis] [channel] [model]",
	Short: "Create or replace a scheduled task",
	Long: `Create or replace a scheduled task by name.

The schedule is either a cron expression ("cron" kind) or a fixed interval
in milliseconds ("every" kind). When nextRunAtMillis is omitted the server
computes it from the schedule.`,
	Args: cobra.RangeArgs(4, 7),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		kind := args[2]
		value := args[3]

		var scheduleSpec map[string]any
		switch kind {
		case "cron":
			scheduleSpec = map[string]any{"kind": "cron", "expr": value}
		case "every", "everyMs":
			everyMs, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interval milliseconds: %w", err)
			}
			scheduleSpec = map[string]any{"kind": "every", "every_ms": everyMs}
		default:
			return fmt.Errorf("schedule kind must be \"cron\" or \"every\", got %q", kind)
		}

		req := map[string]any{
			"name":        name,
			"description": args[1],
			"schedule":    scheduleSpec,
			"enabled":     true,
			"channel":     "system",
		}

		if len(args) > 4 && args[4] != "" {
			nextRunAt, err := strconv.ParseInt(args[4], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid nextRunAtMillis: %w", err)
			}
			req["next_run_at"] = nextRunAt
		}
		if len(args) > 5 && args[5] != "" {
			req["channel"] = args[5]
		}
		if len(args) > 6 && args[6] != "" {
			req["model"] = args[6]
		}

		resp, err := newAPIClient().post(http.MethodPost, "/api/tasks", req)
		if err != nil {
			return fmt.Errorf("failed to register task: %w", err)
		}

		fmt.Printf("Task registered: %s (next run %v)\n", name, resp["next_run_at"])
		return nil
	},
}

var indexContentCmd = &cobra.Command{
	Use:   "index-content <contentType> <sourcePath> [title]",
	Short: "Add content to the search index (content read from stdin or --file)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var content []byte
		var err error
		if file != "" {
			content, err = os.ReadFile(file)
		} else {
			content, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		req := map[string]any{
			"content":      string(content),
			"content_type": args[0],
			"source_path":  args[1],
		}
		if len(args) > 2 {
			req["title"] = args[2]
		}

		resp, err := newAPIClient().post(http.MethodPost, "/api/index", req)
		if err != nil {
			return fmt.Errorf("failed to index content: %w", err)
		}

		fmt.Println("Indexed:", resp["id"])
		return nil
	},
}

var ingestHealthCmd = &cobra.Command{
	Use:   "ingest-health [file]",
	Short: "Ingest a JSON health batch from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var err error
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading batch: %w", err)
		}

		var batch map[string]any
		if err := json.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("invalid batch JSON: %w", err)
		}

		resp, err := newAPIClient().post(http.MethodPost, "/api/health/ingest", batch)
		if err != nil {
			return fmt.Errorf("failed to ingest health data: %w", err)
		}

		fmt.Printf("Ingested %v health rows\n", resp["inserted"])
		return nil
	},
}
