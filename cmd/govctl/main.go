// Package main implements the govctl CLI for manual operations against
// the governd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the governd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "govctl",
	Short: "CLI for governd HTTP server operations",
	Long: `govctl is a command-line interface for interacting with the governd
HTTP server. It submits intents for evaluation, inspects tasks and drives
their lifecycle transitions.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9614", "governd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	tasksCmd.AddCommand(tasksTransitionCmd)
	rootCmd.AddCommand(metricsCmd)
	tasksCmd.Flags().String("state", "", "filter tasks by lifecycle state")
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check governd server health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		body, err := httpGet("/health")
		if err != nil {
			return err
		}
		cmd.Println(string(body))
		return nil
	},
}

// evaluateCmd submits an intent JSON document for evaluation
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Evaluate an intent from a JSON file or stdin",
	Long: `Submit an intent document for a verdict without creating a task.

Examples:
  # Evaluate an intent file
  govctl evaluate intent.json

  # Evaluate from stdin
  echo '{"agent_id":"a1","role":"implementer","action":{"type":"edit_file","path":"main.go"}}' | govctl evaluate -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readInput(args)
		if err != nil {
			return err
		}
		body, err := httpPost("/api/v1/intents/evaluate", payload)
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

// tasksCmd lists tasks
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := "/api/v1/tasks"
		if state, _ := cmd.Flags().GetString("state"); state != "" {
			path += "?state=" + state
		}
		body, err := httpGet(path)
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

// tasksGetCmd fetches one task
var tasksGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := httpGet("/api/v1/tasks/" + args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

// tasksTransitionCmd requests a task state change
var tasksTransitionCmd = &cobra.Command{
	Use:   "transition <task-id> <state>",
	Short: "Request a task state change",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := json.Marshal(map[string]string{"to": args[1]})
		if err != nil {
			return err
		}
		body, err := httpPost("/api/v1/tasks/"+args[0]+"/transition", payload)
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

// metricsCmd shows decision counters
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show decision counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		body, err := httpGet("/api/v1/metrics")
		if err != nil {
			return err
		}
		return printJSON(cmd, body)
	},
}

func client() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func httpGet(path string) ([]byte, error) {
	resp, err := client().Get(serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func httpPost(path string, payload []byte) ([]byte, error) {
	resp, err := client().Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, string(body))
	}
	return body, nil
}

// readInput reads the named file, or stdin when the argument is "-" or
// absent.
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func printJSON(cmd *cobra.Command, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		cmd.Println(string(body))
		return nil
	}
	cmd.Println(buf.String())
	return nil
}
