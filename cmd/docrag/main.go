// Package main implements the docrag CLI: the offline ingest stages and
// terminal clients for a running docragd server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/tui"
	"github.com/fyrsmithlabs/docrag/pkg/client"
)

var (
	// serverURL is the base URL for the docragd HTTP server
	serverURL string
	// configPath overrides the config file lookup
	configPath string
	// dataDir overrides ingest.data_dir
	dataDir string
	// timeout bounds each question
	timeout time.Duration
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Ask questions about a document corpus",
	Long: `docrag builds a vector index from the document dataset and asks
questions against a running docragd server.

Run 'docrag ingest all' once, start docragd, then use 'docrag ask' or
'docrag tui'.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", client.DefaultServerURL, "docragd server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./docrag.yaml or ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for raw.json, cleaned.json and chunks.json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "time limit for one question")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(ingestCmd)
}

// askCmd sends one question to the server
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the server one question",
	Long: `Ask the docragd server one question and print the answer.

Server failures print the same messages as the browser client.

Examples:
  docrag ask "Which flights are listed in the logs?"

  # Use a different server
  docrag ask --server http://localhost:9000 "Who is mentioned?"`,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE:          runAsk,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check docragd server health",
	Long: `Check the health status of the docragd HTTP server.

Examples:
  docrag health
  docrag health --server http://localhost:9000`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

// tuiCmd starts the interactive terminal client
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal client",
	Long: `Open a single page terminal client. Type a question and press enter;
the newest question and answer replace the previous pair.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(client.New(serverURL, client.WithTimeout(timeout)), serverURL, timeout)
	},
}

// runAsk handles the ask command
func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c := client.New(serverURL, client.WithTimeout(timeout))
	answer, err := c.Ask(ctx, args[0])
	fmt.Fprintln(cmd.OutOrStdout(), client.Message(answer, err))
	return err
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := client.New(serverURL, client.WithTimeout(10*time.Second)).Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", h.Status)
	fmt.Fprintf(out, "Ollama: %s\n", h.OllamaURL)
	fmt.Fprintf(out, "Model:  %s\n", h.Model)
	return nil
}
