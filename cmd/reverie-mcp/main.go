// reverie-mcp exposes the reverie companion pipeline as an MCP stdio server
// and a small CLI.
//
// Environment variables:
//
//	REVERIE_DB_PATH    SQLite database path (default: ./data/reverie.db)
//	REVERIE_DIARY_DIR  directory of .txt diaries for the lexical tier
//	OPENAI_API_KEY     enables generation, classification and scoring
//	REVERIE_OLLAMA_HOST  local Ollama server for embeddings
//
// Usage:
//
//	go install github.com/goblincore/reverie/cmd/reverie-mcp
//	reverie-mcp            # serve over stdio
//	reverie-mcp index      # chunk diaries into the vector store
//	reverie-mcp turn "привет"
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goblincore/reverie"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	pretty  bool
)

var rootCmd = &cobra.Command{
	Use:   "reverie-mcp",
	Short: "Companion memory pipeline over MCP",
	Long: `reverie-mcp serves the companion pipeline (emotional state, memory
retrieval, conversation context, reply generation) as MCP tools over stdio.

Configuration is read from --config, ./reverie.yaml or
$HOME/.config/reverie/reverie.yaml, then REVERIE_* environment variables.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio (default)",
	RunE:  runServe,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk the diary directory into the vector store",
	RunE:  runIndex,
}

var turnCmd = &cobra.Command{
	Use:   "turn <message>",
	Short: "Run one conversation turn and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTurn,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current emotional state",
	RunE:  runState,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./reverie.yaml)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable logs on stderr")

	rootCmd.AddCommand(serveCmd, indexCmd, turnCmd, stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openCompanion() (*reverie.Companion, error) {
	cfg, err := reverie.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = reverie.NewLogger(cfg.LogLevel, pretty)
	return reverie.Open(cfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := openCompanion()
	if err != nil {
		return fmt.Errorf("reverie init: %w", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := newServer(c)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reverie-mcp: %w", err)
	}
	return nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	c, err := openCompanion()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.IndexDiaries(cmd.Context())
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	stats, err := c.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("stored %d chunks (%d fragments, %d vectors)\n", n, stats.Fragments, stats.Vectors)
	return nil
}

func runTurn(cmd *cobra.Command, args []string) error {
	c, err := openCompanion()
	if err != nil {
		return err
	}
	defer c.Close()

	res := c.HandleTurn(cmd.Context(), strings.Join(args, " "))
	fmt.Println(res.Response)
	if res.Failed {
		return fmt.Errorf("turn failed")
	}
	return nil
}

func runState(cmd *cobra.Command, _ []string) error {
	c, err := openCompanion()
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.State()
	if err != nil {
		return err
	}
	fmt.Println(jsonString(st))
	return nil
}

func newServer(c *reverie.Companion) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "reverie-mcp",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Run one conversation turn: resolve the emotional state, recall memories, and generate a reply.",
	}, chatHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall",
		Description: "Retrieve memory fragments for a query without generating a reply.",
	}, recallHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teach_trigger",
		Description: "Register a trigger phrase that always sets the given emotional state when it appears in a message.",
	}, teachTriggerHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "teach_emotion",
		Description: "Associate a phrase with an emotional state. Near-identical phrases update the existing entry.",
	}, teachEmotionHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "inspect_state",
		Description: "Show the current emotional state.",
	}, inspectStateHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_history",
		Description: "Search the conversation log by keywords. Each match includes its neighbouring messages.",
	}, searchHistoryHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_memory",
		Description: "Load a stored memory fragment by the id a recall returned, with its full text and tags.",
	}, getMemoryHandler(c))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_labels",
		Description: "List the known tone, subtone, flavor or emotion labels with their descriptions.",
	}, listLabelsHandler(c))

	return server
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
