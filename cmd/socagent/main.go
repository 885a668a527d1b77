// Command socagent runs one SOC investigation session: it connects to the
// tool server, hands the discovered tools to the reasoning model and prints
// the resulting threat assessment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"

	"github.com/therealnoof/mcp-server-lab/agent"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/mcp/transport/sse"
	"github.com/therealnoof/mcp-server-lab/pkg/llmfactory"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
	"github.com/therealnoof/mcp-server-lab/pkg/llms/ollama"
)

const version = "0.1.0"

// DefaultQuery is the investigation request used when none is given.
const DefaultQuery = "Please review our recent security alerts and investigate any " +
	"suspicious IP addresses. I need a threat assessment report with your " +
	"recommended actions."

var (
	agentServerURL     string
	agentConfigFile    string
	agentOllamaURL     string
	agentModel         string
	agentMaxIterations int
	agentTimeout       time.Duration
	agentDebug         bool
)

var rootCmd = &cobra.Command{
	Use:     "socagent [query]",
	Short:   "SOC analyst agent that investigates alerts using the SOC tool server",
	Args:    cobra.ArbitraryArgs,
	Version: version,
	RunE:    runInvestigation,
}

func init() {
	rootCmd.Flags().StringVarP(&agentServerURL, "server", "s", "http://localhost:8000/sse", "SSE URL of the SOC tool server")
	rootCmd.Flags().StringVarP(&agentConfigFile, "config", "c", "", "LLM provider config file (YAML)")
	rootCmd.Flags().StringVar(&agentOllamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL (used without --config)")
	rootCmd.Flags().StringVarP(&agentModel, "model", "m", "llama3.1:8b", "Model name")
	rootCmd.Flags().IntVarP(&agentMaxIterations, "max-iterations", "i", agent.DefaultMaxIterations, "Maximum reasoning iterations")
	rootCmd.Flags().DurationVar(&agentTimeout, "timeout", 5*time.Minute, "Overall investigation timeout")
	rootCmd.Flags().BoolVar(&agentDebug, "debug", false, "Debug logging")
}

func buildModel() (llms.Model, error) {
	if agentConfigFile != "" {
		f, err := llmfactory.Load(agentConfigFile)
		if err != nil {
			return nil, err
		}
		if agentModel != "" {
			return f.ModelByName(agentModel)
		}
		return f.DefaultModel()
	}
	return ollama.New(
		ollama.WithModel(agentModel),
		ollama.WithBaseURL(agentOllamaURL),
	), nil
}

func runInvestigation(_ *cobra.Command, args []string) error {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if agentDebug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}

	query := DefaultQuery
	if len(args) > 0 {
		query = strings.Join(args, " ")
	}

	model, err := buildModel()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, agentTimeout)
	defer cancel()

	client := mcp.NewClient(sse.NewClientTransport(agentServerURL))
	if _, err := client.Initialize(ctx); err != nil {
		return err
	}
	defer client.Close()

	analyst, err := agent.NewAnalyst(model, client,
		agent.WithModel(agentModel),
		agent.WithMaxIterations(agentMaxIterations),
		agent.WithCallback(agent.NewPrinterCallback(os.Stdout)),
	)
	if err != nil {
		return err
	}

	printSection("SOC AGENT INVESTIGATION")
	result, err := analyst.Run(ctx, query)
	if err != nil {
		return err
	}

	printSection("THREAT ASSESSMENT REPORT")
	fmt.Println(result.Content)
	fmt.Printf("\n(%s after %d iterations, %d tool calls)\n",
		result.Outcome, result.Iterations, result.ToolCalls)
	return nil
}

func printSection(title string) {
	fmt.Printf("\n%s\n  %s\n%s\n", strings.Repeat("=", 60), title, strings.Repeat("=", 60))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
