package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/pkg/llms"
)

// Callback observes an investigation run.
type Callback interface {
	OnRunStart(ctx context.Context, analyst IAnalyst, query string)
	OnRunEnd(ctx context.Context, analyst IAnalyst, result *Result)
	OnRunError(ctx context.Context, analyst IAnalyst, query string, err error)
	OnIteration(ctx context.Context, analyst IAnalyst, iteration int, maxIterations int)
	OnToolCallStart(ctx context.Context, name string, args string)
	OnToolCallEnd(ctx context.Context, name string, args string, result string)
	OnLLMResponse(ctx context.Context, analyst IAnalyst, resp *llms.ContentResponse)
}

// NoopCallback does nothing.
type NoopCallback struct{}

func NewNoopCallback() *NoopCallback {
	return &NoopCallback{}
}

var _ Callback = (*NoopCallback)(nil)

func (l *NoopCallback) OnRunStart(ctx context.Context, analyst IAnalyst, query string) {}
func (l *NoopCallback) OnRunEnd(ctx context.Context, analyst IAnalyst, result *Result) {}
func (l *NoopCallback) OnRunError(ctx context.Context, analyst IAnalyst, query string, err error) {
}
func (l *NoopCallback) OnIteration(ctx context.Context, analyst IAnalyst, iteration int, maxIterations int) {
}
func (l *NoopCallback) OnToolCallStart(ctx context.Context, name string, args string) {}
func (l *NoopCallback) OnToolCallEnd(ctx context.Context, name string, args string, result string) {
}
func (l *NoopCallback) OnLLMResponse(ctx context.Context, analyst IAnalyst, resp *llms.ContentResponse) {
}

// PrinterCallback is a callback handler that prints to the Writer.
type PrinterCallback struct {
	Out io.Writer
}

func NewPrinterCallback(out io.Writer) *PrinterCallback {
	return &PrinterCallback{Out: out}
}

var _ Callback = (*PrinterCallback)(nil)

func (l *PrinterCallback) OnRunStart(ctx context.Context, analyst IAnalyst, query string) {
	fmt.Fprintf(l.Out, "Analyst Start: %s\n", analyst.Name())
	fmt.Fprintf(l.Out, "Query: %s\n", query)
}

func (l *PrinterCallback) OnRunEnd(ctx context.Context, analyst IAnalyst, result *Result) {
	fmt.Fprintf(l.Out, "Analyst End: %s (%s after %d iterations)\n",
		analyst.Name(), result.Outcome, result.Iterations)
}

func (l *PrinterCallback) OnRunError(ctx context.Context, analyst IAnalyst, query string, err error) {
	fmt.Fprintf(l.Out, "Analyst Error: %s: %s\n", analyst.Name(), err.Error())
}

func (l *PrinterCallback) OnIteration(ctx context.Context, analyst IAnalyst, iteration int, maxIterations int) {
	fmt.Fprintf(l.Out, "[Iteration %d/%d] Querying LLM...\n", iteration, maxIterations)
}

func (l *PrinterCallback) OnToolCallStart(ctx context.Context, name string, args string) {
	fmt.Fprintf(l.Out, "Tool: %s\n", name)
	fmt.Fprintf(l.Out, "Args: %s\n", args)
}

func (l *PrinterCallback) OnToolCallEnd(ctx context.Context, name string, args string, result string) {
	fmt.Fprintf(l.Out, "Result: %s\n", result)
}

func (l *PrinterCallback) OnLLMResponse(ctx context.Context, analyst IAnalyst, resp *llms.ContentResponse) {
}

// PackageLoggerCallback is a callback handler that prints to the logger.
type PackageLoggerCallback struct {
	logger *xlog.PackageLogger
}

func NewPackageLoggerCallback(logger *xlog.PackageLogger) *PackageLoggerCallback {
	return &PackageLoggerCallback{logger: logger}
}

var _ Callback = (*PackageLoggerCallback)(nil)

func (l *PackageLoggerCallback) OnRunStart(ctx context.Context, analyst IAnalyst, query string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_start",
		"analyst", analyst.Name(),
		"query", query,
	)
}

func (l *PackageLoggerCallback) OnRunEnd(ctx context.Context, analyst IAnalyst, result *Result) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_end",
		"analyst", analyst.Name(),
		"outcome", result.Outcome,
		"iterations", result.Iterations,
	)
}

func (l *PackageLoggerCallback) OnRunError(ctx context.Context, analyst IAnalyst, query string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "run_error",
		"analyst", analyst.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLoggerCallback) OnIteration(ctx context.Context, analyst IAnalyst, iteration int, maxIterations int) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "iteration",
		"analyst", analyst.Name(),
		"iteration", iteration,
		"max_iterations", maxIterations,
	)
}

func (l *PackageLoggerCallback) OnToolCallStart(ctx context.Context, name string, args string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_call_start",
		"tool", name,
		"args", args,
	)
}

func (l *PackageLoggerCallback) OnToolCallEnd(ctx context.Context, name string, args string, result string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_call_end",
		"tool", name,
		"result", result,
	)
}

func (l *PackageLoggerCallback) OnLLMResponse(ctx context.Context, analyst IAnalyst, resp *llms.ContentResponse) {
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			l.logger.ContextKV(ctx, xlog.DEBUG, "result", choice.Content)
		}
	}
}
