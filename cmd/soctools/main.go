// Command soctools serves the SOC tool catalog over an MCP SSE endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/mcp/transport/sse"
	"github.com/therealnoof/mcp-server-lab/soctools"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab", "soctools-server")

const version = "0.1.0"

var (
	serverPort    int
	serverDebug   bool
	serverSSEPath string
)

var rootCmd = &cobra.Command{
	Use:     "soctools",
	Short:   "SOC tool server: security alerts, IP reputation and geolocation over MCP",
	Version: version,
	RunE:    runServer,
}

func init() {
	rootCmd.Flags().IntVarP(&serverPort, "port", "p", 8000, "Port to listen on")
	rootCmd.Flags().StringVar(&serverSSEPath, "sse-path", "/sse", "Path of the SSE endpoint")
	rootCmd.Flags().BoolVar(&serverDebug, "debug", false, "Debug logging")
}

func runServer(_ *cobra.Command, _ []string) error {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if serverDebug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	handler := sse.NewHandler("/messages", func(t *sse.SSETransport) error {
		srv := mcp.NewServer(t,
			mcp.WithName("soc-tools"),
			mcp.WithVersion(version),
			mcp.WithInstructions("Simulated SOC data sources: recent alerts, IP reputation and IP geolocation."),
		)
		if err := soctools.RegisterAll(srv); err != nil {
			return err
		}
		return srv.Serve()
	})

	mux := http.NewServeMux()
	mux.Handle("GET "+serverSSEPath, http.HandlerFunc(handler.ServeSSE))
	mux.Handle("POST /messages", http.HandlerFunc(handler.ServeMessage))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", serverPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.KV(xlog.INFO, "status", "listening", "addr", httpServer.Addr, "sse", serverSSEPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
