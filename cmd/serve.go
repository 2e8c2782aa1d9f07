package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/plonepack/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolver over HTTP and websockets",
	Long: `Start a resolution server so build tools in other languages can use the
engine.

Endpoints:
  POST /resolve   resolve one request given as JSON
  GET  /ws        resolve many requests over one websocket, answered as they finish
  GET  /healthz   liveness and the configured portal

With the context hook enabled, hosts that enumerate wildcard contexts
themselves arm and expand them through /contexts.

Examples:
  plonepack serve
  plonepack serve --port 9100 --host 0.0.0.0`,
	Aliases: []string{"s"},
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 9000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Extra origin patterns accepted for websocket upgrades")
	AddFlagValidation(serveCmd, "port", ValidatePort)

	bindFlags(serveCmd, map[string]string{
		"port":           "server.port",
		"host":           "server.host",
		"allowed-origin": "server.allowed_origins",
	}, false)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	hook, err := a.cfg.ContextHook()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		PortalURL:      a.cfg.Portal.URL,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		MaxInFlight:    a.cfg.Server.MaxInFlight,
		Hook:           hook,
	}, a.engine, a.logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Resolving against %s on http://%s:%d\n",
		a.cfg.Portal.URL, a.cfg.Server.Host, a.cfg.Server.Port)

	return srv.Start(ctx)
}
