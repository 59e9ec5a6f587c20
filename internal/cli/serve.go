package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ppiankov/truthgauge/internal/api"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve exposes the verification pipeline over HTTP:

  POST /api/v1/analyses        JSON {"content": "..."} or {"url": "..."}, or multipart "file"
  GET  /api/v1/analyses        recent analyses (requires store.enabled)
  GET  /api/v1/analyses/:id    one analysis (requires store.enabled)
  GET  /health                 liveness
  GET  /metrics                Prometheus metrics

Example:
  truthgauge serve --addr :8080
  TRUTHGAUGE_STORE_ENABLED=true truthgauge serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default: server.address)")
	addPipelineFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Address = listenAddr
	}
	if !cfg.Output.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg, st)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return err
	}
	defer func() { _ = p.Close() }()

	var srv *api.Server
	if st != nil {
		defer func() { _ = st.Close() }()
		srv = api.NewServer(cfg.Server, p, st)
	} else {
		srv = api.NewServer(cfg.Server, p, nil)
	}

	fmt.Fprintf(os.Stderr, "truthgauge API on %s (model %s/%s, store %v)\n",
		cfg.Server.Address, cfg.LLM.Provider, cfg.LLM.Model, st != nil)

	return srv.Run(ctx)
}
