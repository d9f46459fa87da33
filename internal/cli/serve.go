package cli

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/spirvc/internal/config"
	"github.com/gogpu/spirvc/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compile requests over HTTP",
		Long: `Start an HTTP server that compiles shaders with one shared compiler
context. POST /v1/compile takes {"identity", "stage", "source"} and answers
with the SPIR-V binary; POST /v1/inspect summarizes a posted binary.

Headers are only read from under --include-root, whatever identity a
request claims.`,
		Example: `  spirvc serve --listen 127.0.0.1:8740
  curl --data-binary '{"identity":"a.frag.wgsl","source":"..."}' localhost:8740/v1/compile > a.spv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)

			if a.cfg.IncludeRoot == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				a.cfg.IncludeRoot = wd
			}

			c, err := newCompiler(a, nil, nil)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ln, err := net.Listen("tcp", a.cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.Listen, err)
			}

			srv := server.New(c, server.Options{
				MaxSourceBytes: a.cfg.MaxSourceBytes,
				Logger:         a.log.With(zap.String("component", "server")),
			})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on http://%s (engine %s)\n", ln.Addr(), c.Engine())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return srv.ServeListener(ctx, ln)
		},
	}

	cmd.Flags().String("listen", "", "Listen address (default "+config.DefaultListen+")")
	cmd.Flags().Int64("max-source-bytes", 0, "Largest accepted source or binary")
	cmd.Flags().String("include-root", "", "Directory every #include must stay under (default: working directory)")

	return cmd
}
