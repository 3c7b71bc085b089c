// internal/cli/serve.go
package sage

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/app"
	"github.com/mwiater/sage/internal/console"
	"github.com/mwiater/sage/internal/web"
)

// Overridable in tests.
var (
	bootstrap          = app.Bootstrap
	bootstrapRetrieval = app.BootstrapRetrieval
	serveWeb           = func(ctx context.Context, srv *web.Server, onListen func(addr string)) error {
		return srv.ListenAndServe(ctx, onListen)
	}
)

// serveCmd represents the 'serve' command, which is also the default action.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser chat UI",
	Long:  `The 'serve' command loads the model, builds the knowledge store from the corpus and serves the chat UI until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg := getConfig()
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := console.New(cmd.OutOrStdout())
	a, err := bootstrap(ctx, cfg, reporter)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			reporter.Warn("shutdown: %v", err)
		}
	}()

	srv := web.NewServer(cfg.ListenAddr(), a.Pipeline, a.Store.Len())
	reporter.Step("Starting chat UI on %s", cfg.ListenAddr())
	return serveWeb(ctx, srv, func(addr string) {
		reporter.Done("Running on http://%s (Ctrl+C to stop)", addr)
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
