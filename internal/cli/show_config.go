// internal/cli/show_config.go
package sage

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/appconfig"
)

// showConfigCmd prints the merged configuration and the effective defaults.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the JSON config is loaded properly and overridden by environment variables and flags accordingly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
}

func printConfig(w io.Writer, cfg *appconfig.Config) error {
	if cfg.ConfigPath == "" {
		fmt.Fprintln(w, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(w, "Config file: %s\n\n", cfg.ConfigPath)
	}

	fmt.Fprintln(w, "Current configuration:")
	if _, err := pp.Fprintln(w, cfg); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nEffective settings:")
	fmt.Fprintf(w, "  Model:          %s (%s at %s)\n", cfg.ModelName(), cfg.ModelType(), cfg.ModelURL())
	fmt.Fprintf(w, "  Managed server: %v\n", cfg.Model.Managed)
	fmt.Fprintf(w, "  Context size:   %d\n", cfg.ContextSize())
	fmt.Fprintf(w, "  GPU layers:     %d\n", cfg.GPULayers())
	fmt.Fprintf(w, "  Embedding:      %s\n", cfg.EmbeddingType())
	fmt.Fprintf(w, "  Store:          %s\n", cfg.StoreBackend())
	fmt.Fprintf(w, "  Corpus:         %s\n", cfg.CorpusPath())
	fmt.Fprintf(w, "  Top K:          %d\n", cfg.TopK())
	fmt.Fprintf(w, "  Listen:         %s\n", cfg.ListenAddr())
	fmt.Fprintf(w, "  Timeout:        %s\n", cfg.RequestTimeout())
	fmt.Fprintf(w, "  Log file:       %s\n", cfg.LogFilePath())
	fmt.Fprintf(w, "  Metrics:        %v (%s)\n", cfg.Metrics, cfg.MetricsFilePath())
	return nil
}
