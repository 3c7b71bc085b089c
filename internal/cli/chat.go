// internal/cli/chat.go
package sage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/console"
	"github.com/mwiater/sage/internal/tui"
)

var runTUI = tui.Run

// chatCmd represents the 'chat' command.
var chatCmd = &cobra.Command{
	Use:         "chat",
	Short:       "Start the terminal chat UI",
	Long:        `The 'chat' command starts the same question and answer screen as the browser UI inside the terminal.`,
	Annotations: map[string]string{quietAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}

		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, cfg, console.New(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		defer a.Close()

		return runTUI(ctx, a.Pipeline, tui.Info{
			Model:    cfg.ModelName(),
			Backend:  cfg.StoreBackend(),
			Passages: a.Store.Len(),
			TopK:     a.Retriever.K(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
