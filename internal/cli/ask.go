// internal/cli/ask.go
package sage

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/console"
)

// askCmd answers one question and exits.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question from the command line",
	Long:  `The 'ask' command runs the same retrieval and generation as the chat UI for one question, prints the answer and exits. Startup progress goes to stderr.`,
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}

		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, cfg, console.New(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Pipeline.Answer(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Display())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
