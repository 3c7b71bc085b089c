// internal/cli/eval.go
package sage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/accuracy"
	"github.com/mwiater/sage/internal/console"
)

var evalResultsPath string

// evalCmd scores the answering pipeline against a suite of known questions.
var evalCmd = &cobra.Command{
	Use:   "eval [suite.json]",
	Short: "Score answers against a suite of questions with expected terms",
	Long: `The 'eval' command answers each question in a JSON suite with the full retrieval and generation pipeline,
checks every answer for the expected terms and appends one JSON line per question to a results file.
Questions with no expected terms must be declined with "分かりません".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}

		suite, err := accuracy.LoadPromptSuite(args[0])
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		a, err := bootstrap(ctx, cfg, console.New(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()

		resultsPath := evalResultsPath
		if resultsPath == "" {
			resultsPath = accuracy.ResultsPathFor(cfg.ModelName())
		}

		_, summary, err := accuracy.Run(ctx, a.Pipeline, suite, accuracy.Options{
			Model:       cfg.ModelName(),
			ResultsPath: resultsPath,
			Progress:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Accuracy: %d/%d (%.1f%%)\n", summary.Correct, summary.Total, summary.Accuracy*100)
		fmt.Fprintf(out, "Errors:   %d\n", summary.Errors)
		fmt.Fprintf(out, "Mean:     %.0fms\n", summary.MeanElapsedMs)
		fmt.Fprintf(out, "Results:  %s\n", resultsPath)
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalResultsPath, "results", "", "JSONL file results are appended to (default reports/data/accuracy/<model>.jsonl)")
	rootCmd.AddCommand(evalCmd)
}
