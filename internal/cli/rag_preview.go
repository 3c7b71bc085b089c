// internal/cli/rag_preview.go
package sage

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mwiater/sage/internal/console"
	"github.com/mwiater/sage/internal/prompt"
	"github.com/mwiater/sage/internal/rag"
	"github.com/mwiater/sage/internal/util"
)

// ragPreviewCmd shows which passages a query retrieves and the prompt they produce.
var ragPreviewCmd = &cobra.Command{
	Use:   "preview <query>",
	Short: "Preview retrieval and prompt assembly for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		cfg := getConfig()
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}

		ctx := commandContext(cmd)
		a, err := bootstrapRetrieval(ctx, cfg, console.New(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Retriever.Retrieve(ctx, query)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderPreview(query, results))
		return nil
	},
}

func init() {
	ragCmd.AddCommand(ragPreviewCmd)
}

func renderPreview(query string, results []rag.ScoredPassage) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	metaStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	passageStyle := lipgloss.NewStyle().PaddingLeft(2)

	var b strings.Builder
	b.WriteString(headerStyle.Render("[RAG] Query: " + util.SingleLine(query)))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("[RAG] Passages: %d", len(results))))
	b.WriteString("\n\n")

	for i, r := range results {
		b.WriteString(metaStyle.Render(fmt.Sprintf("#%d score=%.6f position=%d id=%s", i+1, r.Score, r.Position, r.ID)))
		b.WriteString("\n")
		b.WriteString(passageStyle.Render(r.Text))
		b.WriteString("\n\n")
	}

	b.WriteString(headerStyle.Render("[RAG] Prompt:"))
	b.WriteString("\n")
	b.WriteString(prompt.Assemble(rag.JoinPassages(results), query))
	return b.String()
}
