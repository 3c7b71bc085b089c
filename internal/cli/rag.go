package sage

import "github.com/spf13/cobra"

// ragCmd groups retrieval diagnostics.
var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "RAG utilities",
}

func init() {
	rootCmd.AddCommand(ragCmd)
}
