package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories and world state as JSON",
		Long:  "Export every memory and the full world timeline. Embeddings are omitted; import re-embeds.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	e := mustOpen()
	defer e.Close()

	doc, err := e.Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd.OutOrStdout(), doc)
}
