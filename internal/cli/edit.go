package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "edit [id] [content]",
		Short: "Correct a memory's content",
		Long:  "Replace a memory's content and re-embed it. The id and creation time are kept.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEdit,
	}

	RootCmd.AddCommand(cmd)
}

func runEdit(cmd *cobra.Command, args []string) {
	content := readContent(args[1:])
	if content == "" {
		exitErr("edit", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	e := mustOpen()
	defer e.Close()

	mem, err := e.Correct(cmd.Context(), args[0], content)
	if err != nil {
		exitErr("edit", err)
	}
	printJSON(cmd.OutOrStdout(), mem)
}
