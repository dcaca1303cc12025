package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a memory",
		Long:  "Store a memory directly, bypassing extraction. Content can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("type", "t", "", "Type: character, location, item, event, dialogue (required)")
	cmd.Flags().StringP("name", "n", "", "Name of the character, place, or thing")

	cmd.MarkFlagRequired("type")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	typStr, _ := cmd.Flags().GetString("type")
	name, _ := cmd.Flags().GetString("name")

	typ, err := model.ParseType(typStr)
	if err != nil {
		exitErr("put", err)
	}
	content := readContent(args)
	if content == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	e := mustOpen()
	defer e.Close()

	mem, err := e.Store(cmd.Context(), typ, name, content)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(cmd.OutOrStdout(), mem)
}
