package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/lore-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories and world state from JSON",
		Long:  "Import JSON (stdin or --file) in the format produced by export. Records already present are skipped.",
		Run:   runImport,
	}

	cmd.Flags().String("file", "", "Read from file instead of stdin")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var doc store.Export
	if err := json.Unmarshal(data, &doc); err != nil {
		exitErr("parse json", err)
	}

	e := mustOpen()
	defer e.Close()

	res, err := e.Import(cmd.Context(), &doc)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(cmd.OutOrStdout(), res)
}
