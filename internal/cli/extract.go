package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract memories from one conversational turn",
		Long:  "Classify a user message and model response into typed memories and world-state changes, skipping near-duplicates. Problems are reported as warnings.",
		Run:   runExtract,
	}

	cmd.Flags().StringP("user", "u", "", "User message")
	cmd.Flags().StringP("response", "r", "", "Model response")
	cmd.Flags().StringP("session", "s", "", "Session id; when set the turn is also logged")

	RootCmd.AddCommand(cmd)
}

func runExtract(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	response, _ := cmd.Flags().GetString("response")
	session, _ := cmd.Flags().GetString("session")

	if user == "" && response == "" {
		response = readContent(args)
	}
	if user == "" && response == "" {
		exitErr("extract", fmt.Errorf("--user or --response (or stdin) is required"))
	}

	e := mustOpen()
	defer e.Close()

	res := e.Extract(cmd.Context(), user, response)
	if session != "" {
		if _, err := e.RecordTurn(cmd.Context(), session, user, response, nil); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("record turn: %v", err))
		}
	}
	printJSON(cmd.OutOrStdout(), res)
}
