package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deixis/hybridexec/internal/config"
	worker "github.com/deixis/hybridexec/internal/mcp"
)

func newInspectCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect <record-id>",
		Short: "Show the attempts recorded for a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determining workspace: %w", err)
			}
			loaded, err := config.Load(workspace)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			record, err := openStore(loaded).Load(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			}
			fmt.Fprint(cmd.OutOrStdout(), worker.FormatRecord(record))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the record as JSON")
	return cmd
}
