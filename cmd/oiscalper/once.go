package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and print the decision as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			rec, err := pl.poller.Cycle(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encoding record: %w", err)
			}
			return nil
		},
	}
}
