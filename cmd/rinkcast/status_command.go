package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rinkcast/internal/statestore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show persisted reconciliation state per station",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := statestore.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.All(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No station state recorded")
				return nil
			}

			headers := []string{"Station", "Event Key", "Broadcast", "Process Started", "Updated"}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					string(rec.Station),
					string(rec.EventKey),
					rec.BroadcastID,
					formatOptionalTime(rec.ProcessStartedAt),
					rec.UpdatedAt.UTC().Format(time.RFC3339),
				})
			}

			if isTerminal(out) {
				fmt.Fprintln(out, renderTable(headers, rows))
			} else {
				fmt.Fprintln(out, renderPlain(headers, rows))
			}
			return nil
		},
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
