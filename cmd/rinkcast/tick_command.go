package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rinkcast/internal/logging"
	"rinkcast/internal/services"
)

func newTickCommand(ctx *commandContext) *cobra.Command {
	var stationFlag string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one reconciliation pass for a station",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStationFlag(stationFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			deps, err := buildRuntime(cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			cmdCtx := services.WithTickID(cmd.Context(), uuid.NewString())

			acquired, err := deps.passLocks.TryAcquire(id)
			if err != nil {
				return err
			}
			if !acquired {
				return fmt.Errorf("another pass for station %s is in flight", id)
			}
			defer func() {
				if err := deps.passLocks.Release(id); err != nil {
					deps.logger.Warn("pass lock release failed", logging.Error(err))
				}
			}()

			result, err := deps.reconciler.Tick(cmdCtx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&stationFlag, "station", "s", "", "Station identifier (A-D)")
	_ = cmd.MarkFlagRequired("station")
	return cmd
}
