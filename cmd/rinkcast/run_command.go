package main

import (
	"github.com/spf13/cobra"

	"rinkcast/internal/pollrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var stationFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll and reconcile a station until interrupted",
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

			runner := pollrun.New(cfg, id, deps.reconciler.Tick, deps.passLocks, deps.logger)
			return runner.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&stationFlag, "station", "s", "", "Station identifier (A-D)")
	_ = cmd.MarkFlagRequired("station")
	return cmd
}
