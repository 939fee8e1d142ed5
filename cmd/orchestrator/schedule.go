package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowforge/orchestrator/internal/config"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/scheduler"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <dag-file>",
		Short: "Validate a DAG document and schedule a run",
		Args:  cobra.ExactArgs(1),
		// Bound when the command runs rather than when it is built: the
		// worker command binds the same global viper keys to its own flags
		// at construction, and the most recent binding is the one viper reads.
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd, []string{logFormatFlag.name, redisFlag.name, debugFlag.name})
		},
		RunE: runSchedule,
	}
	initFlags(cmd, []commandLineFlag{logFormatFlag, redisFlag})
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	l := buildLogger(cfg)
	ctx := logger.WithContext(cmd.Context(), l)

	dag, err := loadDAGFile(args[0])
	if err != nil {
		return err
	}

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	s := scheduler.New(backend)
	if err := s.ScheduleDAG(ctx, dag, runID); err != nil {
		return fmt.Errorf("scheduling dag %s: %w", dag.ID, err)
	}

	fmt.Printf("scheduled run %s for dag %s\n", runID, dag.ID)
	return nil
}
