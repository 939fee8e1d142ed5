package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// commandLineFlag mirrors the teacher's cmd/config.go flag descriptor: one
// struct per flag, registered and bound to viper the same way across every
// subcommand instead of repeating StringVar/BoolVar calls.
type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
}

var (
	debugFlag = commandLineFlag{
		name:  "debug",
		usage: "enable debug-level logging",
	}
	logFormatFlag = commandLineFlag{
		name:         "log-format",
		defaultValue: "text",
		usage:        `log output format: "text" or "json"`,
	}
	redisFlag = commandLineFlag{
		name:  "redis-url",
		usage: "redis connection URL; unset uses the in-memory backend",
	}
)

func initFlags(cmd *cobra.Command, flags []commandLineFlag) {
	for _, f := range flags {
		switch f.defaultValue {
		case "":
			cmd.Flags().StringP(f.name, f.shorthand, "", f.usage)
		default:
			cmd.Flags().StringP(f.name, f.shorthand, f.defaultValue, f.usage)
		}
	}
	cmd.Flags().Bool(debugFlag.name, false, debugFlag.usage)
}

func bindFlags(cmd *cobra.Command, names []string) error {
	for _, name := range names {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Distributed workflow orchestrator",
	Long:  "orchestrator <schedule|worker> [flags]",
}

func init() {
	rootCmd.AddCommand(newScheduleCommand())
	rootCmd.AddCommand(newWorkerCommand())
}
