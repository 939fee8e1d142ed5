package main

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowforge/orchestrator/internal/config"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/worker"
)

func newWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run worker processes that execute queued tasks",
		Args:  cobra.NoArgs,
		RunE:  runWorker,
	}
	initFlags(cmd, []commandLineFlag{logFormatFlag, redisFlag})
	cmd.Flags().Int(config.KeyPoolSize, 4, "number of concurrent worker loops")
	cmd.Flags().Duration(config.KeyPopTimeout, 0, "how long each queue pop blocks before the loop re-checks for shutdown (default 5s)")
	if err := bindFlags(cmd, []string{logFormatFlag.name, redisFlag.name, debugFlag.name, config.KeyPoolSize, config.KeyPopTimeout}); err != nil {
		panic(err)
	}
	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	l := buildLogger(cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, l)

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := worker.New(backend, worker.DefaultExecutor, cfg.PopTimeout)
			workerCtx := logger.WithContext(ctx, l.With("worker_id", id))
			if err := w.Run(workerCtx); err != nil && ctx.Err() == nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return firstErr
}
