// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/browser"
	"github.com/kestrelqa/kestrel/internal/llmclient"
	"github.com/kestrelqa/kestrel/internal/observability"
	"github.com/kestrelqa/kestrel/internal/resolver"
	"github.com/kestrelqa/kestrel/internal/runner"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [feature files...]",
		Short: "Runs the scenarios in one or more feature files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			// Flag overrides beat file and environment values.
			if cmd.Flags().Changed("headed") {
				headed, _ := cmd.Flags().GetBool("headed")
				cfg.Browser.Headless = !headed
			}
			if cmd.Flags().Changed("no-cache") {
				cfg.Cache.Disabled, _ = cmd.Flags().GetBool("no-cache")
			}
			if cmd.Flags().Changed("parallelism") {
				cfg.Runner.Parallelism, _ = cmd.Flags().GetInt("parallelism")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			llm, err := llmclient.NewClient(ctx, cfg.Agent, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM client: %w", err)
			}
			res := resolver.New(llm, cfg.Agent.LLM, logger)

			manager, err := browser.NewManager(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Error during browser shutdown", zap.Error(err))
				}
			}()

			r := runner.New(manager, res, cfg, logger)

			var failures []string
			for _, featurePath := range args {
				result, runErr := r.Run(ctx, featurePath)
				printRunResult(cmd, featurePath, result)
				if runErr != nil {
					if errors.Is(runErr, context.Canceled) {
						return fmt.Errorf("run aborted by user signal")
					}
					failures = append(failures, featurePath)
				}
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d of %d feature files had failing scenarios", len(failures), len(args))
			}
			return nil
		},
	}

	runCmd.Flags().Bool("headed", false, "Run the browser with a visible window. (Overrides config/env)")
	runCmd.Flags().Bool("no-cache", false, "Skip the selector cache and resolve every step through the model.")
	runCmd.Flags().IntP("parallelism", "j", 0, "Number of scenarios to run concurrently. (Overrides config/env)")

	return runCmd
}

func printRunResult(cmd *cobra.Command, featurePath string, result runner.Result) {
	cmd.Printf("\n%s (run %s)\n", featurePath, result.RunID)
	for _, sc := range result.Scenarios {
		if sc.Err != nil {
			cmd.Printf("  FAIL  %s (%s): %v\n", sc.Name, sc.Duration.Round(time.Millisecond), sc.Err)
			continue
		}
		cmd.Printf("  PASS  %s (%d steps, %s)\n", sc.Name, sc.Completed, sc.Duration.Round(time.Millisecond))
	}
}
