package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/server"
)

// newBenchmarkCmd creates the 'benchmark' subcommand.
func newBenchmarkCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare a sequential crawl with a concurrent one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(e *env, rt *server.Runtime) error {
				fetch, req, err := flags.resolve(cmd, e.cfg, rt)
				if err != nil {
					return err
				}
				report, err := rt.Crawler.Benchmark(cmd.Context(), fetch, req)
				if err != nil {
					return fmt.Errorf("benchmark: %w", err)
				}
				e.logger.Info("benchmark finished",
					zap.String("seed", report.Seed),
					zap.Float64("speedup", report.Speedup),
					zap.Bool("same_result", report.SameResult),
				)
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	flags.register(cmd)
	return cmd
}
