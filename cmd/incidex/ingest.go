package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/incidex/internal/domain"
)

var ingestContainer string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed incidents from the configured source and store them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, globalCfg, globalEnv)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		ctx, usage := domain.NewContextWithUsage(ctx)
		report, err := a.incidents.Ingest(ctx, ingestContainer)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		out := cmd.OutOrStdout()
		if report.Ingested == 0 {
			fmt.Fprintln(out, "No incidents found in source")
			return nil
		}
		fmt.Fprintf(out, "Ingested %s incidents in %s batches (run %s, %s, %s embedding tokens)\n",
			humanize.Comma(int64(report.Ingested)),
			humanize.Comma(int64(report.Batches)),
			report.RunID,
			time.Since(start).Round(time.Millisecond),
			humanize.Comma(int64(usage.TotalTokens)),
		)
		for _, field := range sortedKeys(report.Shortfalls) {
			fmt.Fprintf(out, "  %s: %s items without a vector\n", field, humanize.Comma(int64(report.Shortfalls[field])))
		}
		for _, field := range sortedKeys(report.Reduced) {
			fmt.Fprintf(out, "  %s: reduced to %d dimensions\n", field, report.Reduced[field])
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestContainer, "collection", "", "target container (default from config)")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
