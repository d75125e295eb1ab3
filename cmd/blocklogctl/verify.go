package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/blocklog/commitlog"
	"github.com/vx-labs/blocklog/stream"
	"go.uber.org/zap"
)

type verifyReport struct {
	Count      uint64
	Bytes      uint64
	LastOffset uint64
}

// verifyLog replays clog and stops on the first entry failing its checksum.
// The report covers the entries verified before the failure.
func verifyLog(ctx context.Context, clog *commitlog.Log, opts ...stream.ConsumerOpt) (verifyReport, error) {
	report := verifyReport{}
	it, err := clog.Iter()
	if err != nil {
		return report, err
	}
	err = stream.NewConsumer(opts...).Consume(ctx, it, func(ctx context.Context, batch stream.Batch) error {
		report.Count += uint64(len(batch.Records))
		for _, record := range batch.Records {
			report.Bytes += uint64(len(record))
		}
		report.LastOffset = batch.LastOffset
		return nil
	})
	return report, err
}

func Verify(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Replay a log and check every entry checksum.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			clog, l := mustOpen(config, args[0], false)
			opts := []stream.ConsumerOpt{
				stream.WithName("verify"),
				stream.WithMaxBatchSize(config.GetInt("batch-size")),
			}
			if config.GetBool("debug") {
				opts = append(opts, stream.WithPerformanceLogging(l))
			}
			report, err := verifyLog(ctx, clog, opts...)
			if closeErr := clog.Close(); closeErr != nil {
				l.Warn("failed to close log", zap.Error(closeErr))
			}
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "log is corrupted after %d valid entries (last valid offset %d): %v\n", report.Count, report.LastOffset, err)
				os.Exit(2)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries verified, %s of payload\n", report.Count, humanize.Bytes(report.Bytes))
		},
	}
	cmd.Flags().Int("batch-size", 100, "Number of entries checked per batch.")
	return cmd
}
