package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/blocklog/commitlog"
	"github.com/vx-labs/blocklog/stats"
	"go.uber.org/zap"
)

func Bench(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "Append fixed size records to a log and report the write rate.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var opts []commitlog.Option
			if port := config.GetInt("metrics-port"); port > 0 {
				opts = append(opts, commitlog.WithRegisterer(prometheus.DefaultRegisterer))
				go func() {
					if err := stats.ListenAndServe(port); err != nil {
						getLogger(config).Error("metrics server stopped", zap.Error(err))
					}
				}()
			}
			clog, l := mustOpen(config, args[0], true, opts...)
			defer clog.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				sigc := make(chan os.Signal, 1)
				signal.Notify(sigc,
					syscall.SIGINT,
					syscall.SIGTERM,
					syscall.SIGQUIT)
				select {
				case <-sigc:
					fmt.Println()
					cancel()
				case <-ctx.Done():
				}
			}()

			count := config.GetInt("count")
			flushEvery := config.GetInt("flush-every")
			if flushEvery < 1 {
				flushEvery = 1
			}
			payload := make([]byte, config.GetInt("size"))
			start := time.Now()
			written := 0
			for written < count && ctx.Err() == nil {
				clog.Append(payload)
				written++
				if written%flushEvery == 0 {
					if err := clog.Flush(); err != nil {
						l.Fatal("failed to flush log", zap.Error(err))
					}
				}
			}
			if err := clog.Flush(); err != nil {
				l.Fatal("failed to flush log", zap.Error(err))
			}
			elapsed := time.Since(start)
			rate := float64(written) / elapsed.Seconds()
			fmt.Fprintf(cmd.OutOrStdout(), "Benchmark done: %d records in %s\n", written, elapsed.String())
			fmt.Fprintf(cmd.OutOrStdout(), "Rate is %s records/s, log size is %s\n",
				humanize.Commaf(rate), humanize.Bytes(clog.Statistics().StoredBytes))
		},
	}
	cmd.Flags().Int("count", 100000, "Number of records to append.")
	cmd.Flags().Int("size", 128, "Payload size of each record, in bytes.")
	cmd.Flags().Int("flush-every", 100, "Flush the log after this number of appends.")
	cmd.Flags().Int("metrics-port", 0, "Start Prometheus HTTP metrics server on this port.")
	return cmd
}
