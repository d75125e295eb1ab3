package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func Stat(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <file>",
		Short: "Show the cursors and sizes of a log.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			clog, l := mustOpen(config, args[0], false)
			defer clog.Close()
			stats := clog.Statistics()
			switch config.GetString("output") {
			case "yaml":
				if err := yaml.NewEncoder(cmd.OutOrStdout()).Encode(stats); err != nil {
					l.Fatal("failed to encode statistics", zap.Error(err))
				}
			case "table":
				blockSize := uint64(config.GetInt("block-size"))
				table := getTable([]string{"Path", "Size", "Blocks", "Last data offset", "Write offset"}, cmd.OutOrStdout())
				table.Append([]string{
					clog.Path(),
					humanize.Bytes(stats.StoredBytes),
					fmt.Sprintf("%d", stats.StoredBytes/blockSize),
					fmt.Sprintf("%d", stats.LastDataOffset),
					fmt.Sprintf("%d", stats.WriteOffset),
				})
				table.Render()
			default:
				l.Fatal("unknown output format", zap.String("output", config.GetString("output")))
			}
		},
	}
	cmd.Flags().StringP("output", "o", "table", "Output format: table or yaml.")
	return cmd
}
