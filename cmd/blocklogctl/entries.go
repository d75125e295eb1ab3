package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/blocklog/commitlog"
	"go.uber.org/zap"
)

func Append(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <file> <payload>...",
		Short: "Append payloads to a log, creating it if needed, then flush it.",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			clog, l := mustOpen(config, args[0], true)
			defer clog.Close()
			offsets := make([]uint64, 0, len(args)-1)
			for _, payload := range args[1:] {
				offsets = append(offsets, clog.Append([]byte(payload)))
			}
			if err := clog.Flush(); err != nil {
				l.Fatal("failed to flush log", zap.Error(err))
			}
			for _, offset := range offsets {
				fmt.Fprintln(cmd.OutOrStdout(), offset)
			}
		},
	}
	return cmd
}

func Read(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <file> <offset>",
		Short: "Read the entry stored at the given offset.",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			clog, l := mustOpen(config, args[0], false)
			defer clog.Close()
			offset, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				l.Fatal("invalid offset", zap.Error(err))
			}
			tpl, err := ParseTemplate(config.GetString("format"))
			if err != nil {
				l.Fatal("invalid format", zap.Error(err))
			}
			chunk, err := clog.Read(offset)
			if err != nil {
				l.Fatal("failed to read entry", zap.Uint64("offset", offset), zap.Error(err))
			}
			tpl.Execute(cmd.OutOrStdout(), record{Offset: offset, Size: uint64(len(chunk.Data)), Payload: chunk.Data})
		},
	}
	cmd.Flags().StringP("format", "f", entryTemplate, "Format each entry using Go's template syntax.")
	return cmd
}

func Dump(ctx context.Context, config *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every entry of a log. Use - as file with --raw to read a log stream from stdin.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			l := getLogger(config)
			tpl, err := ParseTemplate(config.GetString("format"))
			if err != nil {
				l.Fatal("invalid format", zap.Error(err))
			}
			show := func(offset uint64, payload []byte) {
				tpl.Execute(cmd.OutOrStdout(), record{Offset: offset, Size: uint64(len(payload)), Payload: payload})
			}
			if config.GetBool("raw") {
				opts, err := logOptions(config, l)
				if err != nil {
					l.Fatal("invalid log options", zap.Error(err))
				}
				var r io.Reader = os.Stdin
				if args[0] != "-" {
					fd, err := os.Open(args[0])
					if err != nil {
						l.Fatal("failed to open log", zap.Error(err))
					}
					defer fd.Close()
					r = fd
				}
				commitlog.WithMaxEntrySize(uint64(config.GetInt64("max-entry-size")))(&opts)
				dec := commitlog.NewDecoder(r, opts)
				for {
					entry, err := dec.Decode()
					if err == io.EOF {
						return
					}
					if err != nil {
						l.Fatal("failed to decode entry", zap.Error(err))
					}
					show(dec.Offset(), entry.Payload())
				}
			}
			clog, l := mustOpen(config, args[0], false)
			defer clog.Close()
			it, err := clog.Iter()
			if err != nil {
				l.Fatal("failed to iterate log", zap.Error(err))
			}
			for {
				payload, err := it.Next()
				if err == io.EOF {
					return
				}
				if err != nil {
					l.Fatal("failed to read entry", zap.Error(err))
				}
				show(it.Offset(), payload)
			}
		},
	}
	cmd.Flags().StringP("format", "f", entryTemplate, "Format each entry using Go's template syntax.")
	cmd.Flags().Bool("raw", false, "Decode the file as a raw stream instead of opening it as a log.")
	cmd.Flags().Int64("max-entry-size", 64<<20, "Largest payload accepted with --raw, in bytes.")
	return cmd
}
