package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/blocklog/commitlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "blocklogctl")
}

func getLogger(config *viper.Viper) *zap.Logger {
	if config.GetBool("debug") {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(colorable.NewColorableStderr()),
			zapcore.DebugLevel,
		))
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}

func logOptions(config *viper.Viper, logger *zap.Logger) (commitlog.Options, error) {
	magic, err := strconv.ParseUint(config.GetString("magic"), 0, 64)
	if err != nil {
		return commitlog.Options{}, errors.Wrap(err, "invalid magic")
	}
	opts := commitlog.NewOptions(
		commitlog.WithBlockSize(config.GetInt("block-size")),
		commitlog.WithPadSize(config.GetInt("pad-size")),
		commitlog.WithBufferSize(config.GetInt("buffer-size")),
		commitlog.WithMagic(magic),
		commitlog.WithLogger(logger),
	)
	return opts, opts.Validate()
}

// mustOpen opens the log named by path. Logs are only created when create is set.
func mustOpen(config *viper.Viper, path string, create bool, opts ...commitlog.Option) (*commitlog.Log, *zap.Logger) {
	l := getLogger(config).With(zap.String("log_path", path))
	logOpts, err := logOptions(config, l)
	if err != nil {
		l.Fatal("invalid log options", zap.Error(err))
	}
	for _, opt := range opts {
		opt(&logOpts)
	}
	var clog *commitlog.Log
	if create {
		clog, err = commitlog.Open(path, logOpts)
	} else {
		clog, err = commitlog.OpenExisting(path, logOpts)
	}
	if err != nil {
		l.Fatal("failed to open log", zap.Error(err))
	}
	return clog, l
}

func main() {
	config := viper.New()
	config.AddConfigPath(configDir())
	config.SetConfigType("yaml")
	config.SetConfigName("config")
	config.SetEnvPrefix("BLOCKLOGCTL")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()

	ctx := context.Background()
	rootCmd := &cobra.Command{
		Use:   "blocklogctl",
		Short: "Inspect and manipulate block aligned commit logs.",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.BindPFlags(cmd.Flags())
			config.BindPFlags(cmd.PersistentFlags())
			if err := config.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					log.Fatal(err)
				}
			}
		},
	}
	rootCmd.AddCommand(Append(ctx, config))
	rootCmd.AddCommand(Read(ctx, config))
	rootCmd.AddCommand(Dump(ctx, config))
	rootCmd.AddCommand(Stat(ctx, config))
	rootCmd.AddCommand(Verify(ctx, config))
	rootCmd.AddCommand(Bench(ctx, config))
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Increase log verbosity.")
	rootCmd.PersistentFlags().Int("block-size", commitlog.DefaultBlockSize, "Alignment of flush trailers, in bytes.")
	rootCmd.PersistentFlags().Int("pad-size", commitlog.DefaultPadSize, "Alignment of entries, in bytes.")
	rootCmd.PersistentFlags().Int("buffer-size", commitlog.DefaultBufferSize, "Initial capacity of the write buffer, in bytes.")
	rootCmd.PersistentFlags().String("magic", "0x"+strconv.FormatUint(commitlog.DefaultMagic, 16), "Trailer magic value.")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
