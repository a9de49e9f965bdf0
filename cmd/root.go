package cmd

import (
	"fmt"
	"os"

	"beatflow/config"
	"beatflow/logger"
	"beatflow/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beatflow",
	Short: "BeatFlow is an electronic-music track storefront.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(loadConfig())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 不带子命令时直接启动服务
		return server.Start(loadConfig())
	},
	SilenceUsage: true,
}

var cfg *config.Config

// loadConfig 只加载一次配置
func loadConfig() *config.Config {
	if cfg == nil {
		cfg = config.Load()
	}
	return cfg
}

func initLogger(c *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(c.LogLevel),
		OutputPath: c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAgeDays,
		Compress:   true,
	})
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
