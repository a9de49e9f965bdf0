package cmd

import (
	"beatflow/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 BeatFlow 服务器",
	Long:  `启动 BeatFlow 店面的 HTTP 服务器，提供目录、购物车、结算 API 以及 iTunes 搜索代理`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
