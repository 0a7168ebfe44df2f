package cmd

import (
	"github.com/spf13/cobra"

	"MixFM/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MixFM服务器",
	Long:  `启动MixFM混音带系统的HTTP服务器，提供音频流式播放和缓存管理接口`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
