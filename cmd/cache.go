package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"MixFM/cache"
	"MixFM/config"
	"MixFM/logger"
)

var olderThanDays int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "管理音频转码缓存",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示缓存目录统计信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()

		stats, err := store.CollectStats()
		if err != nil {
			return err
		}

		fmt.Printf("cache dir:    %s\n", stats.Dir)
		fmt.Printf("cached files: %d\n", stats.Files)
		fmt.Printf("total size:   %.2f MB\n", stats.SizeMB)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清理缓存文件，默认清空全部",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()

		deleted, err := store.Purge(olderThanDays)
		if err != nil {
			return err
		}

		fmt.Printf("deleted %d cached files\n", deleted)
		return nil
	},
}

// openStore 按当前配置打开缓存存储
func openStore() *cache.AudioCache {
	cfg := config.Load()
	logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})
	return cache.NewAudioCache(cfg.CacheDir, true)
}

func init() {
	cacheClearCmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "只删除早于指定天数的缓存文件")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
