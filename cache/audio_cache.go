package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"MixFM/logger"
	"MixFM/model"
)

// AudioCache 管理磁盘上的转码缓存目录
// 目录被请求协程、批量转码工作池和管理端清理操作共享，
// 写入方必须先写临时文件再原子重命名，读取方才不会看到截断的文件
type AudioCache struct {
	dir      string
	enabled  bool
	degraded bool // 缓存目录不可用时降级为只服务原始文件
}

// Stats 缓存目录统计信息
type Stats struct {
	SizeBytes int64  `json:"cache_size_bytes"`
	SizeMB    float64 `json:"cache_size_mb"`
	Files     int    `json:"cached_files"`
	Dir       string `json:"cache_dir"`
}

// NewAudioCache 创建缓存存储，目录创建失败时降级而不是报错
func NewAudioCache(dir string, enabled bool) *AudioCache {
	c := &AudioCache{dir: dir, enabled: enabled}

	if !enabled {
		logger.Info("音频缓存已通过配置关闭")
		return c
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("缓存目录不可用，降级为只服务原始文件",
			logger.String("dir", dir),
			logger.ErrorField(err))
		c.degraded = true
	}
	return c
}

// Dir 返回缓存根目录
func (c *AudioCache) Dir() string {
	return c.dir
}

// Enabled 缓存是否可用
func (c *AudioCache) Enabled() bool {
	return c.enabled && !c.degraded
}

// CachePathFor 计算 (源文件, 音质) 对应的缓存文件路径
// 纯函数：对路径哈希而不是取文件名，不同目录下的同名文件不会冲突
func (c *AudioCache) CachePathFor(asset *model.Asset, quality model.Quality) string {
	sum := md5.Sum([]byte(asset.AbsolutePath))
	name := fmt.Sprintf("%s_%s_%s.mp3", hex.EncodeToString(sum[:]), quality, quality.Bitrate())
	return filepath.Join(c.dir, name)
}

// IsCached 检查缓存文件是否存在
func (c *AudioCache) IsCached(asset *model.Asset, quality model.Quality) bool {
	info, err := os.Stat(c.CachePathFor(asset, quality))
	return err == nil && !info.IsDir()
}

// ShouldTranscode 判断源文件是否值得转码
// 有损格式（mp3、aac 等）转码不会变小，直接原样服务
func (c *AudioCache) ShouldTranscode(asset *model.Asset) bool {
	return asset.IsLossless()
}

// CollectStats 扫描缓存目录统计大小和文件数
// O(n) 全目录扫描，只用于管理端统计接口
func (c *AudioCache) CollectStats() (*Stats, error) {
	stats := &Stats{Dir: c.dir}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("读取缓存目录失败 %s: %w", c.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.SizeBytes += info.Size()
		stats.Files++
	}

	stats.SizeMB = float64(stats.SizeBytes) / (1024 * 1024)
	return stats, nil
}

// Purge 清理缓存文件，返回删除数量
// olderThanDays <= 0 时删除全部，否则只删除修改时间早于截止时间的文件
// POSIX 文件系统上删除正在被读取的文件是安全的，已打开的描述符仍然有效；
// 其他平台不保证，见部署文档
func (c *AudioCache) Purge(olderThanDays int) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("读取缓存目录失败 %s: %w", c.dir, err)
	}

	var cutoff time.Time
	if olderThanDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -olderThanDays)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		if olderThanDays > 0 {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("删除缓存文件失败",
				logger.String("path", path),
				logger.ErrorField(err))
			continue
		}
		deleted++
	}

	logger.Info("缓存清理完成",
		logger.Int("deleted", deleted),
		logger.Int("olderThanDays", olderThanDays))

	return deleted, nil
}
