package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Asset 表示一个磁盘上的源音频文件
type Asset struct {
	AbsolutePath string // 规范化后的绝对路径，作为缓存身份的输入
	Format       string // 由扩展名推导，如 "flac"、"mp3"
	SizeBytes    int64
	ModTime      int64 // Unix 秒
}

// losslessFormats 无损格式，体积大，适合转码缓存
var losslessFormats = map[string]bool{
	"flac": true,
	"wav":  true,
	"aiff": true,
	"ape":  true,
	"alac": true,
}

// lossyFormats 已压缩的有损格式，原样服务，永不重新转码
var lossyFormats = map[string]bool{
	"mp3":  true,
	"m4a":  true,
	"aac":  true,
	"ogg":  true,
	"opus": true,
}

// IsAudioFormat 判断扩展名推导出的格式是否为本系统识别的音频格式
func IsAudioFormat(format string) bool {
	return losslessFormats[format] || lossyFormats[format]
}

// NewAsset 根据文件路径创建 Asset，路径会被解析为规范化绝对路径
// 等价路径（相对路径、多余分隔符、符号链接）必须得到同一个缓存身份
func NewAsset(path string) (*Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析绝对路径失败 %s: %w", path, err)
	}

	// 符号链接解析失败时退回 Abs 结果，文件可能尚不存在
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("音频文件不可访问 %s: %w", abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("路径是目录而不是音频文件: %s", abs)
	}

	return &Asset{
		AbsolutePath: abs,
		Format:       FormatOf(abs),
		SizeBytes:    info.Size(),
		ModTime:      info.ModTime().Unix(),
	}, nil
}

// FormatOf 从扩展名推导音频格式（小写，不含点）
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// IsLossless 判断该文件是否为无损格式
func (a *Asset) IsLossless() bool {
	return losslessFormats[a.Format]
}
