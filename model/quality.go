package model

import "fmt"

// Quality 表示播放音质等级，closed set，避免自由字符串传播
type Quality string

const (
	QualityOriginal Quality = "original"
	QualityHigh     Quality = "high"
	QualityMedium   Quality = "medium"
	QualityLow      Quality = "low"
)

// qualityBitrates 音质到目标比特率的固定映射
var qualityBitrates = map[Quality]string{
	QualityHigh:   "256k",
	QualityMedium: "192k",
	QualityLow:    "128k",
}

// ParseQuality 解析音质参数，未知值返回错误
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityOriginal, QualityHigh, QualityMedium, QualityLow:
		return Quality(s), nil
	}
	return "", fmt.Errorf("unknown quality: %q", s)
}

// Bitrate 返回 ffmpeg 使用的比特率标签，如 "192k"
// original 音质不参与转码，返回空字符串
func (q Quality) Bitrate() string {
	return qualityBitrates[q]
}

// TranscodeQualities 返回所有需要转码的音质等级
func TranscodeQualities() []Quality {
	return []Quality{QualityHigh, QualityMedium, QualityLow}
}
