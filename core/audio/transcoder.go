package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"MixFM/logger"
	"MixFM/metrics"
	"MixFM/model"
)

// 转码错误分类，调用方据此决定日志内容，但一律降级为服务原始文件
var (
	ErrOriginalQuality       = errors.New("original 音质不需要转码")
	ErrSourceUnreadable      = errors.New("源文件不可读")
	ErrEncoderNotFound       = errors.New("找不到编码器可执行文件")
	ErrDestinationUnwritable = errors.New("缓存目标不可写")
)

// EncoderError ffmpeg 执行失败，保留退出码和 stderr 尾部用于排查
type EncoderError struct {
	ExitCode   int
	StderrTail string
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("编码器执行失败 (exit %d): %s", e.ExitCode, e.StderrTail)
}

// stderrTailLimit stderr 摘录的最大长度
const stderrTailLimit = 512

// Transcoder 把一个音频文件转码为目标音质的 MP3
type Transcoder interface {
	Transcode(ctx context.Context, asset *model.Asset, quality model.Quality, destination string, overwrite bool) error
}

// FFmpegTranscoder 基于外部 ffmpeg 进程的 Transcoder 实现
type FFmpegTranscoder struct {
	ffmpegPath string
}

// NewFFmpegTranscoder 创建 FFmpegTranscoder
func NewFFmpegTranscoder(ffmpegPath string) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath}
}

// Transcode 把源文件转码到 destination
// 先写同目录临时文件再原子重命名，并发读取方不会看到半成品；
// destination 已存在且 overwrite=false 时为幂等空操作，不会再次调用编码器
func (t *FFmpegTranscoder) Transcode(ctx context.Context, asset *model.Asset, quality model.Quality, destination string, overwrite bool) error {
	if quality == model.QualityOriginal {
		return ErrOriginalQuality
	}

	if !overwrite {
		if _, err := os.Stat(destination); err == nil {
			logger.Debug("缓存文件已存在，跳过转码",
				logger.String("destination", destination))
			return nil
		}
	}

	if _, err := os.Stat(asset.AbsolutePath); err != nil {
		return fmt.Errorf("%w: %s", ErrSourceUnreadable, asset.AbsolutePath)
	}

	if _, err := exec.LookPath(t.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrEncoderNotFound, t.ffmpegPath)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("%w: %s", ErrDestinationUnwritable, filepath.Dir(destination))
	}

	// 临时文件必须和目标同目录，跨文件系统的 rename 不是原子的
	tmp, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDestinationUnwritable, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-y",
		"-i", asset.AbsolutePath,
		"-c:a", "libmp3lame",
		"-b:a", quality.Bitrate(),
		"-vn",
		"-map_metadata", "-1",
		"-f", "mp3",
		tmpPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("开始转码",
		logger.String("source", asset.AbsolutePath),
		logger.String("quality", string(quality)),
		logger.String("destination", destination))

	start := time.Now()
	if err := cmd.Run(); err != nil {
		metrics.TranscodeDuration.WithLabelValues(string(quality), "failed").Observe(time.Since(start).Seconds())

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &EncoderError{
			ExitCode:   exitCode,
			StderrTail: tailOf(stderr.String(), stderrTailLimit),
		}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrDestinationUnwritable, destination, err)
	}

	metrics.TranscodeDuration.WithLabelValues(string(quality), "ok").Observe(time.Since(start).Seconds())

	logger.Info("转码完成",
		logger.String("source", asset.AbsolutePath),
		logger.String("quality", string(quality)),
		logger.Duration("elapsed", time.Since(start)))

	return nil
}

// tailOf 截取字符串尾部
func tailOf(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
