package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"MixFM/core/audio"
	"MixFM/logger"
	"MixFM/metrics"
	"MixFM/model"
)

// streamChunkSize 流式读取的块大小，大范围请求不会整块载入内存
const streamChunkSize = 8 * 1024

// audioMIMETypes 标准 MIME 表遗漏的音频格式
var audioMIMETypes = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".aiff": "audio/aiff",
	".ape":  "audio/x-ape",
}

// PlayHandler 音频流式播放处理器
// 每个请求独立打开文件句柄，同一文件的并发范围请求互不干扰
type PlayHandler struct {
	musicRoot      string // 规范化后的绝对路径
	defaultQuality model.Quality
	orchestrator   *audio.Orchestrator
}

// NewPlayHandler 创建 PlayHandler，musicRoot 会被规范化
func NewPlayHandler(musicRoot string, defaultQuality model.Quality, orchestrator *audio.Orchestrator) (*PlayHandler, error) {
	abs, err := filepath.Abs(musicRoot)
	if err != nil {
		return nil, fmt.Errorf("解析音乐根目录失败 %s: %w", musicRoot, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return &PlayHandler{
		musicRoot:      abs,
		defaultQuality: defaultQuality,
		orchestrator:   orchestrator,
	}, nil
}

// ServeHTTP 处理 GET /play/<path>?quality=...
func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	relPath := strings.TrimPrefix(r.URL.Path, "/play/")

	resolved, status := h.resolvePath(relPath)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	quality := h.defaultQuality
	if q := r.URL.Query().Get("quality"); q != "" {
		parsed, err := model.ParseQuality(q)
		if err != nil {
			logger.Debug("未知音质参数，使用默认值",
				logger.String("quality", q))
		} else {
			quality = parsed
		}
	}

	asset, err := model.NewAsset(resolved)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	servePath := h.orchestrator.ResolveServingPath(r.Context(), asset, quality)
	h.serveFile(w, r, servePath)
}

// resolvePath 把请求的相对路径解析到音乐根目录下
// 任何逃出根目录的路径（.. 或符号链接）一律 403，
// 不允许用 404 泄露根目录之外的文件是否存在
func (h *PlayHandler) resolvePath(relPath string) (string, int) {
	if relPath == "" {
		return "", http.StatusNotFound
	}

	decoded := filepath.FromSlash(relPath)
	joined := filepath.Clean(filepath.Join(h.musicRoot, decoded))

	if !h.withinRoot(joined) {
		logger.Warn("拒绝越界路径请求",
			logger.String("path", relPath))
		return "", http.StatusForbidden
	}

	info, err := os.Stat(joined)
	if err != nil || info.IsDir() {
		return "", http.StatusNotFound
	}

	// 符号链接可能指向根目录之外
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		if !h.withinRoot(resolved) {
			logger.Warn("拒绝符号链接越界请求",
				logger.String("path", relPath),
				logger.String("target", resolved))
			return "", http.StatusForbidden
		}
		joined = resolved
	}

	return joined, http.StatusOK
}

// withinRoot 判断路径是否在音乐根目录之内
func (h *PlayHandler) withinRoot(path string) bool {
	if path == h.musicRoot {
		return true
	}
	return strings.HasPrefix(path, h.musicRoot+string(filepath.Separator))
}

// serveFile 服务完整文件或单个字节范围
func (h *PlayHandler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		logger.Error("打开文件失败",
			logger.String("path", path),
			logger.ErrorField(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	size := info.Size()

	setAudioHeaders(w, contentTypeFor(path))

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		h.streamWindow(w, r, file, 0, size)
		return
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	metrics.RangeRequests.Inc()
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	h.streamWindow(w, r, file, start, end-start+1)
}

// streamWindow 按块写出指定长度的字节窗口
// 客户端断开时在一个块的粒度内停止读取并释放句柄
func (h *PlayHandler) streamWindow(w http.ResponseWriter, r *http.Request, file *os.File, start, length int64) {
	buf := make([]byte, streamChunkSize)
	remaining := length

	for remaining > 0 {
		select {
		case <-r.Context().Done():
			logger.Debug("客户端断开，停止传输",
				logger.String("path", file.Name()),
				logger.Int64("remaining", remaining))
			return
		default:
		}

		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}

		n, err := file.Read(buf[:chunk])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// 连接中断：记录并放弃，不做部分恢复
				logger.Debug("写入响应失败，中止传输", logger.ErrorField(werr))
				return
			}
			remaining -= int64(n)
			metrics.BytesServed.Add(float64(n))
		}
		if err != nil {
			if err != io.EOF {
				logger.Error("读取文件失败",
					logger.String("path", file.Name()),
					logger.ErrorField(err))
			}
			return
		}
	}
}

// errUnsatisfiableRange 范围无法满足或格式不受支持
var errUnsatisfiableRange = errors.New("unsatisfiable range")

// parseByteRange 解析 Range 头，只支持单个范围
// 接受 bytes=start-end 和 bytes=start-（末尾默认为文件最后一个字节）
// 多范围请求和后缀范围不受支持，按无法满足处理
func parseByteRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, errUnsatisfiableRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return 0, 0, errUnsatisfiableRange
	}

	start, err = strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errUnsatisfiableRange
	}

	if strings.TrimSpace(endStr) == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
		if err != nil {
			return 0, 0, errUnsatisfiableRange
		}
	}

	if start >= size || end >= size || start > end {
		return 0, 0, errUnsatisfiableRange
	}

	return start, end, nil
}

// contentTypeFor 推导 Content-Type，未知扩展名退回 octet-stream
func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := audioMIMETypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// setAudioHeaders 设置所有音频响应必需的头
// CORS 头允许 Chromecast / 车机跨域拉取
func setAudioHeaders(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Type, Accept-Encoding, Range, Content-Range, Content-Length")
	w.Header().Set("Cache-Control", "public, max-age=3600")
}
