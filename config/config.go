package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string
	MusicRoot  string // Base directory all relative audio paths are resolved against
	FFmpegPath string

	// 音频缓存配置
	CacheDir          string   // 转码缓存目录
	CacheEnabled      bool     // 关闭后所有请求直接返回原始文件
	DefaultQuality    string   // 默认播放音质
	MaxWorkers        int      // 批量转码工作协程数
	InlineTranscode   bool     // 缓存未命中时是否在请求路径内转码
	PrecacheOnUpload  bool     // 监听音乐目录，新文件自动预缓存
	PrecacheQualities []string // 预缓存使用的音质列表

	// 日志配置
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvList 解析逗号分隔的环境变量
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MusicRoot:  getEnv("MUSIC_ROOT", "music"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		CacheDir:          getEnv("AUDIO_CACHE_DIR", filepath.Join("cache", "audio")),
		CacheEnabled:      getEnvBool("AUDIO_CACHE_ENABLED", true),
		DefaultQuality:    getEnv("AUDIO_CACHE_DEFAULT_QUALITY", "medium"),
		MaxWorkers:        getEnvInt("AUDIO_CACHE_MAX_WORKERS", 4),
		InlineTranscode:   getEnvBool("AUDIO_CACHE_INLINE_TRANSCODE", false),
		PrecacheOnUpload:  getEnvBool("AUDIO_CACHE_PRECACHE_ON_UPLOAD", true),
		PrecacheQualities: getEnvList("AUDIO_CACHE_PRECACHE_QUALITIES", []string{"medium"}),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
