package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MixFM/cache"
	"MixFM/config"
	"MixFM/core/audio"
	"MixFM/core/progress"
	"MixFM/logger"
	"MixFM/model"
	"MixFM/repository"
	"MixFM/watcher"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	server := &http.Server{
		Addr:        cfg.ServerAddr,
		ReadTimeout: 30 * time.Second,
		// 写超时要容纳整首无损文件的传输
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ensureDirExists(cfg.MusicRoot)

	defaultQuality, err := model.ParseQuality(cfg.DefaultQuality)
	if err != nil {
		logger.Warn("默认音质配置无效，使用 medium",
			logger.String("configured", cfg.DefaultQuality))
		defaultQuality = model.QualityMedium
	}

	precacheQualities := parseQualities(cfg.PrecacheQualities)

	// 组装音频分发核心
	store := cache.NewAudioCache(cfg.CacheDir, cfg.CacheEnabled)
	transcoder := audio.NewFFmpegTranscoder(cfg.FFmpegPath)
	orchestrator := audio.NewOrchestrator(store, transcoder, cfg.InlineTranscode)
	broadcaster := progress.NewBroadcaster()
	precacheService := audio.NewPrecacheService(store, transcoder, broadcaster, cfg.MaxWorkers)
	mixtapeProvider := repository.NewInMemoryMixtapeProvider()

	playHandler, err := NewPlayHandler(cfg.MusicRoot, defaultQuality, orchestrator)
	if err != nil {
		logger.Fatal("初始化播放处理器失败", logger.ErrorField(err))
	}

	adminHandler := NewAdminHandler(store)
	progressHandler := NewProgressHandler(broadcaster)
	precacheHandler := NewPrecacheHandler(mixtapeProvider, precacheService, cfg.MusicRoot, precacheQualities)

	// 上传监听：新音频文件自动预缓存
	var uploadWatcher *watcher.UploadWatcher
	if cfg.PrecacheOnUpload && store.Enabled() {
		uploadWatcher, err = watcher.New(cfg.MusicRoot, func(path string) {
			name := filepath.Base(path)
			precacheService.StartMixtapeTask(&model.Mixtape{
				ID:     "upload",
				Name:   name,
				Tracks: []model.Track{{Title: name, FilePath: path}},
			}, cfg.MusicRoot, precacheQualities)
		})
		if err != nil {
			logger.Warn("上传监听初始化失败，预缓存改为手动触发", logger.ErrorField(err))
		} else {
			uploadWatcher.Start()
			defer uploadWatcher.Stop()
		}
	}

	server.Handler = newRouter(playHandler, adminHandler, progressHandler, precacheHandler)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("服务器启动",
			logger.String("addr", cfg.ServerAddr),
			logger.String("musicRoot", cfg.MusicRoot),
			logger.String("cacheDir", cfg.CacheDir),
			logger.Bool("cacheEnabled", store.Enabled()))

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("收到退出信号，关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("服务器强制关闭", logger.ErrorField(err))
	}

	logger.Info("服务器已停止")
}

// newRouter 组装全部路由
func newRouter(playHandler http.Handler, adminHandler *AdminHandler, progressHandler *ProgressHandler, precacheHandler *PrecacheHandler) *mux.Router {
	router := mux.NewRouter()

	// mux 默认会把 /play/../x 清理重定向成 /x，越界请求就拿不到 403 了，
	// 路径归一化必须交给播放处理器自己做
	router.SkipClean(true)

	// CORS 中间件，投屏设备的跨域请求依赖这些头
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Type, Accept-Encoding, Range, Content-Range, Content-Length")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 音频播放
	router.PathPrefix("/play/").Handler(playHandler).Methods(http.MethodGet)

	// 缓存管理
	router.HandleFunc("/admin/cache/stats", adminHandler.CacheStatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/admin/cache/clear", adminHandler.CacheClearHandler).Methods(http.MethodPost)

	// 批量任务进度
	router.HandleFunc("/editor/progress/{taskId}/ws", progressHandler.WSHandler).Methods(http.MethodGet)
	router.HandleFunc("/editor/progress/{taskId}", progressHandler.SSEHandler).Methods(http.MethodGet)

	// 混音带预缓存
	router.HandleFunc("/api/mixtapes/{id}/precache", precacheHandler.PrecacheMixtapeHandler).Methods(http.MethodPost)

	// Prometheus 指标
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// parseQualities 解析配置的音质列表，无效项被忽略
func parseQualities(raw []string) []model.Quality {
	var qualities []model.Quality
	for _, s := range raw {
		q, err := model.ParseQuality(s)
		if err != nil || q == model.QualityOriginal {
			logger.Warn("忽略无效的预缓存音质", logger.String("quality", s))
			continue
		}
		qualities = append(qualities, q)
	}
	if len(qualities) == 0 {
		qualities = []model.Quality{model.QualityMedium}
	}
	return qualities
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("创建目录", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("创建目录失败",
				logger.String("path", path),
				logger.ErrorField(err))
		}
	}
}
