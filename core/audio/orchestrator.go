package audio

import (
	"context"

	"golang.org/x/sync/singleflight"

	"MixFM/cache"
	"MixFM/logger"
	"MixFM/metrics"
	"MixFM/model"
)

// Orchestrator 决定一个播放请求实际服务哪个文件
// 任何缓存问题都降级为返回原始文件路径，播放永远不会因为缓存失败而中断
type Orchestrator struct {
	store      *cache.AudioCache
	transcoder Transcoder
	inline     bool // 缓存未命中时是否在请求路径内同步转码
	group      singleflight.Group
}

// NewOrchestrator 创建 Orchestrator
func NewOrchestrator(store *cache.AudioCache, transcoder Transcoder, inlineTranscode bool) *Orchestrator {
	return &Orchestrator{
		store:      store,
		transcoder: transcoder,
		inline:     inlineTranscode,
	}
}

// ResolveServingPath 解析实际服务的文件路径，永远返回可播放的路径
func (o *Orchestrator) ResolveServingPath(ctx context.Context, asset *model.Asset, quality model.Quality) string {
	if quality == model.QualityOriginal {
		return asset.AbsolutePath
	}

	if !o.store.Enabled() {
		return asset.AbsolutePath
	}

	// 有损格式转码不会变小，音质参数对这类文件不生效
	if !o.store.ShouldTranscode(asset) {
		return asset.AbsolutePath
	}

	cachePath := o.store.CachePathFor(asset, quality)
	if o.store.IsCached(asset, quality) {
		metrics.CacheHits.Inc()
		logger.Debug("缓存命中",
			logger.String("source", asset.AbsolutePath),
			logger.String("quality", string(quality)))
		return cachePath
	}

	metrics.CacheMisses.Inc()

	if !o.inline {
		// 默认策略：未命中时直接服务原始文件，缓存由批量预缓存填充
		logger.Info("缓存未命中，服务原始文件",
			logger.String("source", asset.AbsolutePath),
			logger.String("quality", string(quality)))
		return asset.AbsolutePath
	}

	// 行内转码：singleflight 保证同一 (路径, 音质) 并发请求只触发一次编码，
	// 其余请求共享第一次的结果
	key := asset.AbsolutePath + "|" + string(quality)
	_, err, shared := o.group.Do(key, func() (interface{}, error) {
		return nil, o.transcoder.Transcode(ctx, asset, quality, cachePath, false)
	})
	if err != nil {
		logger.Warn("行内转码失败，降级为服务原始文件",
			logger.String("source", asset.AbsolutePath),
			logger.String("quality", string(quality)),
			logger.ErrorField(err))
		return asset.AbsolutePath
	}

	logger.Info("行内转码完成",
		logger.String("source", asset.AbsolutePath),
		logger.String("quality", string(quality)),
		logger.Bool("shared", shared))

	return cachePath
}
