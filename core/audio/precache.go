package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"MixFM/cache"
	"MixFM/core/progress"
	"MixFM/logger"
	"MixFM/model"
)

// Summary 一次批量预缓存的结果统计
// Cached + Skipped + Failed 等于提交的任务总数
type Summary struct {
	Cached  int `json:"cached"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// PrecacheService 批量预缓存：把 (歌曲 × 音质) 任务分发到有界工作池
// 编码是阻塞的子进程调用，只允许在这里的工作池内执行，
// 绝不在请求处理协程内同步调用
type PrecacheService struct {
	store       *cache.AudioCache
	transcoder  Transcoder
	broadcaster *progress.Broadcaster
	maxWorkers  int
}

// precacheJob 一个 (歌曲, 音质) 转码任务
type precacheJob struct {
	track   model.Track
	asset   *model.Asset
	quality model.Quality
	loadErr error // 源文件无法解析时记录在这里，由工作协程上报为失败
}

// NewPrecacheService 创建 PrecacheService
func NewPrecacheService(store *cache.AudioCache, transcoder Transcoder, broadcaster *progress.Broadcaster, maxWorkers int) *PrecacheService {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &PrecacheService{
		store:       store,
		transcoder:  transcoder,
		broadcaster: broadcaster,
		maxWorkers:  maxWorkers,
	}
}

// ProgressFunc 进度回调，每个任务完成（成功/跳过/失败）时调用一次
type ProgressFunc func(event model.ProgressEvent)

// ScheduleCaching 同步执行批量预缓存，所有任务完成后返回统计
// 单个任务失败不会中断批次，失败被累计进 Summary
func (s *PrecacheService) ScheduleCaching(ctx context.Context, taskID string, tracks []model.Track, assets []*model.Asset, qualities []model.Quality, progressFn ProgressFunc) Summary {
	total := len(tracks) * len(qualities)

	jobs := make([]precacheJob, 0, total)
	for i, track := range tracks {
		for _, quality := range qualities {
			job := precacheJob{track: track, quality: quality}
			if i < len(assets) {
				job.asset = assets[i]
			}
			if job.asset == nil {
				job.loadErr = fmt.Errorf("源文件不可用: %s", track.FilePath)
			}
			jobs = append(jobs, job)
		}
	}

	logger.Info("开始批量预缓存",
		logger.String("taskId", taskID),
		logger.Int("tracks", len(tracks)),
		logger.Int("qualities", len(qualities)),
		logger.Int("workers", s.maxWorkers))

	var (
		summary Summary
		mu      sync.Mutex // 同时保护统计和进度计数，current 严格单调递增
		current int
		wg      sync.WaitGroup
	)

	jobChan := make(chan precacheJob)

	for i := 0; i < s.maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				status, message, err := s.runJob(ctx, job)

				mu.Lock()
				var outcome model.JobOutcome
				switch status {
				case jobCached:
					summary.Cached++
					outcome = model.OutcomeCached
				case jobSkipped:
					summary.Skipped++
					outcome = model.OutcomeSkipped
				case jobFailed:
					summary.Failed++
					outcome = model.OutcomeFailed
				}
				current++
				event := model.ProgressEvent{
					TaskID:    taskID,
					Step:      job.track.Title,
					Status:    model.ProgressInProgress,
					Outcome:   outcome,
					Message:   message,
					Current:   current,
					Total:     total,
					Timestamp: time.Now(),
				}
				if progressFn != nil {
					progressFn(event)
				}
				mu.Unlock()

				if err != nil {
					logger.Warn("预缓存任务失败",
						logger.String("taskId", taskID),
						logger.String("track", job.track.FilePath),
						logger.String("quality", string(job.quality)),
						logger.ErrorField(err))
				}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)
	wg.Wait()

	logger.Info("批量预缓存完成",
		logger.String("taskId", taskID),
		logger.Int("cached", summary.Cached),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed))

	return summary
}

type jobStatus int

const (
	jobCached jobStatus = iota
	jobSkipped
	jobFailed
)

// runJob 执行单个转码任务
func (s *PrecacheService) runJob(ctx context.Context, job precacheJob) (jobStatus, string, error) {
	if job.loadErr != nil {
		return jobFailed, job.loadErr.Error(), job.loadErr
	}

	if !s.store.ShouldTranscode(job.asset) {
		return jobSkipped, fmt.Sprintf("%s 为有损格式，无需转码", job.asset.Format), nil
	}

	if s.store.IsCached(job.asset, job.quality) {
		return jobSkipped, "已缓存", nil
	}

	destination := s.store.CachePathFor(job.asset, job.quality)
	if err := s.transcoder.Transcode(ctx, job.asset, job.quality, destination, false); err != nil {
		return jobFailed, err.Error(), err
	}

	return jobCached, fmt.Sprintf("已转码为 %s", job.quality.Bitrate()), nil
}

// StartMixtapeTask 异步预缓存一盘混音带，返回任务 ID
// 进度通过 Broadcaster 发布，终止事件携带最终统计
func (s *PrecacheService) StartMixtapeTask(mixtape *model.Mixtape, musicRoot string, qualities []model.Quality) string {
	taskID := uuid.NewString()
	s.broadcaster.StartTask(taskID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		assets := make([]*model.Asset, len(mixtape.Tracks))
		for i, track := range mixtape.Tracks {
			asset, err := model.NewAsset(resolveTrackPath(musicRoot, track.FilePath))
			if err != nil {
				logger.Warn("无法解析歌曲文件",
					logger.String("taskId", taskID),
					logger.String("path", track.FilePath),
					logger.ErrorField(err))
				continue
			}
			assets[i] = asset
		}

		summary := s.ScheduleCaching(ctx, taskID, mixtape.Tracks, assets, qualities, func(event model.ProgressEvent) {
			s.broadcaster.Publish(taskID, event)
		})

		status := model.ProgressCompleted
		if summary.Failed > 0 && summary.Cached == 0 && summary.Skipped == 0 {
			status = model.ProgressFailed
		}

		total := len(mixtape.Tracks) * len(qualities)
		s.broadcaster.Publish(taskID, model.ProgressEvent{
			TaskID:    taskID,
			Step:      mixtape.Name,
			Status:    status,
			Message:   fmt.Sprintf("cached=%d skipped=%d failed=%d", summary.Cached, summary.Skipped, summary.Failed),
			Current:   total,
			Total:     total,
			Timestamp: time.Now(),
		})
	}()

	return taskID
}

// resolveTrackPath 把混音带里的相对路径解析到音乐根目录下
func resolveTrackPath(musicRoot, trackPath string) string {
	if filepath.IsAbs(trackPath) {
		return trackPath
	}
	return filepath.Join(musicRoot, trackPath)
}
