package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"MixFM/cache"
	"MixFM/core/progress"
	"MixFM/model"
)

// failingTranscoder 指定路径的任务失败，其余成功
type failingTranscoder struct {
	calls    int32
	failPath string
	gate     chan struct{} // 非 nil 时转码阻塞到 gate 关闭
}

func (f *failingTranscoder) Transcode(ctx context.Context, asset *model.Asset, quality model.Quality, destination string, overwrite bool) error {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if asset.AbsolutePath == f.failPath {
		return errors.New("encoder blew up")
	}
	return os.WriteFile(destination, []byte("encoded"), 0644)
}

func makeTracks(t *testing.T, dir string, names ...string) ([]model.Track, []*model.Asset) {
	t.Helper()
	tracks := make([]model.Track, len(names))
	assets := make([]*model.Asset, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
		tracks[i] = model.Track{Title: name, FilePath: name}
		assets[i] = &model.Asset{AbsolutePath: path, Format: model.FormatOf(path)}
	}
	return tracks, assets
}

func TestScheduleCachingCompleteness(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(t.TempDir(), true)
	tracks, assets := makeTracks(t, dir, "a.flac", "b.flac", "c.mp3")

	tr := &failingTranscoder{failPath: assets[1].AbsolutePath}
	svc := NewPrecacheService(store, tr, progress.NewBroadcaster(), 4)

	qualities := []model.Quality{model.QualityMedium, model.QualityLow}
	var events []model.ProgressEvent
	summary := svc.ScheduleCaching(context.Background(), "task1", tracks, assets, qualities, func(e model.ProgressEvent) {
		events = append(events, e)
	})

	total := len(tracks) * len(qualities)
	if got := summary.Cached + summary.Skipped + summary.Failed; got != total {
		t.Fatalf("cached+skipped+failed = %d, want %d", got, total)
	}
	// a.flac 两个音质成功，b.flac 两个失败，c.mp3 有损跳过
	if summary.Cached != 2 {
		t.Errorf("Cached = %d, want 2", summary.Cached)
	}
	if summary.Failed != 2 {
		t.Errorf("Failed = %d, want 2", summary.Failed)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}

	// 进度计数必须严格单调递增到 total，每个任务恰好一次
	if len(events) != total {
		t.Fatalf("进度事件数 = %d, want %d", len(events), total)
	}
	for i, e := range events {
		if e.Current != i+1 {
			t.Fatalf("events[%d].Current = %d, want %d", i, e.Current, i+1)
		}
		if e.Total != total {
			t.Fatalf("events[%d].Total = %d, want %d", i, e.Total, total)
		}
	}
}

// 子任务结果只通过 Outcome 字段上报，Status 保持 in_progress，
// 失败的子任务不会提前终止事件流
func TestScheduleCachingEventOutcomes(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(t.TempDir(), true)
	tracks, assets := makeTracks(t, dir, "ok.flac", "bad.flac", "lossy.mp3")

	tr := &failingTranscoder{failPath: assets[1].AbsolutePath}
	svc := NewPrecacheService(store, tr, progress.NewBroadcaster(), 2)

	var events []model.ProgressEvent
	svc.ScheduleCaching(context.Background(), "task-outcome", tracks, assets,
		[]model.Quality{model.QualityMedium}, func(e model.ProgressEvent) {
			events = append(events, e)
		})

	counts := map[model.JobOutcome]int{}
	for _, e := range events {
		if e.Status != model.ProgressInProgress {
			t.Fatalf("子任务事件 Status = %s, want in_progress", e.Status)
		}
		counts[e.Outcome]++
	}

	if counts[model.OutcomeCached] != 1 {
		t.Errorf("cached 事件数 = %d, want 1", counts[model.OutcomeCached])
	}
	if counts[model.OutcomeFailed] != 1 {
		t.Errorf("failed 事件数 = %d, want 1", counts[model.OutcomeFailed])
	}
	if counts[model.OutcomeSkipped] != 1 {
		t.Errorf("skipped 事件数 = %d, want 1", counts[model.OutcomeSkipped])
	}
}

func TestScheduleCachingSkipsAlreadyCached(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(t.TempDir(), true)
	tracks, assets := makeTracks(t, dir, "a.flac")

	cachePath := store.CachePathFor(assets[0], model.QualityMedium)
	if err := os.WriteFile(cachePath, []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	tr := &failingTranscoder{}
	svc := NewPrecacheService(store, tr, progress.NewBroadcaster(), 2)

	summary := svc.ScheduleCaching(context.Background(), "task2", tracks, assets,
		[]model.Quality{model.QualityMedium}, nil)

	if summary.Skipped != 1 || summary.Cached != 0 {
		t.Fatalf("已缓存任务应跳过: %+v", summary)
	}
	if tr.calls != 0 {
		t.Fatal("已缓存任务不应调用编码器")
	}
}

func TestScheduleCachingMissingSource(t *testing.T) {
	store := cache.NewAudioCache(t.TempDir(), true)
	tracks := []model.Track{{Title: "ghost", FilePath: "ghost.flac"}}
	assets := []*model.Asset{nil} // 源文件解析失败

	svc := NewPrecacheService(store, &failingTranscoder{}, progress.NewBroadcaster(), 2)
	summary := svc.ScheduleCaching(context.Background(), "task3", tracks, assets,
		[]model.Quality{model.QualityMedium}, nil)

	if summary.Failed != 1 {
		t.Fatalf("缺失源文件应计为失败: %+v", summary)
	}
}

func TestStartMixtapeTaskPublishesTerminalEvent(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(t.TempDir(), true)

	path := filepath.Join(dir, "a.flac")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	// gate 保证订阅建立后转码才开始
	gate := make(chan struct{})
	tr := &failingTranscoder{gate: gate}
	broadcaster := progress.NewBroadcaster()
	svc := NewPrecacheService(store, tr, broadcaster, 2)

	mixtape := &model.Mixtape{
		ID:     "m1",
		Name:   "roadtrip",
		Tracks: []model.Track{{Title: "a", FilePath: "a.flac"}},
	}

	taskID := svc.StartMixtapeTask(mixtape, dir, []model.Quality{model.QualityMedium})
	if taskID == "" {
		t.Fatal("taskID 为空")
	}

	events, cancel, err := broadcaster.Subscribe(taskID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()
	close(gate)

	var last model.ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				if !last.IsTerminal() {
					t.Fatalf("流结束但最后事件不是终止事件: %+v", last)
				}
				if last.Status != model.ProgressCompleted {
					t.Fatalf("status = %s, want completed", last.Status)
				}
				return
			}
			last = e
		case <-timeout:
			t.Fatal("等待终止事件超时")
		}
	}
}
