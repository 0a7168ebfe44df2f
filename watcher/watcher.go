package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"MixFM/logger"
	"MixFM/model"
)

// settleDelay 新文件稳定等待时间，上传中的文件写入尚未完成
const settleDelay = 2 * time.Second

// UploadWatcher 监听音乐根目录，新出现的音频文件触发预缓存
type UploadWatcher struct {
	root      string
	onNewFile func(path string)

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New 创建 UploadWatcher，onNewFile 在新音频文件写入稳定后被调用
func New(root string, onNewFile func(path string)) (*UploadWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &UploadWatcher{
		root:      root,
		onNewFile: onNewFile,
		watcher:   fsWatcher,
		stopChan:  make(chan struct{}),
	}

	// fsnotify 不递归，逐个登记现有子目录
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if werr := fsWatcher.Add(path); werr != nil {
				logger.Warn("无法监听目录",
					logger.String("dir", path),
					logger.ErrorField(werr))
			}
		}
		return nil
	})
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// Start 启动监听协程
func (w *UploadWatcher) Start() {
	logger.Info("上传监听启动", logger.String("root", w.root))

	w.wg.Add(1)
	go w.loop()
}

// Stop 停止监听
func (w *UploadWatcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()
	w.wg.Wait()
}

func (w *UploadWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}

func (w *UploadWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	// 新目录加入监听
	if info.IsDir() {
		if err := w.watcher.Add(event.Name); err != nil {
			logger.Warn("无法监听新目录",
				logger.String("dir", event.Name),
				logger.ErrorField(err))
		}
		return
	}

	format := model.FormatOf(event.Name)
	if !model.IsAudioFormat(format) {
		return
	}

	logger.Info("检测到新音频文件",
		logger.String("path", event.Name),
		logger.String("format", format))

	// 等写入稳定后再触发回调，避免转码半个文件
	w.wg.Add(1)
	go func(path string) {
		defer w.wg.Done()

		select {
		case <-w.stopChan:
			return
		case <-time.After(settleDelay):
		}

		if w.onNewFile != nil {
			w.onNewFile(path)
		}
	}(event.Name)
}
