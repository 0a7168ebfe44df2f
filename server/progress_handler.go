package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"MixFM/core/progress"
	"MixFM/logger"
)

// ProgressHandler 以 Server-Sent Events 推送批量任务进度
type ProgressHandler struct {
	broadcaster *progress.Broadcaster
}

// NewProgressHandler 创建 ProgressHandler
func NewProgressHandler(broadcaster *progress.Broadcaster) *ProgressHandler {
	return &ProgressHandler{broadcaster: broadcaster}
}

// SSEHandler 处理 GET /editor/progress/{taskId}
// 任务终止或客户端断开时结束流
func (h *ProgressHandler) SSEHandler(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	events, cancel, err := h.broadcaster.Subscribe(taskID)
	if errors.Is(err, progress.ErrUnknownTask) {
		http.Error(w, "unknown task", http.StatusNotFound)
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				// 任务终止，广播器已关闭通道
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("序列化进度事件失败", logger.ErrorField(err))
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
