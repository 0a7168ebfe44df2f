package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"MixFM/core/progress"
	"MixFM/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler 处理 GET /editor/progress/{taskId}/ws
// 与 SSE 推送相同的事件流，供不方便使用 EventSource 的客户端
func (h *ProgressHandler) WSHandler(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	events, cancel, err := h.broadcaster.Subscribe(taskID)
	if errors.Is(err, progress.ErrUnknownTask) {
		http.Error(w, "unknown task", http.StatusNotFound)
		return
	}
	defer cancel()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug("websocket 写入失败，关闭连接", logger.ErrorField(err))
				return
			}
		}
	}
}
