package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"MixFM/cache"
	"MixFM/logger"
)

// AdminHandler 缓存管理接口
type AdminHandler struct {
	store *cache.AudioCache
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(store *cache.AudioCache) *AdminHandler {
	return &AdminHandler{store: store}
}

// CacheStatsHandler 处理 GET /admin/cache/stats
func (h *AdminHandler) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.CollectStats()
	if err != nil {
		logger.Error("统计缓存目录失败", logger.ErrorField(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// CacheClearHandler 处理 POST /admin/cache/clear?older_than_days=<int?>
// 省略参数时清空全部缓存
func (h *AdminHandler) CacheClearHandler(w http.ResponseWriter, r *http.Request) {
	olderThanDays := 0
	if raw := r.URL.Query().Get("older_than_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid older_than_days", http.StatusBadRequest)
			return
		}
		olderThanDays = parsed
	}

	deleted, err := h.store.Purge(olderThanDays)
	if err != nil {
		logger.Error("清理缓存失败", logger.ErrorField(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	message := fmt.Sprintf("deleted %d cached files", deleted)
	if olderThanDays > 0 {
		message = fmt.Sprintf("deleted %d cached files older than %d days", deleted, olderThanDays)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_files": deleted,
		"message":       message,
	})
}

// respondJSON 写出 JSON 响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("写入JSON响应失败", logger.ErrorField(err))
	}
}
