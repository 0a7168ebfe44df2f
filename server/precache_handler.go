package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"MixFM/core/audio"
	"MixFM/logger"
	"MixFM/model"
	"MixFM/repository"
)

// PrecacheHandler 触发混音带批量预缓存
type PrecacheHandler struct {
	provider  repository.MixtapeProvider
	precache  *audio.PrecacheService
	musicRoot string
	qualities []model.Quality
}

// NewPrecacheHandler 创建 PrecacheHandler
func NewPrecacheHandler(provider repository.MixtapeProvider, precache *audio.PrecacheService, musicRoot string, qualities []model.Quality) *PrecacheHandler {
	return &PrecacheHandler{
		provider:  provider,
		precache:  precache,
		musicRoot: musicRoot,
		qualities: qualities,
	}
}

// PrecacheMixtapeHandler 处理 POST /api/mixtapes/{id}/precache
// 异步调度批量转码，立即返回任务 ID，进度通过 /editor/progress/{taskId} 订阅
func (h *PrecacheHandler) PrecacheMixtapeHandler(w http.ResponseWriter, r *http.Request) {
	mixtapeID := mux.Vars(r)["id"]

	mixtape, err := h.provider.GetMixtapeByID(mixtapeID)
	if err != nil {
		http.Error(w, "mixtape not found", http.StatusNotFound)
		return
	}

	taskID := h.precache.StartMixtapeTask(mixtape, h.musicRoot, h.qualities)

	logger.Info("混音带预缓存任务已调度",
		logger.String("mixtapeId", mixtapeID),
		logger.String("taskId", taskID),
		logger.Int("tracks", len(mixtape.Tracks)))

	respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
	})
}
