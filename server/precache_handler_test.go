package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"MixFM/cache"
	"MixFM/core/audio"
	"MixFM/core/progress"
	"MixFM/model"
	"MixFM/repository"
)

func TestPrecacheMixtapeHandler(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	provider := repository.NewInMemoryMixtapeProvider()
	provider.Put(&model.Mixtape{
		ID:     "m1",
		Name:   "roadtrip",
		Tracks: []model.Track{{Title: "a", FilePath: "a.mp3"}},
	})

	store := cache.NewAudioCache(t.TempDir(), true)
	broadcaster := progress.NewBroadcaster()
	precacheService := audio.NewPrecacheService(store, audio.NewFFmpegTranscoder("ffmpeg"), broadcaster, 2)

	handler := NewPrecacheHandler(provider, precacheService, root, []model.Quality{model.QualityMedium})
	router := mux.NewRouter()
	router.HandleFunc("/api/mixtapes/{id}/precache", handler.PrecacheMixtapeHandler).Methods(http.MethodPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mixtapes/m1/precache", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.TaskID == "" {
		t.Fatal("task_id 为空")
	}
}

func TestPrecacheMixtapeHandlerNotFound(t *testing.T) {
	handler := NewPrecacheHandler(
		repository.NewInMemoryMixtapeProvider(),
		audio.NewPrecacheService(cache.NewAudioCache(t.TempDir(), true), audio.NewFFmpegTranscoder("ffmpeg"), progress.NewBroadcaster(), 2),
		t.TempDir(),
		[]model.Quality{model.QualityMedium},
	)

	router := mux.NewRouter()
	router.HandleFunc("/api/mixtapes/{id}/precache", handler.PrecacheMixtapeHandler).Methods(http.MethodPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mixtapes/ghost/precache", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
