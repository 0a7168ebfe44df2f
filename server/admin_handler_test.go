package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MixFM/cache"
)

func TestCacheStatsHandler(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(dir, true)

	if err := os.WriteFile(filepath.Join(dir, "x.mp3"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	handler := NewAdminHandler(store)
	w := httptest.NewRecorder()
	handler.CacheStatsHandler(w, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var payload struct {
		SizeBytes int64   `json:"cache_size_bytes"`
		SizeMB    float64 `json:"cache_size_mb"`
		Files     int     `json:"cached_files"`
		Dir       string  `json:"cache_dir"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	if payload.SizeBytes != 2048 {
		t.Errorf("cache_size_bytes = %d, want 2048", payload.SizeBytes)
	}
	if payload.Files != 1 {
		t.Errorf("cached_files = %d, want 1", payload.Files)
	}
	if payload.Dir != dir {
		t.Errorf("cache_dir = %q, want %q", payload.Dir, dir)
	}
}

func TestCacheClearHandlerAll(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(dir, true)

	for _, name := range []string{"a.mp3", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	handler := NewAdminHandler(store)
	w := httptest.NewRecorder()
	handler.CacheClearHandler(w, httptest.NewRequest(http.MethodPost, "/admin/cache/clear", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var payload struct {
		DeletedFiles int    `json:"deleted_files"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.DeletedFiles != 2 {
		t.Errorf("deleted_files = %d, want 2", payload.DeletedFiles)
	}
	if payload.Message == "" {
		t.Error("message 不应为空")
	}
}

func TestCacheClearHandlerOlderThan(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewAudioCache(dir, true)

	old := time.Now().AddDate(0, 0, -40)
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".mp3")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if i < 3 {
			if err := os.Chtimes(path, old, old); err != nil {
				t.Fatal(err)
			}
		}
	}

	handler := NewAdminHandler(store)
	w := httptest.NewRecorder()
	handler.CacheClearHandler(w, httptest.NewRequest(http.MethodPost, "/admin/cache/clear?older_than_days=30", nil))

	var payload struct {
		DeletedFiles int `json:"deleted_files"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.DeletedFiles != 3 {
		t.Errorf("deleted_files = %d, want 3", payload.DeletedFiles)
	}

	stats, _ := store.CollectStats()
	if stats.Files != 7 {
		t.Errorf("剩余 %d 个文件, want 7", stats.Files)
	}
}

func TestCacheClearHandlerInvalidParam(t *testing.T) {
	handler := NewAdminHandler(cache.NewAudioCache(t.TempDir(), true))

	for _, query := range []string{"older_than_days=abc", "older_than_days=-5"} {
		w := httptest.NewRecorder()
		handler.CacheClearHandler(w, httptest.NewRequest(http.MethodPost, "/admin/cache/clear?"+query, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %s: status = %d, want 400", query, w.Code)
		}
	}
}
