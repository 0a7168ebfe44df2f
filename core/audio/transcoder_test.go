package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"MixFM/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTranscodeRejectsOriginalQuality(t *testing.T) {
	tr := NewFFmpegTranscoder("ffmpeg")
	err := tr.Transcode(context.Background(), &model.Asset{}, model.QualityOriginal, "/tmp/out.mp3", false)
	if !errors.Is(err, ErrOriginalQuality) {
		t.Fatalf("err = %v, want ErrOriginalQuality", err)
	}
}

func TestTranscodeIdempotentWhenDestinationExists(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "cached.mp3")
	writeFile(t, dest, "already encoded")

	// 编码器路径故意无效：目标已存在时不应走到编码器
	tr := NewFFmpegTranscoder(filepath.Join(dir, "no-such-encoder"))
	err := tr.Transcode(context.Background(), &model.Asset{AbsolutePath: "/nonexistent.flac"}, model.QualityMedium, dest, false)
	if err != nil {
		t.Fatalf("目标已存在时应为空操作, got %v", err)
	}

	data, _ := os.ReadFile(dest)
	if string(data) != "already encoded" {
		t.Fatalf("缓存内容被改写: %q", data)
	}
}

func TestTranscodeSourceUnreadable(t *testing.T) {
	dir := t.TempDir()
	tr := NewFFmpegTranscoder("ffmpeg")

	err := tr.Transcode(context.Background(),
		&model.Asset{AbsolutePath: filepath.Join(dir, "missing.flac")},
		model.QualityMedium, filepath.Join(dir, "out.mp3"), false)
	if !errors.Is(err, ErrSourceUnreadable) {
		t.Fatalf("err = %v, want ErrSourceUnreadable", err)
	}
}

func TestTranscodeEncoderNotFound(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "track.flac")
	writeFile(t, source, "flac")

	tr := NewFFmpegTranscoder(filepath.Join(dir, "no-such-encoder"))
	err := tr.Transcode(context.Background(),
		&model.Asset{AbsolutePath: source},
		model.QualityMedium, filepath.Join(dir, "out.mp3"), false)
	if !errors.Is(err, ErrEncoderNotFound) {
		t.Fatalf("err = %v, want ErrEncoderNotFound", err)
	}
}

func TestTranscodeSuccessWithStubEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub encoder 依赖 /bin/sh")
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "track.flac")
	writeFile(t, source, "flacdata")

	// 伪编码器：向最后一个参数（输出文件）写入固定内容
	stub := filepath.Join(dir, "fake-ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\nprintf 'ENCODED' > \"$last\"\n"
	if err := os.WriteFile(stub, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "cache", "out.mp3")
	tr := NewFFmpegTranscoder(stub)
	err := tr.Transcode(context.Background(),
		&model.Asset{AbsolutePath: source},
		model.QualityLow, dest, false)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("输出文件未生成: %v", err)
	}
	if string(data) != "ENCODED" {
		t.Fatalf("输出内容 = %q", data)
	}

	// 临时文件必须已清理
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Fatalf("输出目录应只剩最终文件, got %d 个条目", len(entries))
	}
}

func TestTranscodeEncoderFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub encoder 依赖 /bin/sh")
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "track.flac")
	writeFile(t, source, "flacdata")

	stub := filepath.Join(dir, "fake-ffmpeg")
	script := "#!/bin/sh\necho 'boom: unsupported codec' >&2\nexit 3\n"
	if err := os.WriteFile(stub, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out.mp3")
	tr := NewFFmpegTranscoder(stub)
	err := tr.Transcode(context.Background(),
		&model.Asset{AbsolutePath: source},
		model.QualityMedium, dest, false)

	var encErr *EncoderError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want *EncoderError", err)
	}
	if encErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", encErr.ExitCode)
	}
	if encErr.StderrTail == "" {
		t.Error("StderrTail 不应为空")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("失败后不应留下目标文件")
	}
}

func TestTailOf(t *testing.T) {
	if got := tailOf("short", 10); got != "short" {
		t.Errorf("tailOf = %q", got)
	}
	if got := tailOf("0123456789", 4); got != "6789" {
		t.Errorf("tailOf = %q", got)
	}
}
