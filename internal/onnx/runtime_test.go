package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-piper-tts/internal/config"
)

func TestDetectRuntimeExplicitPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so.1.22.0")
	if err := os.WriteFile(lib, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write stub lib: %v", err)
	}

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib})
	if err != nil {
		t.Fatalf("DetectRuntime: %v", err)
	}

	if info.LibraryPath != lib {
		t.Errorf("LibraryPath = %q; want %q", info.LibraryPath, lib)
	}

	if info.Version != "1.22.0" {
		t.Errorf("Version = %q; want 1.22.0 (inferred from filename)", info.Version)
	}
}

func TestDetectRuntimeMissingPath(t *testing.T) {
	_, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "nope.so")})
	if err == nil {
		t.Fatal("expected error for missing library file")
	}
}

func TestDetectRuntimeVersionFromConfig(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write stub lib: %v", err)
	}

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib, ORTVersion: "1.19.2"})
	if err != nil {
		t.Fatalf("DetectRuntime: %v", err)
	}

	if info.Version != "1.19.2" {
		t.Errorf("Version = %q; want configured 1.19.2", info.Version)
	}
}

func TestInferVersionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/usr/lib/libonnxruntime.so.1.17.1", want: "1.17.1"},
		{path: "/usr/lib/libonnxruntime.so", want: ""},
		{path: "onnxruntime-1.20.0.dll", want: "1.20.0"},
	}

	for _, tt := range tests {
		if got := inferVersionFromPath(tt.path); got != tt.want {
			t.Errorf("inferVersionFromPath(%q) = %q; want %q", tt.path, got, tt.want)
		}
	}
}
