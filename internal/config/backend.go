package config

import (
	"fmt"
	"strings"
)

const (
	BackendNative   = "native"
	BackendPiperCLI = "piper-cli"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendNative
	}
	switch backend {
	case BackendNative, BackendPiperCLI:
		return backend, nil
	case "onnx":
		return BackendNative, nil
	case "cli", "piper":
		return BackendPiperCLI, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected %s|%s)", raw, BackendNative, BackendPiperCLI)
	}
}
