package output

import (
	"log/slog"
	"os"
	"strings"
)

// IsWSL checks if the current environment is Windows Subsystem for Linux
func IsWSL() bool {
	return detectWSLFromData(readProcVersion(), os.Getenv("WSL_DISTRO_NAME"))
}

// detectWSLFromData checks for WSL indicators in the provided data
func detectWSLFromData(procVersion, wslEnv string) bool {
	if wslEnv != "" {
		slog.Debug("WSL detected via environment variable", "distro", wslEnv)
		return true
	}

	procLower := strings.ToLower(procVersion)
	if strings.Contains(procLower, "microsoft") || strings.Contains(procLower, "wsl") {
		slog.Debug("WSL detected via /proc/version")
		return true
	}
	return false
}

func readProcVersion() string {
	content, err := os.ReadFile("/proc/version")
	if err != nil {
		slog.Debug("failed to read /proc/version", "error", err)
		return ""
	}
	return string(content)
}

// detectOptimalBackend picks a backend type from platform facts.
// WSL's ALSA bridge crackles under miniaudio, so oto is preferred there.
func detectOptimalBackend(isWSL, hasCGO bool) string {
	slog.Debug("detecting optimal output backend", "is_wsl", isWSL, "cgo", hasCGO)

	switch {
	case !hasCGO:
		return "headless"
	case isWSL:
		return "oto"
	default:
		return "malgo"
	}
}
