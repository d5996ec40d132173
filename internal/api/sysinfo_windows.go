//go:build windows

package api

import (
	"os"
	"path/filepath"
)

// vigemHealth reports whether the ViGEmBus gamepad driver is installed by
// probing its driver binary under the system root.
func vigemHealth() (bool, string) {
	root := os.Getenv("SystemRoot")
	if root == "" {
		root = `C:\Windows`
	}
	path := filepath.Join(root, "System32", "drivers", "ViGEmBus.sys")
	if _, err := os.Stat(path); err != nil {
		return false, "ViGEmBus driver not found; gamepad emulation unavailable"
	}
	return true, ""
}

// crashDumpPath returns the most recent crash dump next to the log file, or
// "" when none exists.
func crashDumpPath(logPath string) string {
	dump := filepath.Join(filepath.Dir(logPath), "sunshine_crash.dmp")
	if _, err := os.Stat(dump); err != nil {
		return ""
	}
	return dump
}
