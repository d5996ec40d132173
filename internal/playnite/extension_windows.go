//go:build windows

package playnite

import (
	"os"
	"path/filepath"
)

// pluginExtensionDir is the install path of the Sunshine Playnite extension
// PowerShell module.
func pluginExtensionDir() string {
	return filepath.Join(os.Getenv("LocalAppData"), "Playnite", "Extensions", "SunshinePlaynite")
}
