//go:build !windows

package playnite

// pluginExtensionDir has no equivalent off Windows: Playnite itself is a
// Windows-only application, so the install-detection gate is left open and
// dial failures alone govern connectivity.
func pluginExtensionDir() string { return "" }
