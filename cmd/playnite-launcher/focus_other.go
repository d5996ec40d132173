//go:build !windows

package main

// attemptFocus is a no-op off Windows: window-foreground control is a
// Win32 concept with no portable equivalent, matching the rest of the
// module's platform-gated helpers (see internal/proc's signal/shell split).
func attemptFocus(installDir string) bool { return false }

func terminateGracefulThenForceful(pid int) {}
