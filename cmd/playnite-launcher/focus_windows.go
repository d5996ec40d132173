//go:build windows

package main

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowThreadPID  = user32.NewProc("GetWindowThreadProcessId")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
)

// attemptFocus finds the first visible top-level window owned by a process
// whose image path lives under installDir and brings it to the foreground,
// reporting whether the foreground window changed.
func attemptFocus(installDir string) bool {
	before, _, _ := procGetForegroundWindow.Call()

	var target uintptr
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}
		var pid uint32
		procGetWindowThreadPID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if processUnderDir(pid, installDir) {
			target = hwnd
			return 0
		}
		return 1
	})
	procEnumWindows.Call(cb, 0)
	if target == 0 {
		return false
	}
	procSetForegroundWindow.Call(target)
	after, _, _ := procGetForegroundWindow.Call()
	return after == target && after != before
}

// terminateGracefulThenForceful ends pid at once with TerminateProcess; no
// close request is sent first and there is no grace period.
func terminateGracefulThenForceful(pid int) {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(h)
	_ = windows.TerminateProcess(h, 1)
}
