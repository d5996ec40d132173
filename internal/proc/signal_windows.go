//go:build windows

package proc

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowThreadPID  = user32.NewProc("GetWindowThreadProcessId")
	procPostMessageW        = user32.NewProc("PostMessageW")

	wmClose          uint32 = 0x0010
	wmQueryEndSession uint32 = 0x0011
	wmQuit            uint32 = 0x0012
)

// sendEscalationSignal broadcasts progressively stronger window messages to
// every top-level window owned by pid, the close-all-windows →
// end-session → quit → kill" four-stage contract. Step 3 (kill) is handled
// separately by killProcess.
func sendEscalationSignal(pid int, step int) {
	var msg uint32
	switch step {
	case 0:
		msg = wmClose
	case 1:
		msg = wmQueryEndSession
	case 2:
		msg = wmQuit
	default:
		return
	}
	broadcastToPID(uint32(pid), msg)
}

func broadcastToPID(pid uint32, msg uint32) {
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		var owningPID uint32
		procGetWindowThreadPID.Call(hwnd, uintptr(unsafe.Pointer(&owningPID)))
		if owningPID == pid {
			procPostMessageW.Call(hwnd, uintptr(msg), 0, 0)
		}
		return 1 // continue enumeration
	})
	procEnumWindows.Call(cb, 0)
}

func killProcess(pid int) {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(h)
	_ = windows.TerminateProcess(h, 1)
}
