//go:build windows

package displayconfig

import (
	"syscall"
	"unsafe"
)

var (
	user32                = syscall.NewLazyDLL("user32.dll")
	procEnumDisplayDevices = user32.NewProc("EnumDisplayDevicesW")
)

const (
	displayDeviceActive  = 0x00000001
	displayDevicePrimary = 0x00000004
)

type displayDeviceW struct {
	Cb           uint32
	DeviceName   [32]uint16
	DeviceString [128]uint16
	StateFlags   uint32
	DeviceID     [128]uint16
	DeviceKey    [128]uint16
}

// EnumerateDevices walks the adapter list via EnumDisplayDevicesW, returning
// one Device per attached display output.
func EnumerateDevices() ([]Device, error) {
	var out []Device
	for i := uint32(0); ; i++ {
		var dd displayDeviceW
		dd.Cb = uint32(unsafe.Sizeof(dd))
		ret, _, _ := procEnumDisplayDevices.Call(0, uintptr(i), uintptr(unsafe.Pointer(&dd)), 0)
		if ret == 0 {
			break
		}
		name := syscall.UTF16ToString(dd.DeviceName[:])

		// Second-level call resolves the monitor's stable device id.
		var mon displayDeviceW
		mon.Cb = uint32(unsafe.Sizeof(mon))
		namePtr, err := syscall.UTF16PtrFromString(name)
		if err != nil {
			continue
		}
		deviceID := ""
		friendly := syscall.UTF16ToString(dd.DeviceString[:])
		if ret, _, _ := procEnumDisplayDevices.Call(uintptr(unsafe.Pointer(namePtr)), 0, uintptr(unsafe.Pointer(&mon)), 1); ret != 0 {
			deviceID = syscall.UTF16ToString(mon.DeviceID[:])
			friendly = syscall.UTF16ToString(mon.DeviceString[:])
		}

		out = append(out, Device{
			DeviceID:     deviceID,
			DeviceName:   name,
			FriendlyName: friendly,
			Active:       dd.StateFlags&displayDeviceActive != 0,
			Primary:      dd.StateFlags&displayDevicePrimary != 0,
		})
	}
	return out, nil
}
