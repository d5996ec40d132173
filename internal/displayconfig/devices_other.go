//go:build !windows

package displayconfig

// EnumerateDevices returns an empty list on non-Windows hosts: the display
// topology is owned by the Windows helper process, so there is nothing to
// enumerate here.
func EnumerateDevices() ([]Device, error) {
	return nil, nil
}
