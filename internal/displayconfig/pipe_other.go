//go:build !windows

package displayconfig

import (
	"fmt"
	"net"
)

func dialDisplayHelperPipe() (net.Conn, error) {
	return nil, fmt.Errorf("displayconfig: display helper pipe is Windows-only")
}
