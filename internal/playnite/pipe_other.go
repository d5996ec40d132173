//go:build !windows

package playnite

import (
	"fmt"
	"net"
)

func dialPlayniteExtensionPipe() (net.Conn, error) {
	return nil, fmt.Errorf("playnite: extension pipe is Windows-only")
}
