//go:build !windows

package capture

import (
	"fmt"
	"net"
)

func listenPipe(name string) (net.Listener, error) {
	return nil, fmt.Errorf("capture: capture helper pipes are Windows-only")
}
