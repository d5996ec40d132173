//go:build windows

package capture

import (
	"net"

	"github.com/Microsoft/go-winio"
)

func listenPipe(name string) (net.Listener, error) {
	return winio.ListenPipe(name, nil)
}
