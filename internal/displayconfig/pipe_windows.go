//go:build windows

package displayconfig

import (
	"net"

	"github.com/Microsoft/go-winio"
)

func dialDisplayHelperPipe() (net.Conn, error) {
	return winio.DialPipe(pipeName, &connectTimeoutPtr)
}

var connectTimeoutPtr = connectTimeout
