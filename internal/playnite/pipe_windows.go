//go:build windows

package playnite

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

const playniteExtensionPipeName = `\\.\pipe\Sunshine.PlayniteExtension`

var playniteDialTimeout = 2 * time.Second

func dialPlayniteExtensionPipe() (net.Conn, error) {
	return winio.DialPipe(playniteExtensionPipeName, &playniteDialTimeout)
}
