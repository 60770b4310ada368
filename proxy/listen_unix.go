//go:build unix

package proxy

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listen binds addr with SO_REUSEADDR set explicitly. The net package
// already sets it on unix listeners; the Control hook pins the option
// regardless of runtime defaults.
func listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, rc syscall.RawConn) error {
			var sockErr error
			if err := rc.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	return lc.Listen(context.Background(), "tcp", addr)
}
