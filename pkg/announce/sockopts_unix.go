//go:build !windows

package announce

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReuseAddr is a net.ListenConfig.Control hook that sets SO_REUSEADDR
// on the announcement socket before it is bound.
func controlReuseAddr(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			ctrlErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return ctrlErr
}
