//go:build windows

package announce

import "syscall"

// controlReuseAddr is a no-op on Windows, where Go's net package does not
// set SO_EXCLUSIVEADDRUSE by default and rebinding works without help.
func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
