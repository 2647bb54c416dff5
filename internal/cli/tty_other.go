//go:build !linux

package cli

// IsTerminal reports false; colour output is only enabled on Linux.
func IsTerminal(fd int) bool {
	return false
}
