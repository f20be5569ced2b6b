//go:build !linux

package platform

import "fmt"

// RegisterURIScheme is only implemented for linux desktops.
func RegisterURIScheme(execPath string) error {
	return fmt.Errorf("URI scheme registration is not supported on this platform")
}
