//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const desktopFileName = "entertainment-decider-client.desktop"

// RegisterURIScheme installs a .desktop file for the executable and
// makes it the default handler for the URI scheme.
func RegisterURIScheme(execPath string) error {
	dir := applicationsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create applications directory: %w", err)
	}

	path := filepath.Join(dir, desktopFileName)
	if err := os.WriteFile(path, []byte(DesktopEntry(execPath)), 0o644); err != nil {
		return fmt.Errorf("failed to write desktop file: %w", err)
	}

	handler := fmt.Sprintf("x-scheme-handler/%s", URIScheme)
	if err := exec.Command("xdg-mime", "default", desktopFileName, handler).Run(); err != nil {
		return fmt.Errorf("failed to set default scheme handler: %w", err)
	}

	// Not fatal, some desktops pick the new entry up without it.
	_ = exec.Command("update-desktop-database", dir).Run()
	return nil
}

func applicationsDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "applications")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "applications"
	}
	return filepath.Join(home, ".local", "share", "applications")
}
