package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// NotifyUser opens the report viewer for reportPath in a kitty window
func NotifyUser(reportPath string) error {
	cmd, err := viewerCommand(reportPath)
	if err != nil {
		return err
	}

	// Start the process without waiting, the window lives on its own
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch kitty with strmsync: %w", err)
	}
	return nil
}

func viewerCommand(reportPath string) (*exec.Cmd, error) {
	kittyPath, err := exec.LookPath("kitty")
	if err != nil {
		return nil, fmt.Errorf("kitty terminal not found: %w", err)
	}

	binaryPath, err := exec.LookPath("strmsync")
	if err != nil {
		// Fall back to a strmsync binary installed next to this one
		exe, exeErr := os.Executable()
		if exeErr != nil {
			return nil, fmt.Errorf("strmsync binary not found: %w", err)
		}
		binaryPath = filepath.Join(filepath.Dir(exe), "strmsync")
		if _, statErr := os.Stat(binaryPath); statErr != nil {
			return nil, fmt.Errorf("strmsync binary not found: %w", err)
		}
	}

	return exec.Command(kittyPath, "--hold", binaryPath, "view", reportPath), nil
}
