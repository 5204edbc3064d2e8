package daemon

import (
	"fmt"
	"os"
	"path/filepath"
)

// SystemdUnits holds a oneshot service running `strmsync run` and the timer
// that triggers it
type SystemdUnits struct {
	Service string
	Timer   string
}

// GenerateSystemdUnits creates systemd unit files for the given scan frequency
func GenerateSystemdUnits(frequency, binaryPath, configPath string) (SystemdUnits, error) {
	var onCalendar string

	switch frequency {
	case "hourly":
		onCalendar = "*-*-* *:00:00"
	case "daily":
		onCalendar = "*-*-* 02:00:00"
	case "weekly":
		onCalendar = "Sun *-*-* 02:00:00"
	default:
		return SystemdUnits{}, fmt.Errorf("invalid scan frequency: %s (must be hourly, daily, or weekly)", frequency)
	}

	execStart := binaryPath + " run"
	if configPath != "" {
		execStart += fmt.Sprintf(" --config %q", configPath)
	}

	service := fmt.Sprintf(`[Unit]
Description=strmsync pointer tree sync
After=network-online.target
Wants=network-online.target

[Service]
Type=oneshot
ExecStart=%s
`, execStart)

	timer := fmt.Sprintf(`[Unit]
Description=strmsync pointer tree sync timer
Requires=strmsync.service

[Timer]
OnCalendar=%s
Persistent=true

[Install]
WantedBy=timers.target
`, onCalendar)

	return SystemdUnits{Service: service, Timer: timer}, nil
}

// InstallSystemdUnits writes strmsync.service and strmsync.timer into dir
// and returns the written paths
func InstallSystemdUnits(dir string, units SystemdUnits) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create unit directory: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{"strmsync.service", units.Service},
		{"strmsync.timer", units.Timer},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
