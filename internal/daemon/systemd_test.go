package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateSystemdUnits(t *testing.T) {
	tests := []struct {
		frequency string
		calendar  string
		wantErr   bool
	}{
		{"hourly", "OnCalendar=*-*-* *:00:00", false},
		{"daily", "OnCalendar=*-*-* 02:00:00", false},
		{"weekly", "OnCalendar=Sun *-*-* 02:00:00", false},
		{"biweekly", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			units, err := GenerateSystemdUnits(tt.frequency, "/usr/local/bin/strmsync", "/etc/strmsync/config.toml")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(units.Timer, tt.calendar) {
				t.Errorf("timer missing %q:\n%s", tt.calendar, units.Timer)
			}
			want := `ExecStart=/usr/local/bin/strmsync run --config "/etc/strmsync/config.toml"`
			if !strings.Contains(units.Service, want) {
				t.Errorf("service missing %q:\n%s", want, units.Service)
			}
		})
	}
}

func TestGenerateSystemdUnitsDefaultConfig(t *testing.T) {
	units, err := GenerateSystemdUnits("daily", "/usr/bin/strmsync", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(units.Service, "ExecStart=/usr/bin/strmsync run\n") {
		t.Errorf("unexpected service:\n%s", units.Service)
	}
}

func TestInstallSystemdUnits(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "systemd")
	units := SystemdUnits{Service: "service", Timer: "timer"}

	paths, err := InstallSystemdUnits(dir, units)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 unit files, got %v", paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, "strmsync.timer"))
	if err != nil || string(data) != "timer" {
		t.Errorf("timer file = %q, %v", data, err)
	}
}
