package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
reporting:
  horizon_days: 90
webhooks:
  - url: https://example.com/hook
    events: [report.generate]
    timeout_seconds: 3
`))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Reporting.HorizonDays != 90 {
		t.Fatalf("horizon_days = %d, want 90", cfg.Reporting.HorizonDays)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].URL != "https://example.com/hook" {
		t.Fatalf("unexpected webhooks: %#v", cfg.Webhooks)
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("webhooks: []\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Reporting.HorizonDays != 365 {
		t.Fatalf("horizon_days = %d, want default 365", cfg.Reporting.HorizonDays)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"zero horizon", "reporting:\n  horizon_days: 0\n", "horizon_days"},
		{"webhook without url", "webhooks:\n  - events: [report.generate]\n", "url is required"},
		{"negative timeout", "webhooks:\n  - url: https://x\n    timeout_seconds: -1\n", "timeout_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("LoadOptional without file: %v", err)
	}
	if cfg.Reporting.HorizonDays != 365 {
		t.Fatalf("horizon_days = %d, want default 365", cfg.Reporting.HorizonDays)
	}

	if err := os.WriteFile(filepath.Join(dir, "slatrack.yml"), []byte("reporting:\n  horizon_days: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("LoadOptional with file: %v", err)
	}
	if cfg.Reporting.HorizonDays != 30 {
		t.Fatalf("horizon_days = %d, want 30", cfg.Reporting.HorizonDays)
	}
}
