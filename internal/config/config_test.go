// File: internal/config/config_test.go
// Brief: Manifest loading, defaulting, and validation tests.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalManifest = `
app: football-stats
region: eu-west-1
artifactBucket: football-stats-artifacts
sources:
  - root: scraper
    prefix: scraper
scheduler:
  entryPoint: lambda_functions/schedule_updater.py
collector:
  entryPoint: lambda_functions/stats_collector.py
layer:
  groups:
    - name: browser
      dependencies:
        - name: playwright
          version: 1.49.1
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsdeploy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeManifest(t, minimalManifest))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime != "python3.12" {
		t.Fatalf("runtime default = %q", cfg.Runtime)
	}
	if cfg.Schedule != "cron(0 6 * * ? *)" {
		t.Fatalf("schedule default = %q", cfg.Schedule)
	}
	if cfg.Layer.Name != "football-stats-deps" {
		t.Fatalf("layer name default = %q", cfg.Layer.Name)
	}
	if cfg.LayerBudget() != 250<<20 {
		t.Fatalf("layer budget default = %d", cfg.LayerBudget())
	}
	if cfg.Layer.TreeRoot != "python/lib/python3.12/site-packages" {
		t.Fatalf("tree root default = %q", cfg.Layer.TreeRoot)
	}
	if cfg.Scheduler.Name != "schedule-updater" || cfg.Collector.Name != "stats-collector" {
		t.Fatalf("function name defaults = %q / %q", cfg.Scheduler.Name, cfg.Collector.Name)
	}
	if cfg.Collector.Timeout != 5*time.Minute {
		t.Fatalf("collector timeout default = %v", cfg.Collector.Timeout)
	}
	if cfg.Secrets.GoogleCredentialsName != "football-scraper/google-credentials" {
		t.Fatalf("secret name default = %q", cfg.Secrets.GoogleCredentialsName)
	}
	if got := cfg.FunctionFullName(cfg.Scheduler); got != "football-stats-schedule-updater" {
		t.Fatalf("full name = %q", got)
	}
}

func TestLoadRejectsInvalidManifests(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing app",
			mutate:  func(s string) string { return strings.Replace(s, "app: football-stats", "app: \"\"", 1) },
			wantErr: "app name is required",
		},
		{
			name:    "missing bucket",
			mutate:  func(s string) string { return strings.Replace(s, "artifactBucket: football-stats-artifacts", "artifactBucket: \"\"", 1) },
			wantErr: "artifactBucket is required",
		},
		{
			name: "missing entry point",
			mutate: func(s string) string {
				return strings.Replace(s, "entryPoint: lambda_functions/stats_collector.py", "entryPoint: \"\"", 1)
			},
			wantErr: "entryPoint is required",
		},
		{
			name:    "empty dependency group",
			mutate:  func(s string) string { return strings.Replace(s, "      dependencies:\n        - name: playwright\n          version: 1.49.1\n", "", 1) },
			wantErr: "no dependencies declared",
		},
		{
			name:    "bad schedule",
			mutate:  func(s string) string { return s + "schedule: every day\n" },
			wantErr: "cron() or rate()",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tc.mutate(minimalManifest)))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsDuplicateGroups(t *testing.T) {
	body := minimalManifest + `    - name: browser
      dependencies:
        - name: requests
          version: 2.32.0
`
	_, err := Load(writeManifest(t, body))
	if err == nil || !strings.Contains(err.Error(), "duplicate group") {
		t.Fatalf("error = %v, want duplicate group", err)
	}
}

func TestExampleRoundTrips(t *testing.T) {
	data, err := Example()
	if err != nil {
		t.Fatalf("Example: %v", err)
	}
	cfg, err := Load(writeManifest(t, string(data)))
	if err != nil {
		t.Fatalf("Load(example): %v", err)
	}
	if cfg.App != "football-stats" {
		t.Fatalf("app = %q", cfg.App)
	}
	if len(cfg.Layer.Groups) != 2 {
		t.Fatalf("groups = %d", len(cfg.Layer.Groups))
	}
}
