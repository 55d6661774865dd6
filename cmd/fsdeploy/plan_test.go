// File: cmd/fsdeploy/plan_test.go
// Brief: CLI-level tests for plan preview, init, and confirmation.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/config"
)

const testManifest = `
app: football-stats
region: eu-west-1
artifactBucket: football-stats-artifacts
sources:
  - root: lambda_functions
    prefix: lambda_functions
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

func TestPlanCommandPrintsWaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsdeploy.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cmd := newPlanCommand(&rootOptions{ConfigPath: path, LogLevel: "info"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan: %v\n%s", err, out.String())
	}
	text := out.String()
	for _, want := range []string{"wave 1", "alert-topic", "fn-schedule-updater", "schedule-trigger", "cron(0 6 * * ? *)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("plan output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "google-credentials") {
		t.Fatalf("credentials step shown without --with-credentials:\n%s", text)
	}
}

func TestPlanCommandWithCredentialsShowsSecretStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsdeploy.yaml")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cmd := newPlanCommand(&rootOptions{ConfigPath: path})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--with-credentials"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out.String(), "google-credentials") {
		t.Fatalf("credentials step missing:\n%s", out.String())
	}
}

func TestInitWritesLoadableManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := config.Load(config.DefaultPath); err != nil {
		t.Fatalf("generated manifest does not load: %v", err)
	}
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init err = %v", err)
	}
}

func TestConfirmApprovalPaths(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(""))
	cmd.SetErr(&bytes.Buffer{})

	if ok, err := confirm(cmd, "proceed?", true, false); err != nil || !ok {
		t.Fatalf("--yes: ok=%v err=%v", ok, err)
	}
	if _, err := confirm(cmd, "proceed?", false, true); err == nil {
		t.Fatalf("--non-interactive without --yes did not fail")
	}
	t.Setenv("FSDEPLOY_YES", "true")
	if ok, err := confirm(cmd, "proceed?", false, false); err != nil || !ok {
		t.Fatalf("env approval: ok=%v err=%v", ok, err)
	}
	t.Setenv("FSDEPLOY_YES", "")
	if _, err := confirm(cmd, "proceed?", false, false); err == nil {
		t.Fatalf("prompt without a terminal did not fail")
	}
}
