// File: internal/config/config.go
// Brief: Deployment manifest types, loading, defaults, and validation.

// Package config defines the fsdeploy.yaml deployment manifest: the
// application identity, the two scheduled functions, the dependency layer
// groups, and the alerting/trigger wiring. Flag and environment overrides
// are layered on top by the CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/fsdeploy/internal/layer"
)

// SourceSpec is one local tree packaged into function code bundles.
type SourceSpec struct {
	Root   string `yaml:"root"`
	Prefix string `yaml:"prefix,omitempty"`
}

// FunctionSpec describes one deployable scheduled function.
type FunctionSpec struct {
	Name       string        `yaml:"name"`
	EntryPoint string        `yaml:"entryPoint"`
	Handler    string        `yaml:"handler,omitempty"`
	MemoryMB   int           `yaml:"memoryMB,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// LayerSpec declares the shared dependency layer and its static partition.
type LayerSpec struct {
	Name     string        `yaml:"name,omitempty"`
	BudgetMB int64         `yaml:"budgetMB,omitempty"`
	TreeRoot string        `yaml:"treeRoot,omitempty"`
	Groups   []layer.Group `yaml:"groups"`
}

// SecretsSpec names the one-time Google credentials secret.
type SecretsSpec struct {
	GoogleCredentialsName string `yaml:"googleCredentialsName,omitempty"`
	GoogleCredentialsFile string `yaml:"googleCredentialsFile,omitempty"`
}

// Config is the full deployment manifest.
type Config struct {
	App            string       `yaml:"app"`
	Region         string       `yaml:"region"`
	ArtifactBucket string       `yaml:"artifactBucket"`
	AlertEmail     string       `yaml:"alertEmail,omitempty"`
	Runtime        string       `yaml:"runtime,omitempty"`
	Schedule       string       `yaml:"schedule,omitempty"`
	Sources        []SourceSpec `yaml:"sources"`
	Scheduler      FunctionSpec `yaml:"scheduler"`
	Collector      FunctionSpec `yaml:"collector"`
	Layer          LayerSpec    `yaml:"layer"`
	Secrets        SecretsSpec  `yaml:"secrets,omitempty"`
}

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "fsdeploy.yaml"

// Load reads and validates a manifest file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Runtime == "" {
		c.Runtime = "python3.12"
	}
	if c.Schedule == "" {
		// 06:00 UTC daily, ahead of the first European kickoffs.
		c.Schedule = "cron(0 6 * * ? *)"
	}
	if c.Layer.Name == "" {
		c.Layer.Name = c.App + "-deps"
	}
	if c.Layer.BudgetMB <= 0 {
		c.Layer.BudgetMB = 250
	}
	if c.Layer.TreeRoot == "" {
		c.Layer.TreeRoot = "python/lib/" + c.Runtime + "/site-packages"
	}
	if c.Secrets.GoogleCredentialsName == "" {
		c.Secrets.GoogleCredentialsName = "football-scraper/google-credentials"
	}
	applyFunctionDefaults(&c.Scheduler, "schedule-updater")
	applyFunctionDefaults(&c.Collector, "stats-collector")
}

func applyFunctionDefaults(fn *FunctionSpec, name string) {
	if fn.Name == "" {
		fn.Name = name
	}
	if fn.Handler == "" {
		fn.Handler = "lambda_function.lambda_handler"
	}
	if fn.MemoryMB <= 0 {
		fn.MemoryMB = 1024
	}
	if fn.Timeout <= 0 {
		fn.Timeout = 5 * time.Minute
	}
}

// Validate checks the manifest for the problems a deploy would otherwise
// hit mid-pipeline.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App) == "" {
		return fmt.Errorf("app name is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("region is required")
	}
	if strings.TrimSpace(c.ArtifactBucket) == "" {
		return fmt.Errorf("artifactBucket is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source tree is required")
	}
	for _, fn := range []FunctionSpec{c.Scheduler, c.Collector} {
		if strings.TrimSpace(fn.EntryPoint) == "" {
			return fmt.Errorf("function %s: entryPoint is required", fn.Name)
		}
	}
	if c.Scheduler.Name == c.Collector.Name {
		return fmt.Errorf("scheduler and collector cannot share the name %q", c.Scheduler.Name)
	}
	if len(c.Layer.Groups) == 0 {
		return fmt.Errorf("layer: at least one dependency group is required")
	}
	seen := map[string]struct{}{}
	for _, g := range c.Layer.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("layer: group with empty name")
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("layer: duplicate group %q", g.Name)
		}
		seen[g.Name] = struct{}{}
		if len(g.Dependencies) == 0 {
			return fmt.Errorf("layer group %s: no dependencies declared", g.Name)
		}
	}
	if !strings.HasPrefix(c.Schedule, "cron(") && !strings.HasPrefix(c.Schedule, "rate(") {
		return fmt.Errorf("schedule %q must be a cron() or rate() expression", c.Schedule)
	}
	return nil
}

// LayerBudget returns the byte ceiling for the uncompressed layer tree.
func (c *Config) LayerBudget() int64 {
	return c.Layer.BudgetMB << 20
}

// FunctionFullName returns the platform-visible function name.
func (c *Config) FunctionFullName(fn FunctionSpec) string {
	return c.App + "-" + fn.Name
}

// Example renders a starter manifest for `fsdeploy init`.
func Example() ([]byte, error) {
	cfg := Config{
		App:            "football-stats",
		Region:         "eu-west-1",
		ArtifactBucket: "football-stats-artifacts",
		AlertEmail:     "ops@example.com",
		Schedule:       "cron(0 6 * * ? *)",
		Sources: []SourceSpec{
			{Root: "lambda_functions", Prefix: "lambda_functions"},
			{Root: "scraper", Prefix: "scraper"},
			{Root: "models", Prefix: "models"},
			{Root: "storage", Prefix: "storage"},
			{Root: "utils", Prefix: "utils"},
			{Root: "config_totalcorner.py"},
		},
		Scheduler: FunctionSpec{Name: "schedule-updater", EntryPoint: "lambda_functions/schedule_updater.py"},
		Collector: FunctionSpec{Name: "stats-collector", EntryPoint: "lambda_functions/stats_collector.py", MemoryMB: 2048, Timeout: 10 * time.Minute},
		Layer: LayerSpec{
			Groups: []layer.Group{
				{Name: "browser", Dependencies: []layer.Dependency{{Name: "playwright", Version: "1.49.1"}}},
				{Name: "integrations", Dependencies: []layer.Dependency{
					{Name: "gspread", Version: "6.1.4"},
					{Name: "google-auth", Version: "2.37.0"},
					{Name: "gspread-dataframe", Version: "4.0.0"},
				}},
			},
		},
	}
	return yaml.Marshal(&cfg)
}
