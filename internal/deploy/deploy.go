// File: internal/deploy/deploy.go
// Brief: Deployment step graph: stacks, artifacts, secrets, and triggers.

// Package deploy assembles the full deployment plan for one application: the
// alerting topic, the data stores, the execution role, the dependency layer,
// both function stacks, the alarm set, and the schedule trigger. Each concern
// is one pipeline step; data flows between steps only through captured stack
// outputs, so the plan compiler proves the ordering before anything runs.
package deploy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/awsx"
	"github.com/example/fsdeploy/internal/bundle"
	"github.com/example/fsdeploy/internal/config"
	"github.com/example/fsdeploy/internal/layer"
	"github.com/example/fsdeploy/internal/pipeline"
	"github.com/example/fsdeploy/internal/provision"
	"github.com/example/fsdeploy/templates"
)

// StackApplier converges one stack and returns its outputs.
type StackApplier interface {
	Apply(ctx context.Context, spec provision.Spec) (provision.Outputs, error)
}

// LayerPackager publishes the dependency layer set.
type LayerPackager interface {
	Publish(ctx context.Context) ([]layer.Artifact, error)
}

// CodePublisher uploads one function code bundle and returns the object key
// the function stack should point at.
type CodePublisher interface {
	PublishCode(ctx context.Context, key string, b *bundle.Bundle) (string, error)
}

// ScheduleEnsurer upserts the cron trigger for the scheduler function.
type ScheduleEnsurer interface {
	EnsureSchedule(ctx context.Context, rule awsx.ScheduleRule) (string, error)
}

// SecretWriter stores the Google credentials secret.
type SecretWriter interface {
	Ensure(ctx context.Context, name string, value []byte) (string, error)
}

// Deployer builds the deployment plan from a manifest and a set of ports.
type Deployer struct {
	Config   *config.Config
	Stacks   StackApplier
	Layers   LayerPackager
	Code     CodePublisher
	Triggers ScheduleEnsurer
	Secrets  SecretWriter

	// SecretValue, when non-nil, adds a step that writes the Google
	// credentials before the execution role references them.
	SecretValue []byte

	Log *zap.Logger
}

// Step IDs, stable across runs so the journal lines up between deploys.
const (
	StepAlertTopic  = "alert-topic"
	StepDataStores  = "data-stores"
	StepCredentials = "google-credentials"
	StepRole        = "execution-role"
	StepLayer       = "dependency-layer"
	StepCodePrefix  = "code-"
	StepFnPrefix    = "fn-"
	StepAlarms      = "alarms"
	StepTrigger     = "schedule-trigger"
)

// Plan compiles the full step graph. Both function stacks land in the same
// wave: the scheduler learns the collector's name from the manifest, not from
// a captured output, so neither waits on the other.
func (d *Deployer) Plan() (*pipeline.Plan, error) {
	cfg := d.Config
	steps := []*pipeline.Step{
		{
			ID:          StepAlertTopic,
			Description: "SNS alert topic",
			Outputs:     []string{"TopicArn", "TopicName"},
			Run: d.stackStep(cfg.App+"-alert-topic", templates.AlertTopic, false, func(pipeline.Inputs) (map[string]string, error) {
				return map[string]string{
					"AppName":    cfg.App,
					"AlertEmail": cfg.AlertEmail,
				}, nil
			}),
		},
		{
			ID:          StepDataStores,
			Description: "match schedule and stats tables",
			Outputs:     []string{"MatchTableName", "MatchTableArn", "StatsTableName", "StatsTableArn"},
			Run: d.stackStep(cfg.App+"-tables", templates.Tables, false, func(pipeline.Inputs) (map[string]string, error) {
				return map[string]string{"AppName": cfg.App}, nil
			}),
		},
	}

	roleNeeds := []string{}
	if d.SecretValue != nil {
		steps = append(steps, &pipeline.Step{
			ID:          StepCredentials,
			Description: "Google service account credentials secret",
			Outputs:     []string{"SecretArn"},
			Run: func(ctx context.Context, _ pipeline.Inputs) (map[string]string, error) {
				arn, err := d.Secrets.Ensure(ctx, cfg.Secrets.GoogleCredentialsName, d.SecretValue)
				if err != nil {
					return nil, err
				}
				return map[string]string{"SecretArn": arn}, nil
			},
		})
		roleNeeds = append(roleNeeds, StepCredentials)
	}

	steps = append(steps,
		&pipeline.Step{
			ID:          StepRole,
			Description: "function execution role",
			Needs:       roleNeeds,
			Inputs: []string{
				StepAlertTopic + ".TopicArn",
				StepDataStores + ".MatchTableArn",
				StepDataStores + ".StatsTableArn",
			},
			Outputs: []string{"RoleArn", "RoleName"},
			Run: d.stackStep(cfg.App+"-role", templates.Role, true, func(in pipeline.Inputs) (map[string]string, error) {
				topic, err := need(in, StepAlertTopic+".TopicArn")
				if err != nil {
					return nil, err
				}
				matchArn, err := need(in, StepDataStores+".MatchTableArn")
				if err != nil {
					return nil, err
				}
				statsArn, err := need(in, StepDataStores+".StatsTableArn")
				if err != nil {
					return nil, err
				}
				return map[string]string{
					"AppName":          cfg.App,
					"TopicArn":         topic,
					"MatchTableArn":    matchArn,
					"StatsTableArn":    statsArn,
					"GoogleSecretName": cfg.Secrets.GoogleCredentialsName,
				}, nil
			}),
		},
		&pipeline.Step{
			ID:          StepLayer,
			Description: "shared dependency layer",
			Outputs:     []string{"LayerArns"},
			Run: func(ctx context.Context, _ pipeline.Inputs) (map[string]string, error) {
				artifacts, err := d.Layers.Publish(ctx)
				if err != nil {
					return nil, err
				}
				arns := make([]string, 0, len(artifacts))
				for _, a := range artifacts {
					arns = append(arns, a.Identifier)
				}
				return map[string]string{"LayerArns": strings.Join(arns, ",")}, nil
			},
		},
	)

	for _, fn := range []config.FunctionSpec{cfg.Scheduler, cfg.Collector} {
		steps = append(steps, d.codeStep(fn))
	}
	steps = append(steps,
		d.functionStep(cfg.Scheduler, cfg.FunctionFullName(cfg.Collector)),
		d.functionStep(cfg.Collector, ""),
		&pipeline.Step{
			ID:          StepAlarms,
			Description: "CloudWatch alarm set",
			Inputs: []string{
				StepAlertTopic + ".TopicArn",
				StepFnPrefix + cfg.Scheduler.Name + ".FunctionName",
				StepFnPrefix + cfg.Collector.Name + ".FunctionName",
			},
			Outputs: []string{"AlarmNames"},
			Run: d.stackStep(cfg.App+"-alarms", templates.Alarms, false, func(in pipeline.Inputs) (map[string]string, error) {
				topic, err := need(in, StepAlertTopic+".TopicArn")
				if err != nil {
					return nil, err
				}
				scheduler, err := need(in, StepFnPrefix+cfg.Scheduler.Name+".FunctionName")
				if err != nil {
					return nil, err
				}
				collector, err := need(in, StepFnPrefix+cfg.Collector.Name+".FunctionName")
				if err != nil {
					return nil, err
				}
				return map[string]string{
					"AppName":               cfg.App,
					"TopicArn":              topic,
					"SchedulerFunctionName": scheduler,
					"CollectorFunctionName": collector,
				}, nil
			}),
		},
		&pipeline.Step{
			ID:          StepTrigger,
			Description: "daily schedule trigger",
			Inputs:      []string{StepFnPrefix + cfg.Scheduler.Name + ".FunctionArn"},
			Outputs:     []string{"RuleArn"},
			Run: func(ctx context.Context, in pipeline.Inputs) (map[string]string, error) {
				fnArn, err := need(in, StepFnPrefix+cfg.Scheduler.Name+".FunctionArn")
				if err != nil {
					return nil, err
				}
				arn, err := d.Triggers.EnsureSchedule(ctx, awsx.ScheduleRule{
					Name:        cfg.App + "-daily",
					Expression:  cfg.Schedule,
					FunctionArn: fnArn,
					Description: "daily match schedule refresh",
				})
				if err != nil {
					return nil, err
				}
				return map[string]string{"RuleArn": arn}, nil
			},
		},
	)

	return pipeline.Compile(steps)
}

// stackStep wraps a parameter builder into a provisioning run function.
func (d *Deployer) stackStep(name, template string, namedIAM bool, params func(pipeline.Inputs) (map[string]string, error)) func(context.Context, pipeline.Inputs) (map[string]string, error) {
	return func(ctx context.Context, in pipeline.Inputs) (map[string]string, error) {
		p, err := params(in)
		if err != nil {
			return nil, err
		}
		outputs, err := d.Stacks.Apply(ctx, provision.Spec{
			Name:       name,
			Template:   template,
			Parameters: p,
			NamedIAM:   namedIAM,
		})
		if err != nil {
			return nil, err
		}
		return outputs, nil
	}
}

// codeStep builds and publishes one function's code bundle. The object key
// embeds the archive digest, so unchanged code republishes to the same key
// and the function stack sees no parameter drift.
func (d *Deployer) codeStep(fn config.FunctionSpec) *pipeline.Step {
	cfg := d.Config
	return &pipeline.Step{
		ID:          StepCodePrefix + fn.Name,
		Description: fmt.Sprintf("code bundle for %s", fn.Name),
		Outputs:     []string{"CodeKey"},
		Run: func(ctx context.Context, _ pipeline.Inputs) (map[string]string, error) {
			bb := &bundle.Builder{
				Sources:     sources(cfg),
				EntryPoint:  fn.EntryPoint,
				HandlerPath: handlerFile(fn.Handler),
			}
			b, err := bb.Build(cfg.FunctionFullName(fn))
			if err != nil {
				return nil, err
			}
			data, err := b.Zip()
			if err != nil {
				return nil, err
			}
			sum := sha256.Sum256(data)
			key := fmt.Sprintf("code/%s-%x.zip", fn.Name, sum[:8])
			published, err := d.Code.PublishCode(ctx, key, b)
			if err != nil {
				return nil, err
			}
			return map[string]string{"CodeKey": published}, nil
		},
	}
}

// functionStep provisions one function stack. collectorName is non-empty only
// for the scheduler, which invokes the collector by name at runtime.
func (d *Deployer) functionStep(fn config.FunctionSpec, collectorName string) *pipeline.Step {
	cfg := d.Config
	codeID := StepCodePrefix + fn.Name
	return &pipeline.Step{
		ID:          StepFnPrefix + fn.Name,
		Description: fmt.Sprintf("function stack for %s", fn.Name),
		Inputs: []string{
			StepRole + ".RoleArn",
			StepLayer + ".LayerArns",
			codeID + ".CodeKey",
			StepAlertTopic + ".TopicArn",
			StepDataStores + ".MatchTableName",
			StepDataStores + ".StatsTableName",
		},
		Outputs: []string{"FunctionName", "FunctionArn"},
		Run: d.stackStep(cfg.App+"-"+fn.Name, templates.Function, false, func(in pipeline.Inputs) (map[string]string, error) {
			params := map[string]string{
				"AppName":               cfg.App,
				"FunctionName":          fn.Name,
				"Handler":               fn.Handler,
				"Runtime":               cfg.Runtime,
				"CodeBucket":            cfg.ArtifactBucket,
				"MemorySize":            strconv.Itoa(fn.MemoryMB),
				"Timeout":               strconv.Itoa(int(fn.Timeout.Seconds())),
				"GoogleSecretName":      cfg.Secrets.GoogleCredentialsName,
				"CollectorFunctionName": collectorName,
			}
			for param, ref := range map[string]string{
				"RoleArn":        StepRole + ".RoleArn",
				"LayerArns":      StepLayer + ".LayerArns",
				"CodeKey":        codeID + ".CodeKey",
				"TopicArn":       StepAlertTopic + ".TopicArn",
				"MatchTableName": StepDataStores + ".MatchTableName",
				"StatsTableName": StepDataStores + ".StatsTableName",
			} {
				v, err := need(in, ref)
				if err != nil {
					return nil, err
				}
				params[param] = v
			}
			return params, nil
		}),
	}
}

func sources(cfg *config.Config) []bundle.Source {
	out := make([]bundle.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, bundle.Source{Root: s.Root, Prefix: s.Prefix})
	}
	return out
}

// handlerFile maps a runtime handler string like "lambda_function.lambda_handler"
// to the archive path the runtime loads it from.
func handlerFile(handler string) string {
	module := handler
	if i := strings.LastIndex(handler, "."); i >= 0 {
		module = handler[:i]
	}
	return path.Join(strings.Split(module, ".")...) + ".py"
}

func need(in pipeline.Inputs, ref string) (string, error) {
	v, ok := in.Get(ref)
	if !ok {
		return "", fmt.Errorf("missing captured output %s", ref)
	}
	return v, nil
}
