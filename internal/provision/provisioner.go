// File: internal/provision/provisioner.go
// Brief: Idempotent create-or-update stack provisioning over CloudFormation.

// Package provision applies infrastructure stacks. There is a single Apply
// entry point: the existence check lives inside the capability, so callers
// never branch on create vs update. Provisioning failures are fatal and
// never retried; re-running the pipeline is the recovery path.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// API is the CloudFormation surface the provisioner needs. *cloudformation.Client
// satisfies it; tests supply a double.
type API interface {
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// Spec identifies one provisionable unit: a named stack, its template body,
// and fully resolved parameter values. Forward references must already be
// substituted by the time a Spec reaches Apply.
type Spec struct {
	Name       string
	Template   string
	Parameters map[string]string
	NamedIAM   bool // stack declares IAM resources and needs CAPABILITY_NAMED_IAM
}

// Outputs maps a stack's declared output keys to their resolved values.
// Captured once per apply; a re-apply re-captures from scratch.
type Outputs map[string]string

// ProvisionError carries the platform's rejection or failure reason verbatim.
type ProvisionError struct {
	Stack  string
	Reason string
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision stack %s: %s", e.Stack, e.Reason)
}

// Provisioner applies stack specs through the CloudFormation API.
type Provisioner struct {
	API          API
	PollInterval time.Duration // settle poll cadence; defaults to 5s
	Timeout      time.Duration // per-stack settle deadline; defaults to 15m
	Log          *zap.Logger
}

const (
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 15 * time.Minute
)

// Apply creates the stack if absent, updates it in place if present, waits
// for it to settle, and returns its declared outputs. Applying an unchanged
// spec is a no-op that still re-reads outputs.
func (p *Provisioner) Apply(ctx context.Context, spec Spec) (Outputs, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, &ProvisionError{Stack: spec.Name, Reason: "stack name is required"}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	existing, err := p.describe(ctx, spec.Name)
	if err != nil && !isNotExists(err) {
		return nil, fmt.Errorf("describe stack %s: %w", spec.Name, err)
	}

	params := buildParameters(spec.Parameters)
	var caps []cftypes.Capability
	if spec.NamedIAM {
		caps = []cftypes.Capability{cftypes.CapabilityCapabilityNamedIam}
	}

	switch {
	case existing == nil:
		log.Info("creating stack", zap.String("stack", spec.Name))
		_, err = p.API.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(spec.Name),
			TemplateBody: aws.String(spec.Template),
			Parameters:   params,
			Capabilities: caps,
			OnFailure:    cftypes.OnFailureRollback,
		})
		if err != nil {
			return nil, &ProvisionError{Stack: spec.Name, Reason: apiReason(err)}
		}
	case existing.StackStatus == cftypes.StackStatusRollbackComplete:
		// A stack stuck in ROLLBACK_COMPLETE can only be deleted, not updated.
		return nil, &ProvisionError{Stack: spec.Name, Reason: "stack is in ROLLBACK_COMPLETE and must be deleted before re-creating"}
	default:
		log.Info("updating stack", zap.String("stack", spec.Name), zap.String("status", string(existing.StackStatus)))
		_, err = p.API.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(spec.Name),
			TemplateBody: aws.String(spec.Template),
			Parameters:   params,
			Capabilities: caps,
		})
		if err != nil {
			if isNoUpdates(err) {
				log.Info("stack unchanged", zap.String("stack", spec.Name))
				return stackOutputs(existing), nil
			}
			return nil, &ProvisionError{Stack: spec.Name, Reason: apiReason(err)}
		}
	}

	settled, err := p.waitSettled(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	return stackOutputs(settled), nil
}

// describe returns the stack or an error; a nil stack never pairs with a nil error.
func (p *Provisioner) describe(ctx context.Context, name string) (*cftypes.Stack, error) {
	out, err := p.API.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		return nil, err
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not in describe response", name)
	}
	return &out.Stacks[0], nil
}

// waitSettled polls until the stack reaches a terminal status. A poll
// timeout is fatal here, unlike in the uploader: stack applies are not
// retried in-process.
func (p *Provisioner) waitSettled(ctx context.Context, name string) (*cftypes.Stack, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		stack, err := p.describe(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("poll stack %s: %w", name, err)
		}
		switch stack.StackStatus {
		case cftypes.StackStatusCreateComplete, cftypes.StackStatusUpdateComplete:
			return stack, nil
		case cftypes.StackStatusCreateInProgress,
			cftypes.StackStatusUpdateInProgress,
			cftypes.StackStatusUpdateCompleteCleanupInProgress:
			// still settling
		default:
			reason := string(stack.StackStatus)
			if stack.StackStatusReason != nil && *stack.StackStatusReason != "" {
				reason = fmt.Sprintf("%s: %s", stack.StackStatus, *stack.StackStatusReason)
			}
			return nil, &ProvisionError{Stack: name, Reason: reason}
		}
		if time.Now().After(deadline) {
			return nil, &ProvisionError{Stack: name, Reason: fmt.Sprintf("timed out after %s waiting for stack to settle", timeout)}
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func stackOutputs(stack *cftypes.Stack) Outputs {
	out := Outputs{}
	for _, o := range stack.Outputs {
		if o.OutputKey == nil || o.OutputValue == nil {
			continue
		}
		out[*o.OutputKey] = *o.OutputValue
	}
	return out
}

func buildParameters(values map[string]string) []cftypes.Parameter {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]cftypes.Parameter, 0, len(keys))
	for _, k := range keys {
		params = append(params, cftypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(values[k]),
		})
	}
	return params
}

func isNotExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}

func apiReason(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
