package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// fakeCFN simulates the create/update lifecycle of a single account's stacks.
type fakeCFN struct {
	stacks      map[string]*cftypes.Stack
	createCalls int
	updateCalls int
	failStatus  cftypes.StackStatus // when set, applied stacks land here
	updateErr   error
}

func newFakeCFN() *fakeCFN {
	return &fakeCFN{stacks: map[string]*cftypes.Stack{}}
}

func validationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationError", Message: msg}
}

func (f *fakeCFN) DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, opts ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	s, ok := f.stacks[*in.StackName]
	if !ok {
		return nil, validationError("Stack with id " + *in.StackName + " does not exist")
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cftypes.Stack{*s}}, nil
}

func (f *fakeCFN) CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.createCalls++
	status := cftypes.StackStatusCreateComplete
	if f.failStatus != "" {
		status = f.failStatus
	}
	f.stacks[*in.StackName] = &cftypes.Stack{
		StackName:   in.StackName,
		StackStatus: status,
		Outputs:     outputsFromParams(in.Parameters),
	}
	return &cloudformation.CreateStackOutput{StackId: in.StackName}, nil
}

func (f *fakeCFN) UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, opts ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s, ok := f.stacks[*in.StackName]
	if !ok {
		return nil, validationError("Stack with id " + *in.StackName + " does not exist")
	}
	s.StackStatus = cftypes.StackStatusUpdateComplete
	s.Outputs = outputsFromParams(in.Parameters)
	return &cloudformation.UpdateStackOutput{StackId: in.StackName}, nil
}

// outputsFromParams mirrors parameters back as outputs so tests can check
// that values round-trip through an apply.
func outputsFromParams(params []cftypes.Parameter) []cftypes.Output {
	var outs []cftypes.Output
	for _, p := range params {
		outs = append(outs, cftypes.Output{OutputKey: p.ParameterKey, OutputValue: p.ParameterValue})
	}
	outs = append(outs, cftypes.Output{OutputKey: aws.String("TopicArn"), OutputValue: aws.String("arn:aws:sns:eu-west-1:123:alerts")})
	return outs
}

func newProvisioner(api API) *Provisioner {
	return &Provisioner{API: api, PollInterval: time.Millisecond, Timeout: time.Second}
}

func TestApplyCreatesWhenAbsent(t *testing.T) {
	api := newFakeCFN()
	p := newProvisioner(api)
	outs, err := p.Apply(context.Background(), Spec{Name: "football-stats-alerts", Template: "tmpl", Parameters: map[string]string{"AppName": "football-stats"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if api.createCalls != 1 || api.updateCalls != 0 {
		t.Fatalf("create=%d update=%d, want 1/0", api.createCalls, api.updateCalls)
	}
	if outs["TopicArn"] == "" {
		t.Fatalf("outputs not captured: %v", outs)
	}
}

func TestApplyTwiceIsIdempotent(t *testing.T) {
	api := newFakeCFN()
	p := newProvisioner(api)
	spec := Spec{Name: "football-stats-tables", Template: "tmpl", Parameters: map[string]string{"AppName": "football-stats"}}
	first, err := p.Apply(context.Background(), spec)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := p.Apply(context.Background(), spec)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if api.createCalls != 1 || api.updateCalls != 1 {
		t.Fatalf("create=%d update=%d, want 1/1 (second apply must update, not error)", api.createCalls, api.updateCalls)
	}
	if len(first) != len(second) {
		t.Fatalf("outputs differ across applies: %v vs %v", first, second)
	}
	for k, v := range first {
		if second[k] != v {
			t.Fatalf("output %s changed across applies: %q vs %q", k, v, second[k])
		}
	}
}

func TestApplyUnchangedSpecIsSuccess(t *testing.T) {
	api := newFakeCFN()
	p := newProvisioner(api)
	spec := Spec{Name: "s", Template: "tmpl"}
	if _, err := p.Apply(context.Background(), spec); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	api.updateErr = validationError("No updates are to be performed.")
	outs, err := p.Apply(context.Background(), spec)
	if err != nil {
		t.Fatalf("no-op apply must succeed, got %v", err)
	}
	if outs["TopicArn"] == "" {
		t.Fatalf("no-op apply must still re-read outputs, got %v", outs)
	}
}

func TestApplyRejectionIsProvisionError(t *testing.T) {
	api := newFakeCFN()
	api.stacks["s"] = &cftypes.Stack{StackName: aws.String("s"), StackStatus: cftypes.StackStatusUpdateComplete}
	api.updateErr = &smithy.GenericAPIError{Code: "InsufficientCapabilitiesException", Message: "Requires capabilities : [CAPABILITY_NAMED_IAM]"}
	p := newProvisioner(api)
	_, err := p.Apply(context.Background(), Spec{Name: "s", Template: "tmpl"})
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProvisionError, got %v", err)
	}
	if perr.Reason == "" || perr.Stack != "s" {
		t.Fatalf("rejection reason not surfaced: %+v", perr)
	}
}

func TestApplyRolledBackStackIsFatal(t *testing.T) {
	api := newFakeCFN()
	api.failStatus = cftypes.StackStatusRollbackComplete
	p := newProvisioner(api)
	_, err := p.Apply(context.Background(), Spec{Name: "s", Template: "tmpl"})
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProvisionError for rollback, got %v", err)
	}
}
