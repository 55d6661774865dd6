// File: internal/awsx/trigger.go
// Brief: EventBridge schedule rule and invoke-permission wiring.

package awsx

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

// ScheduleRule describes one cron-triggered function invocation.
type ScheduleRule struct {
	Name        string
	Expression  string // cron() or rate()
	FunctionArn string
	Description string
}

// RuleAPI is the slice of the EventBridge client the registrar uses.
type RuleAPI interface {
	PutRule(ctx context.Context, in *eventbridge.PutRuleInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, in *eventbridge.PutTargetsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
}

// PermissionAPI grants the rule permission to invoke its function.
type PermissionAPI interface {
	AddPermission(ctx context.Context, in *lambda.AddPermissionInput, opts ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
}

// TriggerRegistrar creates or updates EventBridge schedule rules. Every call
// is a full upsert: PutRule and PutTargets overwrite prior state, and the
// invoke permission treats "already exists" as success, so re-running a
// deploy converges instead of failing.
type TriggerRegistrar struct {
	Events RuleAPI
	Lambda PermissionAPI
	Log    *zap.Logger
}

// EnsureSchedule upserts the rule, points it at the function, and grants
// EventBridge permission to invoke it. Returns the rule ARN.
func (r *TriggerRegistrar) EnsureSchedule(ctx context.Context, rule ScheduleRule) (string, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	put, err := r.Events.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(rule.Name),
		ScheduleExpression: aws.String(rule.Expression),
		State:              ebtypes.RuleStateEnabled,
		Description:        aws.String(rule.Description),
	})
	if err != nil {
		return "", fmt.Errorf("put rule %s: %w", rule.Name, err)
	}
	_, err = r.Events.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule: aws.String(rule.Name),
		Targets: []ebtypes.Target{{
			Id:  aws.String("fn"),
			Arn: aws.String(rule.FunctionArn),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("put targets for rule %s: %w", rule.Name, err)
	}
	_, err = r.Lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(rule.FunctionArn),
		StatementId:  aws.String(rule.Name + "-invoke"),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("events.amazonaws.com"),
		SourceArn:    put.RuleArn,
	})
	if err != nil {
		var conflict *lambdatypes.ResourceConflictException
		if !errors.As(err, &conflict) {
			return "", fmt.Errorf("grant invoke permission for rule %s: %w", rule.Name, err)
		}
		log.Debug("invoke permission already present", zap.String("rule", rule.Name))
	}
	log.Info("schedule rule ensured",
		zap.String("rule", rule.Name),
		zap.String("expression", rule.Expression))
	return aws.ToString(put.RuleArn), nil
}
