package pipeline

import (
	"context"
	"strings"
	"testing"
)

func nopRun(ctx context.Context, in Inputs) (map[string]string, error) { return nil, nil }

func TestCompileAssignsWaves(t *testing.T) {
	steps := []*Step{
		{ID: "alert-topic", Outputs: []string{"TopicArn"}, Run: nopRun},
		{ID: "data-stores", Outputs: []string{"MatchTable"}, Run: nopRun},
		{ID: "role", Inputs: []string{"alert-topic.TopicArn", "data-stores.MatchTable"}, Outputs: []string{"RoleArn"}, Run: nopRun},
		{ID: "fn-collector", Inputs: []string{"role.RoleArn"}, Outputs: []string{"FunctionArn"}, Run: nopRun},
		{ID: "fn-scheduler", Inputs: []string{"role.RoleArn"}, Outputs: []string{"FunctionArn"}, Run: nopRun},
		{ID: "alarms", Inputs: []string{"fn-collector.FunctionArn", "fn-scheduler.FunctionArn", "alert-topic.TopicArn"}, Run: nopRun},
	}
	p, err := Compile(steps)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	waves := p.Waves()
	if len(waves) != 4 {
		t.Fatalf("waves = %d, want 4: %v", len(waves), waves)
	}
	if len(waves[0]) != 2 {
		t.Fatalf("first wave should hold the two independent stacks, got %v", waves[0])
	}
	if len(waves[2]) != 2 {
		t.Fatalf("the two function deployments should share a wave, got %v", waves[2])
	}
	if waves[3][0] != "alarms" {
		t.Fatalf("alarms must run last, got %v", waves[3])
	}
}

func TestCompileRejectsUnknownProducer(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "fn", Inputs: []string{"role.RoleArn"}, Run: nopRun},
	})
	if err == nil || !strings.Contains(err.Error(), "no step") {
		t.Fatalf("want unknown-producer error, got %v", err)
	}
}

func TestCompileRejectsUndeclaredOutput(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "role", Outputs: []string{"RoleArn"}, Run: nopRun},
		{ID: "fn", Inputs: []string{"role.RoleName"}, Run: nopRun},
	})
	if err == nil || !strings.Contains(err.Error(), "does not declare output") {
		t.Fatalf("want undeclared-output error, got %v", err)
	}
}

func TestCompileRejectsCycle(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "a", Needs: []string{"b"}, Run: nopRun},
		{ID: "b", Needs: []string{"a"}, Run: nopRun},
	})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("want cycle error, got %v", err)
	}
}

func TestCompileRejectsSelfReference(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "a", Outputs: []string{"X"}, Inputs: []string{"a.X"}, Run: nopRun},
	})
	if err == nil {
		t.Fatalf("want self-reference error")
	}
}

func TestCompileRejectsDuplicateIDs(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "a", Run: nopRun},
		{ID: "a", Run: nopRun},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate error, got %v", err)
	}
}

func TestCompileRejectsMalformedReference(t *testing.T) {
	_, err := Compile([]*Step{
		{ID: "a", Outputs: []string{"X"}, Run: nopRun},
		{ID: "b", Inputs: []string{"just-a-key"}, Run: nopRun},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid input reference") {
		t.Fatalf("want malformed-reference error, got %v", err)
	}
}
