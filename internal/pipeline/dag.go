// File: internal/pipeline/dag.go
// Brief: Plan compilation: reference validation, cycle detection, wave grouping.

package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Plan is a compiled, validated step graph with a fixed execution order.
type Plan struct {
	Steps []*Step
	byID  map[string]*Step
	waves [][]string // step IDs grouped by execution wave
	order []string   // flattened deterministic order
}

// Compile validates the step set and assigns execution waves. Violations —
// duplicate IDs, references to unknown steps or undeclared outputs, cycles —
// are programming errors in the pipeline definition and fail before any
// step runs.
func Compile(steps []*Step) (*Plan, error) {
	p := &Plan{Steps: steps, byID: map[string]*Step{}}
	for _, s := range steps {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("pipeline step with empty ID")
		}
		if _, dup := p.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate pipeline step %q", s.ID)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("step %s has no action", s.ID)
		}
		p.byID[s.ID] = s
	}

	// Edges: explicit Needs plus one edge per input reference.
	deps := map[string]map[string]struct{}{}
	addEdge := func(from, to string) {
		if deps[to] == nil {
			deps[to] = map[string]struct{}{}
		}
		deps[to][from] = struct{}{}
	}
	for _, s := range steps {
		for _, need := range s.Needs {
			if _, ok := p.byID[need]; !ok {
				return nil, fmt.Errorf("step %s needs unknown step %q", s.ID, need)
			}
			if need == s.ID {
				return nil, fmt.Errorf("step %s needs itself", s.ID)
			}
			addEdge(need, s.ID)
		}
		for _, ref := range s.Inputs {
			producer, key, err := splitRef(ref)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", s.ID, err)
			}
			src, ok := p.byID[producer]
			if !ok {
				return nil, fmt.Errorf("step %s consumes %q but no step %q exists", s.ID, ref, producer)
			}
			if producer == s.ID {
				return nil, fmt.Errorf("step %s consumes its own output %q", s.ID, ref)
			}
			if !declaresOutput(src, key) {
				return nil, fmt.Errorf("step %s consumes %q but step %s does not declare output %q", s.ID, ref, producer, key)
			}
			addEdge(producer, s.ID)
		}
	}

	if err := p.assignWaves(deps); err != nil {
		return nil, err
	}
	return p, nil
}

// assignWaves runs a stable Kahn pass: every step in wave N depends only on
// steps in waves < N.
func (p *Plan) assignWaves(deps map[string]map[string]struct{}) error {
	inDegree := map[string]int{}
	dependents := map[string][]string{}
	for _, s := range p.Steps {
		inDegree[s.ID] = 0
	}
	for to, froms := range deps {
		inDegree[to] = len(froms)
		for from := range froms {
			dependents[from] = append(dependents[from], to)
		}
	}
	for k := range dependents {
		sort.Strings(dependents[k])
	}

	var ready []string
	for _, s := range p.Steps {
		if inDegree[s.ID] == 0 {
			ready = append(ready, s.ID)
		}
	}
	sort.Strings(ready)

	assigned := 0
	for len(ready) > 0 {
		wave := append([]string(nil), ready...)
		ready = ready[:0]
		p.waves = append(p.waves, wave)
		p.order = append(p.order, wave...)
		assigned += len(wave)
		for _, id := range wave {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
		sort.Strings(ready)
	}
	if assigned != len(p.Steps) {
		var stuck []string
		for id, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return fmt.Errorf("dependency cycle detected among steps %v", stuck)
	}
	return nil
}

// Waves returns the execution waves in order. Steps within one wave have no
// data dependency on each other and may run concurrently.
func (p *Plan) Waves() [][]string {
	out := make([][]string, len(p.waves))
	for i, w := range p.waves {
		out[i] = append([]string(nil), w...)
	}
	return out
}

// Order returns the flattened deterministic step order.
func (p *Plan) Order() []string {
	return append([]string(nil), p.order...)
}

// StepByID returns the step with the given ID, if present.
func (p *Plan) StepByID(id string) (*Step, bool) {
	s, ok := p.byID[id]
	return s, ok
}

func splitRef(ref string) (producer, key string, err error) {
	parts := strings.SplitN(ref, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid input reference %q (expected step.key)", ref)
	}
	return parts[0], parts[1], nil
}

func declaresOutput(s *Step, key string) bool {
	for _, out := range s.Outputs {
		if out == key {
			return true
		}
	}
	return false
}
