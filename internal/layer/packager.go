// File: internal/layer/packager.go
// Brief: Dependency layer packaging with size policy and static group split.

// Package layer assembles the function dependency layers. Dependencies are
// declared with version pins and a group role; when the combined tree fits
// the platform's uncompressed budget a single layer is published, otherwise
// one layer per declared group. Partitioning is static: a group that cannot
// fit on its own is a configuration error, not something to rebalance.
package layer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/bundle"
)

// DefaultBudget is the Lambda layer limit on the extracted tree (250 MiB).
const DefaultBudget int64 = 250 << 20

// Dependency is one pinned package to materialize into the layer.
type Dependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Pin renders the resolver's pin syntax.
func (d Dependency) Pin() string {
	if d.Version == "" {
		return d.Name
	}
	return fmt.Sprintf("%s==%s", d.Name, d.Version)
}

// Group is one statically declared partition of the dependency set.
type Group struct {
	Name         string       `yaml:"name"`
	Dependencies []Dependency `yaml:"dependencies"`
}

// Resolver materializes pinned dependencies into a local directory tree.
type Resolver interface {
	Resolve(ctx context.Context, deps []Dependency, dir string) error
}

// Publisher turns a finished bundle into a published, versioned layer and
// returns its platform identifier.
type Publisher interface {
	PublishLayer(ctx context.Context, b *bundle.Bundle) (string, error)
}

// Artifact is one published layer version.
type Artifact struct {
	Name             string
	Group            string
	Identifier       string
	UncompressedSize int64
}

// Packager drives resolve → size-check → split → publish.
type Packager struct {
	Name      string // artifact base name, e.g. "football-stats-deps"
	Groups    []Group
	Budget    int64  // uncompressed ceiling; <=0 means DefaultBudget
	TreeRoot  string // archive prefix the runtime expects, e.g. python/lib/python3.12/site-packages
	Resolver  Resolver
	Publisher Publisher
	Log       *zap.Logger
}

// Publish materializes the dependency set and publishes one or more layers.
// Either every required bundle is published and all identifiers are
// returned, or the call fails; partial platform publishes are never
// reported as success.
func (p *Packager) Publish(ctx context.Context) ([]Artifact, error) {
	if len(p.Groups) == 0 {
		return nil, &bundle.PackagingError{Reason: "no dependency groups declared"}
	}
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	workDir, err := os.MkdirTemp("", "fsdeploy-layer-")
	if err != nil {
		return nil, fmt.Errorf("create layer work area: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Materialize each declared group into its own tree so the split path
	// never re-resolves. The single-bundle case is the union of the trees.
	groupBundles := make([]*bundle.Bundle, 0, len(p.Groups))
	for _, g := range p.Groups {
		dir := filepath.Join(workDir, g.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create group dir %s: %w", g.Name, err)
		}
		if err := p.Resolver.Resolve(ctx, g.Dependencies, dir); err != nil {
			return nil, fmt.Errorf("resolve group %s: %w", g.Name, err)
		}
		bb := &bundle.Builder{Sources: []bundle.Source{{Root: dir, Prefix: p.TreeRoot}}}
		gb, err := bb.Build(fmt.Sprintf("%s-%s", p.Name, g.Name))
		if err != nil {
			return nil, err
		}
		groupBundles = append(groupBundles, gb)
	}

	candidate := bundle.New(p.Name)
	for _, gb := range groupBundles {
		for _, e := range gb.Entries() {
			if err := candidate.Add(e.Path, e.Mode, e.Data); err != nil {
				return nil, err
			}
		}
	}
	total := candidate.UncompressedSize()
	log.Info("layer candidate assembled",
		zap.String("layer", p.Name),
		zap.Int64("uncompressedBytes", total),
		zap.Int64("budgetBytes", budget))

	if total <= budget {
		id, err := p.Publisher.PublishLayer(ctx, candidate)
		if err != nil {
			return nil, err
		}
		return []Artifact{{Name: candidate.Name, Group: "", Identifier: id, UncompressedSize: total}}, nil
	}

	// Over budget: fall back to the declared partition. Each group must fit
	// independently before anything is published.
	for i, gb := range groupBundles {
		if size := gb.UncompressedSize(); size > budget {
			return nil, &bundle.PackagingError{
				Group:  p.Groups[i].Name,
				Reason: fmt.Sprintf("uncompressed size %d exceeds budget %d", size, budget),
			}
		}
	}
	artifacts := make([]Artifact, 0, len(groupBundles))
	for i, gb := range groupBundles {
		log.Info("publishing split layer",
			zap.String("layer", gb.Name),
			zap.String("group", p.Groups[i].Name),
			zap.Int64("uncompressedBytes", gb.UncompressedSize()))
		id, err := p.Publisher.PublishLayer(ctx, gb)
		if err != nil {
			return nil, fmt.Errorf("publish group %s: %w", p.Groups[i].Name, err)
		}
		artifacts = append(artifacts, Artifact{
			Name:             gb.Name,
			Group:            p.Groups[i].Name,
			Identifier:       id,
			UncompressedSize: gb.UncompressedSize(),
		})
	}
	return artifacts, nil
}
