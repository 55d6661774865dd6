// File: internal/layer/pip.go
// Brief: pip-based dependency materializer for Python runtimes.

package layer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// PipResolver installs pinned Python packages into a target directory with
// `pip install -t`, the way the layer was built by hand before fsdeploy.
type PipResolver struct {
	// Binary overrides the pip executable; defaults to "pip3".
	Binary string
	// Platform pins wheels to the runtime's platform (e.g. manylinux2014_x86_64)
	// so layers built on a workstation still load inside the function sandbox.
	Platform string
	Log      *zap.Logger
}

func (r *PipResolver) Resolve(ctx context.Context, deps []Dependency, dir string) error {
	if len(deps) == 0 {
		return nil
	}
	bin := r.Binary
	if bin == "" {
		bin = "pip3"
	}
	args := []string{"install", "--no-compile", "--target", dir}
	if r.Platform != "" {
		args = append(args, "--platform", r.Platform, "--only-binary", ":all:")
	}
	for _, d := range deps {
		args = append(args, d.Pin())
	}
	if r.Log != nil {
		r.Log.Debug("materializing dependencies", zap.String("pip", bin), zap.Strings("args", args))
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pip install %s: %w\n%s", pins(deps), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func pins(deps []Dependency) string {
	parts := make([]string, 0, len(deps))
	for _, d := range deps {
		parts = append(parts, d.Pin())
	}
	return strings.Join(parts, " ")
}
