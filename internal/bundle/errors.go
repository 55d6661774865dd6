// File: internal/bundle/errors.go
// Brief: Error types shared by the bundling and packaging layers.

package bundle

import "fmt"

// IOError reports a missing or unreadable local input. It is fatal and never
// retried; the operator has to fix the workspace.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("bundle input %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PackagingError reports a bundle that violates packaging policy (empty
// output, or a dependency group that cannot fit the platform size budget).
// It is fatal; the configuration must change.
type PackagingError struct {
	Group  string
	Reason string
}

func (e *PackagingError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("packaging: %s", e.Reason)
	}
	return fmt.Sprintf("packaging group %q: %s", e.Group, e.Reason)
}
