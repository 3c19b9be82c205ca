package sim

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError aggregates every problem found while loading a floor plan
// or scenario. Load-time validation is fatal: the run does not start.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0]
	}
	return fmt.Sprintf("validation failed (%d issues): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

// Addf appends a formatted issue.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, args...))
}

// OrNil returns the error if any issue was recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

// NoPathError reports that no route exists between two nodes.
// Per-leg routing failures are recovered locally: the leg is skipped and the
// run continues.
type NoPathError struct {
	From NodeID
	To   NodeID
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path from %q to %q", e.From, e.To)
}

// IsNoPath reports whether err is (or wraps) a NoPathError.
func IsNoPath(err error) bool {
	var np *NoPathError
	return errors.As(err, &np)
}
