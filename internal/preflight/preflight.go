// Package preflight runs environment checks before indexing: disk
// space, memory, file descriptors, storage writability, embedding
// backend reachability, and index/config compatibility. The doctor
// command renders the results; init runs them once and records a
// marker so later commands skip the cost.
package preflight

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/semdex/internal/config"
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Result is the outcome of a single check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	Required bool   `json:"required"`
}

// IsCritical reports a required check that failed.
func (r Result) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs preflight checks against a configuration.
type Checker struct {
	cfg *config.Config
}

// New creates a Checker. A nil config uses the defaults.
func New(cfg *config.Config) *Checker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Checker{cfg: cfg}
}

// RunAll runs every check. projectRoot is the tree to be indexed,
// storageDir the index location (usually <root>/.semdex).
func (c *Checker) RunAll(ctx context.Context, projectRoot, storageDir string) []Result {
	return []Result{
		c.CheckDiskSpace(projectRoot),
		c.CheckMemory(),
		c.CheckFileDescriptors(),
		c.CheckStorageWritable(storageDir),
		c.CheckEmbedder(ctx),
		c.CheckModelArtifact(),
		c.CheckManifest(storageDir),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// Summary reduces results to "ready", "ready_with_warnings", or
// "failed".
func Summary(results []Result) string {
	failed := false
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			failed = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			warned = true
		}
	}
	switch {
	case failed:
		return "failed"
	case warned:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

// Render writes a human-readable report.
func Render(w io.Writer, results []Result, verbose bool) {
	fmt.Fprintln(w, "semdex system check")
	fmt.Fprintln(w, "===================")
	fmt.Fprintln(w)

	for _, r := range results {
		fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if verbose && r.Details != "" {
			fmt.Fprintf(w, "       %s\n", r.Details)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(Summary(results)))

	var errs, warns []string
	for _, r := range results {
		switch {
		case r.IsCritical():
			errs = append(errs, r.Name+": "+r.Message)
		case r.Status == StatusWarn || r.Status == StatusFail:
			warns = append(warns, r.Name+": "+r.Message)
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(w, "\n%d error(s):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if len(warns) > 0 {
		fmt.Fprintf(w, "\n%d warning(s):\n", len(warns))
		for _, s := range warns {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}
