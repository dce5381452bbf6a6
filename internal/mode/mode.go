// Package mode implements the Mode Adapter & Fork Controller (C6): it
// translates an invocation mode into a selection profile, fail-fast
// and worker-count posture, and an output renderer, and (for
// GitHooksNonBlocking only) performs the spawn-with-hidden-flag fork
// emulation that hands the scheduler off to a detached child.
//
// The mode->profile table is grounded directly on jrossi/ccfeedback's
// own git-hook/CLI split in cmd/ccfeedback/main.go (blocking hook vs.
// interactive invocation choosing different defaults), generalized
// from two modes to the six this engine supports.
package mode

import (
	"runtime"
	"time"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

// Mode is the closed set of invocation contexts spec.md §4.6 names.
type Mode string

const (
	GitHooksBlocking    Mode = "GitHooksBlocking"
	GitHooksNonBlocking Mode = "GitHooksNonBlocking"
	CI                  Mode = "CI"
	CLI                 Mode = "CLI"
	Pipeline            Mode = "Pipeline"
	MCP                 Mode = "MCP"
)

// Format is the closed set of output renderings, one per mode unless
// the caller overrides it (MCP always drives its own JSON-RPC layer
// and never calls into these renderers).
type Format string

const (
	FormatMinimal  Format = "minimal"
	FormatJUnit    Format = "junit"
	FormatHuman    Format = "human"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Posture is the non-topology-changing policy a mode resolves to:
// selection profile, fail-fast, worker count, and rendering format.
// Only GitHooksNonBlocking additionally changes execution topology
// (via Fork, below) - every other mode runs the same in-process
// scheduler with a different Posture.
type Posture struct {
	Profile    huskycat.SelectionProfile
	FailFast   bool
	MaxWorkers int
	Format     Format
}

// Resolve returns mode's default Posture per spec.md §4.6's table.
// The Configured profile's tool list is not part of Posture; the
// engine supplies it from configuration at selection time.
func Resolve(m Mode) Posture {
	switch m {
	case GitHooksBlocking:
		return Posture{Profile: huskycat.ProfileFast, FailFast: true, MaxWorkers: 1, Format: FormatMinimal}
	case GitHooksNonBlocking:
		return Posture{Profile: huskycat.ProfileAll, FailFast: false, MaxWorkers: runtime.NumCPU(), Format: FormatMinimal}
	case CI:
		return Posture{Profile: huskycat.ProfileAll, FailFast: false, MaxWorkers: runtime.NumCPU(), Format: FormatJUnit}
	case CLI:
		return Posture{Profile: huskycat.ProfileConfigured, FailFast: false, MaxWorkers: runtime.NumCPU(), Format: FormatHuman}
	case Pipeline:
		return Posture{Profile: huskycat.ProfileAll, FailFast: false, MaxWorkers: runtime.NumCPU(), Format: FormatJSON}
	case MCP:
		// per-request: caller overrides Profile/FailFast/MaxWorkers from
		// the tool-call arguments; Format is always JSON, rendered by the
		// MCP collaborator itself rather than by this package.
		return Posture{Profile: huskycat.ProfileConfigured, FailFast: false, MaxWorkers: runtime.NumCPU(), Format: FormatJSON}
	default:
		return Posture{Profile: huskycat.ProfileFast, FailFast: true, MaxWorkers: 1, Format: FormatMinimal}
	}
}

// ChangesTopology reports whether m forks a detached child rather than
// running the scheduler in-process.
func (m Mode) ChangesTopology() bool { return m == GitHooksNonBlocking }

// defaultPerToolTimeout is used when the caller (CLI flags, config)
// supplies none.
const defaultPerToolTimeout = 2 * time.Minute
