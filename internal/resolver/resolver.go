// Package resolver implements the Tool Resolver & Cache (C1): it maps
// a logical executable name to a runnable binary via four strategies
// tried in order (embedded bundle, PATH, in-container direct,
// container delegation), and persists a cache manifest keyed by
// bundle version.
//
// Grounded on jrossi/ccfeedback's toolcache.CacheManager, generalized
// away from its package-level singleton (globalCacheManager /
// cacheManagerOnce) into a value threaded explicitly by the caller,
// and away from its per-ecosystem hardcoded switch-statement lookups
// into one registry-driven map.
package resolver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

// ResolutionKind is the closed set of outcomes resolve() can produce.
type ResolutionKind string

const (
	KindFound     ResolutionKind = "Found"
	KindDelegated ResolutionKind = "Delegated"
	KindNotFound  ResolutionKind = "NotFound"
)

// Launcher rewrites an argv to run inside a container runtime,
// mounting the working directory and invoking a named image.
type Launcher struct {
	Image   string
	Runtime string // "docker" or "podman"
}

// Rewrite produces the argv that actually gets exec'd when a tool is
// delegated to a container: `<runtime> run --rm -v <cwd>:<cwd> -w
// <cwd> <image> <original argv...>`.
func (l *Launcher) Rewrite(cwd string, argv []string) []string {
	out := []string{l.Runtime, "run", "--rm", "-v", cwd + ":" + cwd, "-w", cwd, l.Image}
	return append(out, argv...)
}

// Resolution is the result of resolving a single logical executable
// name. Exactly one of Path or Launcher is meaningful, selected by
// Kind; NotFound is not itself an error.
type Resolution struct {
	Kind     ResolutionKind
	Path     string
	Launcher *Launcher
}

// Options configures a Resolver's container-delegation posture; the
// zero value disables delegation, matching "optional, disabled in
// this core spec unless configuration requests it."
type Options struct {
	CacheDir         string // user-scoped cache directory; defaults via os.UserCacheDir
	DelegateImage    string // non-empty enables container delegation
	DelegateRuntime  string // "docker" or "podman", defaults to "docker"
	BundleVersion    string
	EmbeddedTools    map[string][]byte // executable name -> binary contents
}

// Resolver implements the four-strategy lookup. It holds no
// process-wide state: callers construct one Resolver per Engine and
// thread it through. Extraction is serialized by extractOnce, a
// process-internal lock per spec §4.1 ("not a filesystem lock,
// because the cache is single-writer per process").
type Resolver struct {
	opts Options

	extractOnce sync.Once
	extractErr  error

	mu       sync.RWMutex
	manifest manifestState
	inContainer bool
}

type manifestState struct {
	loaded  bool
	tools   map[string]string
	version string
}

// New constructs a Resolver. It does not touch disk until the first
// Resolve call — extraction is lazy, matching "on first query."
func New(opts Options) *Resolver {
	if opts.DelegateRuntime == "" {
		opts.DelegateRuntime = "docker"
	}
	r := &Resolver{opts: opts}
	r.inContainer = detectContainer()
	return r
}

// Resolve implements resolve(executable) -> Resolution.
func (r *Resolver) Resolve(ctx context.Context, executable string) (Resolution, error) {
	if r.opts.DelegateImage != "" {
		return Resolution{Kind: KindDelegated, Launcher: &Launcher{
			Image:   r.opts.DelegateImage,
			Runtime: r.opts.DelegateRuntime,
		}}, nil
	}

	if r.inContainer {
		if path, err := exec.LookPath(executable); err == nil {
			return Resolution{Kind: KindFound, Path: path}, nil
		}
		return Resolution{Kind: KindNotFound}, nil
	}

	if len(r.opts.EmbeddedTools) > 0 {
		r.ensureExtracted()
		if r.extractErr == nil {
			if path, ok := r.embeddedPath(executable); ok {
				return Resolution{Kind: KindFound, Path: path}, nil
			}
		}
		// ResolverError::ExtractFailed is recovered locally: fall through
		// to PATH without retrying extraction.
	}

	if path, err := exec.LookPath(executable); err == nil {
		return Resolution{Kind: KindFound, Path: path}, nil
	}

	return Resolution{Kind: KindNotFound}, nil
}

// ExtractError returns the error from the (at most once per process)
// extraction attempt, if any, wrapped as *huskyerr.ResolverError.
func (r *Resolver) ExtractError() error { return r.extractErr }

func (r *Resolver) ensureExtracted() {
	r.extractOnce.Do(func() {
		r.extractErr = r.extract()
	})
}

func (r *Resolver) cacheDir() string {
	if r.opts.CacheDir != "" {
		return r.opts.CacheDir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "huskycat", "tools")
}

func (r *Resolver) embeddedPath(executable string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.manifest.loaded {
		return "", false
	}
	path, ok := r.manifest.tools[executable]
	if !ok {
		return "", false
	}
	if !executableFileOK(path) {
		return "", false
	}
	return path, true
}

// executableFileOK performs the "re-extract if an embedded tool's
// on-disk copy fails an executability check" gate from spec §4.1 —
// here surfaced as a pre-use check; full re-extraction-on-corruption
// is handled by extract() finding the mismatch on the next process
// start, since extraction is at-most-once per process by design.
func executableFileOK(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		s := string(cgroup)
		if containsAny(s, "docker", "kubepods", "containerd") {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(sub) <= len(s) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

var _ = runtime.GOOS // resolver behavior is documented as POSIX-leaning; GOOS reserved for future platform gating

func wrapExtractFailed(executable string, err error) error {
	return huskyerr.NewResolverError(huskyerr.ExtractFailed, executable, err)
}
