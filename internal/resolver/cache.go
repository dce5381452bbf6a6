package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

// extract performs the embedded-tool extraction and manifest refresh.
// It is called at most once per process via extractOnce.
//
// Grounded on jrossi/ccfeedback's toolcache.CacheManager.ensureInitialized
// / loadCache / createNewCache / save, but unlike ccfeedback's save()
// (a plain os.WriteFile, non-atomic) this writes the manifest via
// write-to-temp-then-rename, matching the Run Store's own discipline
// and spec §4.2's atomicity requirement generalized to the cache.
func (r *Resolver) extract() error {
	dir := r.cacheDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapExtractFailed("*", err)
	}

	existing, err := loadManifest(dir)
	if err == nil && existing.BundleVersion == r.opts.BundleVersion {
		r.mu.Lock()
		r.manifest = manifestState{loaded: true, tools: existing.Tools, version: existing.BundleVersion}
		r.mu.Unlock()
		if allPresent(dir, existing.Tools) {
			return nil
		}
		// fall through: manifest matches but a binary is missing/corrupt,
		// re-extract the whole bundle (bundle version is a cache-
		// invalidation signal, not a correctness guarantee, per §4.1).
	}

	tools := make(map[string]string, len(r.opts.EmbeddedTools))
	for name, contents := range r.opts.EmbeddedTools {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, contents, 0o755); err != nil {
			return wrapExtractFailed(name, err)
		}
		tools[name] = path
	}

	manifest := huskycat.CacheManifest{BundleVersion: r.opts.BundleVersion, Tools: tools}
	if err := saveManifest(dir, &manifest); err != nil {
		return wrapExtractFailed("*", err)
	}

	r.mu.Lock()
	r.manifest = manifestState{loaded: true, tools: tools, version: r.opts.BundleVersion}
	r.mu.Unlock()
	return nil
}

func allPresent(dir string, tools map[string]string) bool {
	for _, path := range tools {
		if !executableFileOK(path) {
			return false
		}
	}
	_ = dir
	return true
}

func manifestPath(dir string) string {
	return filepath.Join(dir, ".manifest.json")
}

func loadManifest(dir string) (*huskycat.CacheManifest, error) {
	data, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return nil, err
	}
	var m huskycat.CacheManifest
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse cache manifest: %w", err)
	}
	return &m, nil
}

// saveManifest writes the manifest atomically: write to a temp file in
// the same directory, then rename over the destination, so a crash
// mid-write never leaves a corrupt manifest readable by the next
// process (spec §4.2's requirement, applied here to the tool cache for
// the same reason it applies to run records).
func saveManifest(dir string, m *huskycat.CacheManifest) error {
	data, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, manifestPath(dir))
}
