package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMergePrecedence(t *testing.T) {
	base := New()
	global := New()
	workers := 2
	global.MaxWorkers = &workers

	project := New()
	projectWorkers := 8
	project.MaxWorkers = &projectWorkers
	ff := true
	project.FailFast = &ff

	base.Merge(global)
	base.Merge(project)

	require.NotNil(t, base.MaxWorkers)
	assert.Equal(t, 8, *base.MaxWorkers)
	require.NotNil(t, base.FailFast)
	assert.True(t, *base.FailFast)
}

func TestMergeToolOverridesByKey(t *testing.T) {
	base := New()
	enabled := true
	base.Tools["gofmt"] = ToolOverride{Enabled: &enabled}

	override := New()
	disabled := false
	override.Tools["gofmt"] = ToolOverride{Enabled: &disabled}
	override.Tools["vet"] = ToolOverride{}

	base.Merge(override)

	assert.False(t, base.IsToolEnabled("gofmt"))
	assert.True(t, base.IsToolEnabled("vet"))
	assert.True(t, base.IsToolEnabled("unknown-tool"))
}

func TestLoaderMergesThreeLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()

	writeFile(t, home, ".huskycat.yaml", "max_workers: 2\n")
	writeFile(t, project, ".huskycat.yaml", "max_workers: 4\nfail_fast: false\n")
	writeFile(t, project, ".huskycat.local.yaml", "fail_fast: true\n")

	l := &Loader{homeDir: home, projectDir: project}
	cfg, err := l.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.MaxWorkers)
	assert.Equal(t, 4, *cfg.MaxWorkers)
	require.NotNil(t, cfg.FailFast)
	assert.True(t, *cfg.FailFast)
}

func TestEnvOverrideWinsOverFiles(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	writeFile(t, project, ".huskycat.yaml", "max_workers: 4\n")

	t.Setenv("HUSKYCAT_MAX_WORKERS", "16")

	l := &Loader{homeDir: home, projectDir: project}
	cfg, err := l.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.MaxWorkers)
	assert.Equal(t, 16, *cfg.MaxWorkers)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := New()
	cfg.Mode = "NotARealMode"
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateAcceptsKnownMode(t *testing.T) {
	cfg := New()
	cfg.Mode = "CI"
	assert.NoError(t, Validate(cfg))
}
