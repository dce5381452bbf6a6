package resolver

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathStrategy(t *testing.T) {
	r := New(Options{CacheDir: t.TempDir()})
	shell := "sh"
	if runtime.GOOS == "windows" {
		t.Skip("POSIX-only test")
	}
	res, err := r.Resolve(context.Background(), shell)
	require.NoError(t, err)
	assert.Equal(t, KindFound, res.Kind)
	assert.NotEmpty(t, res.Path)
}

func TestResolveNotFound(t *testing.T) {
	r := New(Options{CacheDir: t.TempDir()})
	res, err := r.Resolve(context.Background(), "definitely-not-a-real-tool-xyz")
	require.NoError(t, err)
	assert.Equal(t, KindNotFound, res.Kind)
}

func TestResolveDelegated(t *testing.T) {
	r := New(Options{CacheDir: t.TempDir(), DelegateImage: "huskycat/tools:latest"})
	res, err := r.Resolve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, KindDelegated, res.Kind)
	assert.Equal(t, "huskycat/tools:latest", res.Launcher.Image)
	assert.Equal(t, "docker", res.Launcher.Runtime)
}

func TestEmbeddedExtractionIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CacheDir:      dir,
		BundleVersion: "v1.2.3",
		EmbeddedTools: map[string][]byte{"mytool": []byte("#!/bin/sh\necho hi\n")},
	}
	r1 := New(opts)
	res1, err := r1.Resolve(context.Background(), "mytool")
	require.NoError(t, err)
	require.Equal(t, KindFound, res1.Kind)

	data1, err := os.ReadFile(filepath.Join(dir, ".manifest.json"))
	require.NoError(t, err)

	r2 := New(opts)
	res2, err := r2.Resolve(context.Background(), "mytool")
	require.NoError(t, err)
	require.Equal(t, KindFound, res2.Kind)

	data2, err := os.ReadFile(filepath.Join(dir, ".manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, data1, data2, "P10: idempotent extraction, manifest byte-identical")
}

func TestExtractionHappensAtMostOncePerProcess(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{
		CacheDir:      dir,
		BundleVersion: "v1",
		EmbeddedTools: map[string][]byte{"t": []byte("x")},
	})
	for i := 0; i < 5; i++ {
		_, err := r.Resolve(context.Background(), "t")
		require.NoError(t, err)
	}
	assert.True(t, r.manifest.loaded)
}
