package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/mode"
)

func TestEngineValidateEndToEnd(t *testing.T) {
	dir := t.TempDir()

	e, err := NewBuilder().
		WithRepoRoot(dir).
		WithTools([]huskycat.ToolDescriptor{
			{Name: "echo-ok", Executable: "true", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*.go"}, Category: huskycat.CategoryLinter},
		}).
		Build()
	require.NoError(t, err)

	var out bytes.Buffer
	req := huskycat.RunRequest{Files: []string{"main.go"}, PerToolTimeout: 0}
	result, err := e.Validate(context.Background(), mode.CLI, req, &out, nil, false)
	require.NoError(t, err)

	assert.Equal(t, huskycat.OverallSuccess, result.Record.OverallStatus)
	assert.Contains(t, result.Record.PerTool, "echo-ok")
}

func TestEngineBuildRejectsCyclicRegistry(t *testing.T) {
	dir := t.TempDir()
	_, err := NewBuilder().
		WithRepoRoot(dir).
		WithTools([]huskycat.ToolDescriptor{
			{Name: "a", DependsOn: []string{"b"}},
			{Name: "b", DependsOn: []string{"a"}},
		}).
		Build()
	assert.Error(t, err)
}
