package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

func TestNewRejectsCycle(t *testing.T) {
	_, err := New([]huskycat.ToolDescriptor{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	})
	require.Error(t, err)
	var cfgErr *huskyerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, huskyerr.CyclicDependency, cfgErr.Kind)
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	_, err := New([]huskycat.ToolDescriptor{
		{Name: "a", DependsOn: []string{"ghost"}},
	})
	require.Error(t, err)
	var cfgErr *huskyerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, huskyerr.UnknownDependency, cfgErr.Kind)
}

func TestNewRejectsUnknownPlaceholder(t *testing.T) {
	_, err := New([]huskycat.ToolDescriptor{
		{Name: "a", ArgvTemplate: []string{"{bogus}"}},
	})
	require.Error(t, err)
	var cfgErr *huskyerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, huskyerr.UnknownPlaceholder, cfgErr.Kind)
}

func TestNewAcceptsKnownPlaceholders(t *testing.T) {
	_, err := New([]huskycat.ToolDescriptor{
		{Name: "a", ArgvTemplate: []string{"{file}", "{files…}", "{fix?}", "--flag"}},
	})
	require.NoError(t, err)
}

func TestBuiltinRegistryConstructs(t *testing.T) {
	r, err := New(Builtin())
	require.NoError(t, err)
	assert.NotEmpty(t, r.All())
}

func TestSelectDeterministicOrder(t *testing.T) {
	r, err := New([]huskycat.ToolDescriptor{
		{Name: "z-fmt", AppliesTo: []string{"**/*.go"}, Category: huskycat.CategoryFormatter},
		{Name: "a-lint", AppliesTo: []string{"**/*.go"}, Category: huskycat.CategoryLinter},
	})
	require.NoError(t, err)

	names := r.Select([]string{"main.go"}, huskycat.ProfileAll, nil)
	require.Equal(t, []string{"z-fmt", "a-lint"}, names) // formatter category sorts before linter
}

func TestSelectEmptyFilesMatchesNothing(t *testing.T) {
	r, err := New(Builtin())
	require.NoError(t, err)
	assert.Empty(t, r.Select(nil, huskycat.ProfileAll, nil))
}

func TestSubgraphPrunesUnselectedDeps(t *testing.T) {
	r, err := New([]huskycat.ToolDescriptor{
		{Name: "fmt"},
		{Name: "lint", DependsOn: []string{"fmt"}},
	})
	require.NoError(t, err)

	dag := r.Subgraph([]string{"lint"})
	assert.Empty(t, dag.Edges["lint"])

	dag2 := r.Subgraph([]string{"fmt", "lint"})
	assert.Equal(t, []string{"fmt"}, dag2.Edges["lint"])
}

func TestDefaultParseCounts(t *testing.T) {
	e, w := DefaultParseCounts(nil, 0)
	assert.Equal(t, 0, e)
	assert.Equal(t, 0, w)

	e, w = DefaultParseCounts(nil, 1)
	assert.Equal(t, 1, e)
	assert.Equal(t, 0, w)
}

func TestGolangciLintJSONCounts(t *testing.T) {
	out := []byte(`{"Issues":[{"Severity":"error"},{"Severity":"warning"}]}`)
	e, w := golangciLintJSONCounts(out, 1)
	assert.Equal(t, 1, e)
	assert.Equal(t, 1, w)
}
