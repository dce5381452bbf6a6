package scheduler

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/registry"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/resolver"
)

// pathResolve resolves executable names straight off PATH, for tests
// that exercise scheduling logic against real (trivial) binaries like
// /bin/true and /bin/false, mirroring ccfeedback's own test style of
// using real short-lived processes rather than mocking exec.Command.
func pathResolve(ctx context.Context, executable string) (resolver.Resolution, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return resolver.Resolution{Kind: resolver.KindNotFound}, nil
	}
	return resolver.Resolution{Kind: resolver.KindFound, Path: path}, nil
}

func baseReq() huskycat.RunRequest {
	return huskycat.RunRequest{
		MaxWorkers:     4,
		PerToolTimeout: 5 * time.Second,
	}
}

// S1: empty file list.
func TestScenarioEmptyFileList(t *testing.T) {
	reg, err := registry.New(registry.Builtin())
	require.NoError(t, err)

	names := reg.Select(nil, huskycat.ProfileAll, nil)
	assert.Empty(t, names)

	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)
	req := baseReq()
	req.Files = nil
	req.ToolSelection = names

	out := s.Run(context.Background(), req, dag, nil, nil)
	assert.Equal(t, huskycat.OverallSuccess, out.OverallStatus)
	assert.Empty(t, out.PerTool)
}

// S2: single-tool success.
func TestScenarioSingleToolSuccess(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{
			Name: "echo-ok", Executable: "true",
			ArgvTemplate: []string{"{file}"},
			AppliesTo:    []string{"*.txt"},
			Category:     huskycat.CategoryLinter,
		},
	})
	require.NoError(t, err)

	req := baseReq()
	req.Files = []string{"a.txt"}
	names := reg.Select(req.Files, huskycat.ProfileAll, nil)
	require.Equal(t, []string{"echo-ok"}, names)

	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)
	out := s.Run(context.Background(), req, dag, nil, nil)

	require.Contains(t, out.PerTool, "echo-ok")
	r := out.PerTool["echo-ok"]
	assert.Equal(t, huskycat.StatusSuccess, r.Status)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, 0, *r.ExitCode)
	assert.Equal(t, huskycat.OverallSuccess, out.OverallStatus)
}

// S3: dependency skip, both directions.
func TestScenarioDependencySkip(t *testing.T) {
	build := func(fmtExe string) *registry.Registry {
		reg, err := registry.New([]huskycat.ToolDescriptor{
			{Name: "fmt", Executable: fmtExe, ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}},
			{Name: "lint", Executable: "false", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}, DependsOn: []string{"fmt"}},
		})
		require.NoError(t, err)
		return reg
	}

	t.Run("fmt succeeds, lint fails", func(t *testing.T) {
		reg := build("true")
		req := baseReq()
		req.Files = []string{"a"}
		names := reg.Select(req.Files, huskycat.ProfileAll, nil)
		dag := reg.Subgraph(names)
		s := New(reg, pathResolve)
		out := s.Run(context.Background(), req, dag, nil, nil)

		assert.Equal(t, huskycat.StatusSuccess, out.PerTool["fmt"].Status)
		assert.Equal(t, huskycat.StatusFailed, out.PerTool["lint"].Status)
		assert.Equal(t, huskycat.OverallFailed, out.OverallStatus)
	})

	t.Run("fmt fails, lint skipped", func(t *testing.T) {
		reg := build("false")
		req := baseReq()
		req.Files = []string{"a"}
		names := reg.Select(req.Files, huskycat.ProfileAll, nil)
		dag := reg.Subgraph(names)
		s := New(reg, pathResolve)
		out := s.Run(context.Background(), req, dag, nil, nil)

		assert.Equal(t, huskycat.StatusFailed, out.PerTool["fmt"].Status)
		assert.Equal(t, huskycat.StatusSkipped, out.PerTool["lint"].Status)
		assert.Contains(t, out.PerTool["lint"].SkipReason, "fmt")
		assert.Equal(t, huskycat.OverallFailed, out.OverallStatus)
	})
}

// S4: timeout.
func TestScenarioTimeout(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{Name: "slow", Executable: "sleep", ArgvTemplate: []string{"60"}, AppliesTo: []string{"*"}},
	})
	require.NoError(t, err)

	req := baseReq()
	req.Files = []string{"a"}
	req.PerToolTimeout = 500 * time.Millisecond
	names := reg.Select(req.Files, huskycat.ProfileAll, nil)
	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)

	start := time.Now()
	out := s.Run(context.Background(), req, dag, nil, nil)
	elapsed := time.Since(start)

	assert.Equal(t, huskycat.StatusTimedOut, out.PerTool["slow"].Status)
	assert.Equal(t, huskycat.OverallFailed, out.OverallStatus)
	assert.Less(t, elapsed, 4*time.Second, "P11: finalize within per_tool_timeout + grace")
}

// S5: fail-fast.
func TestScenarioFailFast(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{Name: "ok1", Executable: "true", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}},
		{Name: "ok2", Executable: "true", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}},
		{Name: "bad", Executable: "false", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}},
		{Name: "later", Executable: "true", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}, DependsOn: []string{"ok1"}},
	})
	require.NoError(t, err)

	req := baseReq()
	req.Files = []string{"a"}
	req.FailFast = true
	names := reg.Select(req.Files, huskycat.ProfileAll, nil)
	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)
	out := s.Run(context.Background(), req, dag, nil, nil)

	require.Contains(t, out.PerTool, "later")
	assert.Equal(t, huskycat.StatusSkipped, out.PerTool["later"].Status)
	assert.Equal(t, "fail-fast", out.PerTool["later"].SkipReason)
	assert.Equal(t, huskycat.OverallFailed, out.OverallStatus)
}

func TestLevelCorrectness(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{Name: "a"},
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "c", DependsOn: []string{"b"}},
	})
	require.NoError(t, err)
	dag := reg.Subgraph([]string{"a", "b", "c"})
	levels := computeLevels(dag)

	pos := map[string]int{}
	for i, l := range levels {
		for _, n := range l {
			pos[n] = i
		}
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestNotApplicableToolIsNotAFailure(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{Name: "missing", Executable: "definitely-not-a-real-binary-xyz", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}},
	})
	require.NoError(t, err)

	req := baseReq()
	req.Files = []string{"a"}
	names := reg.Select(req.Files, huskycat.ProfileAll, nil)
	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)
	out := s.Run(context.Background(), req, dag, nil, nil)

	assert.Equal(t, huskycat.StatusNotApplicable, out.PerTool["missing"].Status)
	assert.Equal(t, huskycat.OverallSuccess, out.OverallStatus)
}

func TestCancellationMarksRemainingLevelsAborted(t *testing.T) {
	reg, err := registry.New([]huskycat.ToolDescriptor{
		{Name: "slow", Executable: "sleep", ArgvTemplate: []string{"5"}, AppliesTo: []string{"*"}},
		{Name: "later", Executable: "true", ArgvTemplate: []string{"{file}"}, AppliesTo: []string{"*"}, DependsOn: []string{"slow"}},
	})
	require.NoError(t, err)

	req := baseReq()
	req.Files = []string{"a"}
	names := reg.Select(req.Files, huskycat.ProfileAll, nil)
	dag := reg.Subgraph(names)
	s := New(reg, pathResolve)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := s.Run(ctx, req, dag, nil, nil)
	assert.Equal(t, huskycat.OverallAborted, out.OverallStatus)
}
