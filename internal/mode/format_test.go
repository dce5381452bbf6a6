package mode

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

func sampleRecord() *huskycat.RunRecord {
	return &huskycat.RunRecord{
		RunID:         "1-abc",
		StartedAt:     time.Now(),
		OverallStatus: huskycat.OverallFailed,
		PerTool: map[string]huskycat.ToolResult{
			"gofmt": {Tool: "gofmt", Status: huskycat.StatusSuccess, Duration: time.Millisecond},
			"vet":   {Tool: "vet", Status: huskycat.StatusFailed, Output: []byte("vet: bad thing\nmore detail"), Duration: 2 * time.Millisecond},
		},
	}
}

func TestRenderMinimalListsOnlyFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRecord(), FormatMinimal))
	out := buf.String()
	assert.Contains(t, out, "vet: vet: bad thing")
	assert.NotContains(t, out, "gofmt")
}

func TestRenderMinimalSilentOnSuccess(t *testing.T) {
	rec := sampleRecord()
	rec.OverallStatus = huskycat.OverallSuccess
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rec, FormatMinimal))
	assert.Empty(t, buf.String())
}

func TestRenderJSONIncludesRunID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRecord(), FormatJSON))
	assert.Contains(t, buf.String(), "\"run_id\": \"1-abc\"")
}

func TestRenderJUnitShapesOneCasePerTool(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRecord(), FormatJUnit))
	out := buf.String()
	assert.Contains(t, out, "<testsuite")
	assert.Contains(t, out, `name="gofmt"`)
	assert.Contains(t, out, `name="vet"`)
	assert.Contains(t, out, "failures=\"1\"")
}

func TestRenderHumanIncludesOverallStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRecord(), FormatHuman))
	assert.Contains(t, buf.String(), "overall: Failed")
}
