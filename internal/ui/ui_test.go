package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageStrings(t *testing.T) {
	assert.Equal(t, "Scanning", StageScanning.String())
	assert.Equal(t, "Storing", StageStoring.String())
	assert.Equal(t, "SCAN", StageScanning.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestNewConfigOptions(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewConfig(&buf,
		WithForcePlain(true),
		WithNoColor(true),
		WithProjectDir("/tmp/project"),
	)

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "/tmp/project", cfg.ProjectDir)
	assert.Equal(t, &buf, cfg.Output)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf))
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestNewRenderer_PlainWhenForced(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf, WithForcePlain(true)))
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}
