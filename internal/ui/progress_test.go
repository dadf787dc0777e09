package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_StageTransitions(t *testing.T) {
	p := NewProgressTracker()

	stats := p.Stats()
	assert.Equal(t, StageScanning, stats.Stage)

	p.SetStage(StageEmbedding, 100)
	p.Update(25, "pkg/a.go")

	stats = p.Stats()
	assert.Equal(t, StageEmbedding, stats.Stage)
	assert.Equal(t, 25, stats.Current)
	assert.Equal(t, 100, stats.Total)
	assert.InDelta(t, 0.25, stats.Progress, 0.001)
	assert.Equal(t, "pkg/a.go", stats.CurrentFile)
}

func TestProgressTracker_ProgressClamped(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageStoring, 10)
	p.Update(15, "")
	assert.Equal(t, 1.0, p.Stats().Progress)
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	p := NewProgressTracker()
	stats := p.Stats()
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{File: "a.go", Err: errors.New("boom")})
	p.AddError(ErrorEvent{File: "b.go", Err: errors.New("slow"), IsWarn: true})
	p.AddError(ErrorEvent{File: "c.go", Err: errors.New("boom again")})

	stats := p.Stats()
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
}

func TestProgressTracker_SpeedAfterInterval(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageEmbedding, 1000)

	p.Update(10, "")
	// Force the sampling window to have elapsed.
	p.mu.Lock()
	p.lastSpeedCalc = time.Now().Add(-time.Second)
	p.mu.Unlock()
	p.Update(110, "")

	speed := p.SpeedStats()
	assert.Greater(t, speed.Current, 0.0)
	assert.Greater(t, speed.Avg, 0.0)
	assert.GreaterOrEqual(t, speed.Peak, speed.Current)
}

func TestProgressTracker_SetStageResetsSpeed(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageEmbedding, 100)
	p.mu.Lock()
	p.lastSpeedCalc = time.Now().Add(-time.Second)
	p.mu.Unlock()
	p.Update(50, "")
	assert.Greater(t, p.SpeedStats().Current, 0.0)

	p.SetStage(StageStoring, 100)
	assert.Zero(t, p.SpeedStats().Current)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	p := NewProgressTracker()
	assert.GreaterOrEqual(t, p.Elapsed(), time.Duration(0))
}
