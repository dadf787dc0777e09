package index

import (
	"sync"
	"time"
)

// BulkStatus is the overall state of a bulk-indexing run.
type BulkStatus string

const (
	// BulkStatusRunning means indexing is in progress.
	BulkStatusRunning BulkStatus = "running"
	// BulkStatusDone means the run completed (possibly with file errors).
	BulkStatusDone BulkStatus = "done"
	// BulkStatusError means the run aborted.
	BulkStatusError BulkStatus = "error"
)

// ProgressSnapshot is an immutable view of a bulk-indexing run, safe to
// serialize for status commands and MCP tools.
type ProgressSnapshot struct {
	Status         string  `json:"status"`
	FilesTotal     int     `json:"files_total"`
	FilesCompleted int     `json:"files_completed"`
	FilesFailed    int     `json:"files_failed"`
	CurrentFile    string  `json:"current_file,omitempty"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks a bulk-indexing run for concurrent readers. Writers are
// the indexing workers; readers are status endpoints polling snapshots.
type Progress struct {
	mu sync.RWMutex

	status      BulkStatus
	total       int
	completed   int
	failed      int
	currentFile string
	startTime   time.Time
	errMessage  string
}

// NewProgress starts tracking a run over total files.
func NewProgress(total int) *Progress {
	return &Progress{
		status:    BulkStatusRunning,
		total:     total,
		startTime: time.Now(),
	}
}

// Update records a completed file. Wired as the ProgressFunc of
// Indexer.IndexFiles.
func (p *Progress) Update(current, total int, currentFile string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = current
	p.total = total
	p.currentFile = currentFile
}

// AddFailure counts one failed file.
func (p *Progress) AddFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
}

// SetDone marks the run complete.
func (p *Progress) SetDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = BulkStatusDone
	p.currentFile = ""
}

// SetError marks the run aborted.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = BulkStatusError
	p.errMessage = message
}

// Running reports whether the run is still in progress.
func (p *Progress) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == BulkStatusRunning
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.completed) / float64(p.total) * 100.0
	}

	return ProgressSnapshot{
		Status:         string(p.status),
		FilesTotal:     p.total,
		FilesCompleted: p.completed,
		FilesFailed:    p.failed,
		CurrentFile:    p.currentFile,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errMessage,
	}
}
