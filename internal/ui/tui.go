package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer drives a bubbletea program showing the indexing pipeline.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Fails when the output is not a
// terminal so NewRenderer can fall back to plain mode.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a terminal")
	}

	tracker := NewProgressTracker()
	model := newIndexModel(tracker, cfg.ProjectDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	_, r.cancel = context.WithCancel(ctx)

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.tracker.Stats().Stage {
		r.tracker.SetStage(event.Stage, event.Total)
	}
	r.tracker.Update(event.Current, event.CurrentFile)

	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete, 0)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.program != nil {
		r.program.Quit()
		// Bounded wait so Ctrl+C never hangs on an unresponsive program.
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	return nil
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// indexModel is the bubbletea model for the indexing pipeline view.
type indexModel struct {
	tracker    *ProgressTracker
	bar        progress.Model
	spinner    spinner.Model
	styles     Styles
	projectDir string
	width      int
	quitting   bool
	complete   bool
	stats      CompletionStats
}

func newIndexModel(tracker *ProgressTracker, projectDir string) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent))

	bar := progress.New(
		progress.WithSolidFill(colorAccent),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &indexModel{
		tracker:    tracker,
		bar:        bar,
		spinner:    s,
		styles:     DefaultStyles(),
		projectDir: projectDir,
		width:      80,
	}
}

func (m *indexModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 20 {
			m.bar.Width = 20
		}

	case progressMsg, errorMsg:
		// State lives in the tracker; the view reads it each tick.
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *indexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	var lines []string
	lines = append(lines, m.renderHeader())
	lines = append(lines, m.renderStages())
	lines = append(lines, m.renderProgress())
	if file := m.tracker.Stats().CurrentFile; file != "" {
		lines = append(lines, m.styles.Dim.Render(truncatePath(file, m.width-4)))
	}
	lines = append(lines, m.renderStatusLine())
	return strings.Join(lines, "\n") + "\n"
}

func (m *indexModel) renderHeader() string {
	title := "semdex"
	if m.projectDir != "" {
		title += "  " + m.styles.Label.Render(m.projectDir)
	}
	return m.styles.Header.Render(title)
}

func (m *indexModel) renderStages() string {
	current := m.tracker.Stats().Stage

	stages := []struct {
		stage Stage
		name  string
	}{
		{StageScanning, "Scan"},
		{StageChunking, "Chunk"},
		{StageEmbedding, "Embed"},
		{StageStoring, "Store"},
	}

	var parts []string
	for _, s := range stages {
		switch {
		case s.stage < current:
			parts = append(parts, m.styles.Success.Render("● "+s.name))
		case s.stage == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *indexModel) renderProgress() string {
	stats := m.tracker.Stats()
	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...", m.spinner.View(), stats.Stage)
	}

	bar := m.bar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%d / %d", stats.Current, stats.Total))

	speed := ""
	if stats.Speed.Avg > 0 {
		speed = m.styles.Label.Render(fmt.Sprintf("  %.0f/s", stats.Speed.Avg))
	}
	eta := ""
	if stats.ETA > 0 {
		eta = m.styles.Label.Render("  ETA " + formatDuration(stats.ETA))
	}
	return fmt.Sprintf("%s %s\n%s%s%s", bar, pct, count, speed, eta)
}

func (m *indexModel) renderStatusLine() string {
	stats := m.tracker.Stats()
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("%d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("%d errors", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  |  "))
}

func (m *indexModel) renderComplete() string {
	var lines []string
	lines = append(lines, m.styles.Success.Render("✓ Indexing complete"))
	lines = append(lines, fmt.Sprintf("  %s %d files, %d chunks in %s",
		m.styles.Label.Render("indexed:"), m.stats.Files, m.stats.Chunks, formatDuration(m.stats.Duration)))

	if speed := m.tracker.SpeedStats(); speed.Avg > 0 {
		lines = append(lines, fmt.Sprintf("  %s %.0f chunks/sec",
			m.styles.Label.Render("speed:"), speed.Avg))
	}
	if m.stats.Embedder.Provider != "" {
		lines = append(lines, fmt.Sprintf("  %s %s (%s, %d dimensions)",
			m.styles.Label.Render("embedder:"),
			m.stats.Embedder.Provider, m.stats.Embedder.Model, m.stats.Embedder.Dimensions))
	}
	if m.stats.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("  %d errors", m.stats.Errors)))
	}
	if m.stats.Warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("  %d warnings", m.stats.Warnings)))
	}
	return strings.Join(lines, "\n") + "\n"
}

// formatDuration renders a duration as 42s, 2m 15s, or 1h 3m.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncatePath shortens a path from the left, keeping the filename.
func truncatePath(path string, maxLen int) string {
	if maxLen < 4 || len(path) <= maxLen {
		return path
	}
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "..." + path[len(path)-maxLen+3:]
	}
	filename := path[idx+1:]
	if len(filename)+4 >= maxLen {
		return ".../" + filename
	}
	prefix := path[:idx]
	keep := maxLen - len(filename) - 4
	if len(prefix) <= keep {
		return path
	}
	return "..." + prefix[len(prefix)-keep:] + "/" + filename
}

var _ Renderer = (*TUIRenderer)(nil)
