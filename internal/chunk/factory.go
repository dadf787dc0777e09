package chunk

import "context"

// Mode selects the chunking strategy.
type Mode string

const (
	// ModeAuto uses symbol-boundary chunking for registered languages and
	// window chunking for everything else.
	ModeAuto Mode = "auto"
	// ModeWindow forces plain window chunking for all files.
	ModeWindow Mode = "window"
)

// autoChunker routes files to the code chunker when their extension has a
// registered grammar, otherwise to the window chunker.
type autoChunker struct {
	code   *CodeChunker
	window *WindowChunker
}

func (a *autoChunker) Chunk(ctx context.Context, filePath, content string) ([]Chunk, error) {
	if LanguageFor(filePath) != nil {
		return a.code.Chunk(ctx, filePath, content)
	}
	return a.window.Chunk(ctx, filePath, content)
}

// New creates a chunker for the given mode.
func New(mode Mode, opts Options) Chunker {
	opts = opts.normalized()
	switch mode {
	case ModeWindow:
		return NewWindowChunker(opts)
	default:
		return &autoChunker{
			code:   NewCodeChunker(opts),
			window: NewWindowChunker(opts),
		}
	}
}
