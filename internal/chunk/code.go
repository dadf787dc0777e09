package chunk

import (
	"context"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CodeChunker splits source files along symbol boundaries using
// tree-sitter. Each top-level symbol (function, method, class, type
// declaration) becomes one chunk, with the file's package/import context
// prepended so the symbol embeds with its surroundings. Symbols larger
// than the size bound are split into overlapping line windows.
//
// Unsupported languages and parse failures fall back to the window
// chunker; since that fallback is itself deterministic, the whole chunker
// stays deterministic.
type CodeChunker struct {
	opts     Options
	fallback *WindowChunker
}

// NewCodeChunker creates a code chunker with a window-chunker fallback.
func NewCodeChunker(opts Options) *CodeChunker {
	opts = opts.normalized()
	return &CodeChunker{
		opts:     opts,
		fallback: NewWindowChunker(opts),
	}
}

// Chunk splits content along symbol boundaries, falling back to windows
// when the language is unknown or the parse fails.
func (c *CodeChunker) Chunk(ctx context.Context, filePath, content string) ([]Chunk, error) {
	lang := LanguageFor(filePath)
	if lang == nil {
		return c.fallback.Chunk(ctx, filePath, content)
	}
	if strings.TrimSpace(content) == "" {
		return []Chunk{}, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang.Lang)
	defer parser.Close()

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		slog.Debug("code_chunker_parse_failed",
			slog.String("file", filePath),
			slog.String("language", lang.Name),
			slog.String("error", err.Error()))
		return c.fallback.Chunk(ctx, filePath, content)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return c.fallback.Chunk(ctx, filePath, content)
	}

	fileContext := collectContext(root, source, lang, c.opts.MaxChunkSize/2)
	symbols := collectSymbols(root, lang)
	if len(symbols) == 0 {
		return c.fallback.Chunk(ctx, filePath, content)
	}

	var chunks []Chunk
	for _, node := range symbols {
		text := string(source[node.StartByte():node.EndByte()])
		startLine := int(node.StartPoint().Row) + 1
		endLine := int(node.EndPoint().Row) + 1

		if len(fileContext)+len(text) <= c.opts.MaxChunkSize {
			body := text
			if fileContext != "" {
				body = fileContext + "\n\n" + text
			}
			chunks = append(chunks, Chunk{
				FilePath:  filePath,
				Index:     len(chunks),
				Content:   body,
				StartLine: startLine,
				EndLine:   endLine,
			})
			continue
		}

		// Oversized symbol: split its body into overlapping line windows.
		for _, win := range splitLines(text, c.opts) {
			chunks = append(chunks, Chunk{
				FilePath:  filePath,
				Index:     len(chunks),
				Content:   win.content,
				StartLine: startLine + win.startLine,
				EndLine:   startLine + win.endLine,
			})
		}
	}

	if len(chunks) == 0 {
		return c.fallback.Chunk(ctx, filePath, content)
	}
	return chunks, nil
}

// collectContext concatenates package clause and import nodes, capped so
// pathological import blocks cannot crowd out the symbol itself.
func collectContext(root *sitter.Node, source []byte, lang *Language, maxLen int) string {
	var parts []string
	total := 0
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || !lang.ContextTypes[child.Type()] {
			continue
		}
		text := string(source[child.StartByte():child.EndByte()])
		if total+len(text) > maxLen {
			break
		}
		parts = append(parts, text)
		total += len(text)
	}
	return strings.Join(parts, "\n")
}

// collectSymbols gathers top-level symbol nodes in source order.
func collectSymbols(root *sitter.Node, lang *Language) []*sitter.Node {
	var symbols []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		if lang.SymbolTypes[child.Type()] {
			symbols = append(symbols, child)
		}
	}
	return symbols
}

// lineWindow is a slice of an oversized symbol, with line offsets relative
// to the symbol's first line.
type lineWindow struct {
	content   string
	startLine int
	endLine   int
}

// splitLines splits text into overlapping windows along line boundaries.
func splitLines(text string, opts Options) []lineWindow {
	lines := strings.Split(text, "\n")

	var windows []lineWindow
	start := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) && size+len(lines[end])+1 <= opts.MaxChunkSize {
			size += len(lines[end]) + 1
			end++
		}
		if end == start {
			// Single line longer than the bound: take it whole.
			end = start + 1
		}

		windows = append(windows, lineWindow{
			content:   strings.Join(lines[start:end], "\n"),
			startLine: start,
			endLine:   end - 1,
		})

		if end >= len(lines) {
			break
		}

		// Step back a few lines for overlap, bounded so we always advance.
		overlapLines := 0
		overlapSize := 0
		for i := end - 1; i > start && overlapSize < opts.Overlap; i-- {
			overlapSize += len(lines[i]) + 1
			overlapLines++
		}
		next := end - overlapLines
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return windows
}
