// Package output formats CLI status lines and search results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/semdex/internal/search"
)

// Writer prints status lines and result listings for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a message with a leading tag. Write errors on console
// output are ignored.
func (w *Writer) Status(tag, msg string) {
	if tag != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", tag, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf prints a formatted message with a leading tag.
func (w *Writer) Statusf(tag, format string, args ...any) {
	w.Status(tag, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) { w.Status("ok:", msg) }

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) { w.Status("warning:", msg) }

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) { w.Status("error:", msg) }

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// snippetMaxLines bounds the content preview per result.
const snippetMaxLines = 6

// Results prints ranked search results: rank, path#chunk, score, then an
// indented content snippet.
func (w *Writer) Results(query string, results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(w.out, "no results for %q\n", query)
		return
	}

	_, _ = fmt.Fprintf(w.out, "%d result(s) for %q\n\n", len(results), query)
	for i, r := range results {
		_, _ = fmt.Fprintf(w.out, "%2d. %s#%d  (score %.3f", i+1, r.FilePath, r.ChunkIndex, r.Score)
		if r.Lexical > 0 {
			_, _ = fmt.Fprintf(w.out, ", semantic %.3f, lexical %.3f", r.Semantic, r.Lexical)
		}
		_, _ = fmt.Fprintln(w.out, ")")

		if len(r.MatchedTerms) > 0 {
			_, _ = fmt.Fprintf(w.out, "    matched: %s\n", strings.Join(r.MatchedTerms, ", "))
		}
		w.snippet(r.Content)
	}
}

// ResultsJSON prints results as indented JSON for scripting.
func (w *Writer) ResultsJSON(results []search.Result) error {
	type jsonResult struct {
		FilePath   string   `json:"file_path"`
		ChunkIndex int      `json:"chunk_index"`
		Score      float64  `json:"score"`
		Semantic   float64  `json:"semantic,omitempty"`
		Lexical    float64  `json:"lexical,omitempty"`
		Matched    []string `json:"matched_terms,omitempty"`
		Content    string   `json:"content"`
	}

	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{
			FilePath:   r.FilePath,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
			Semantic:   r.Semantic,
			Lexical:    r.Lexical,
			Matched:    r.MatchedTerms,
			Content:    r.Content,
		}
	}

	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// snippet prints up to snippetMaxLines of content, indented, with an
// ellipsis line when truncated.
func (w *Writer) snippet(content string) {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	truncated := false
	if len(lines) > snippetMaxLines {
		lines = lines[:snippetMaxLines]
		truncated = true
	}
	for _, line := range lines {
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
	if truncated {
		_, _ = fmt.Fprintln(w.out, "    ...")
	}
	_, _ = fmt.Fprintln(w.out)
}
