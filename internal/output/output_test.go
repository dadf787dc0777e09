package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdex/internal/search"
)

func TestWriter_StatusLines(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Success("index ready")
	w.Warningf("%d files skipped", 3)
	w.Error("backend offline")
	w.Status("", "plain detail")

	out := buf.String()
	assert.Contains(t, out, "ok: index ready")
	assert.Contains(t, out, "warning: 3 files skipped")
	assert.Contains(t, out, "error: backend offline")
	assert.Contains(t, out, "   plain detail")
}

func TestWriter_ResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Results("parse config", nil)
	assert.Contains(t, buf.String(), `no results for "parse config"`)
}

func TestWriter_Results(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Results("auth handler", []search.Result{
		{
			FilePath:     "internal/auth/handler.go",
			ChunkIndex:   2,
			Content:      "func HandleLogin(w http.ResponseWriter, r *http.Request) {\n\t// ...\n}",
			Score:        0.91,
			Semantic:     0.88,
			Lexical:      0.97,
			MatchedTerms: []string{"auth", "handler"},
		},
		{
			FilePath:   "pkg/session/session.go",
			ChunkIndex: 0,
			Content:    "type Session struct{}",
			Score:      0.42,
		},
	})

	out := buf.String()
	assert.Contains(t, out, `2 result(s) for "auth handler"`)
	assert.Contains(t, out, " 1. internal/auth/handler.go#2  (score 0.910, semantic 0.880, lexical 0.970)")
	assert.Contains(t, out, "matched: auth, handler")
	assert.Contains(t, out, "    func HandleLogin")
	assert.Contains(t, out, " 2. pkg/session/session.go#0  (score 0.420)")
}

func TestWriter_ResultsSnippetTruncated(t *testing.T) {
	var buf bytes.Buffer
	content := strings.Repeat("line\n", 20)
	New(&buf).Results("q", []search.Result{{FilePath: "a.go", Content: content, Score: 0.5}})

	out := buf.String()
	assert.Equal(t, 6, strings.Count(out, "    line"))
	assert.Contains(t, out, "    ...")
}

func TestWriter_ResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	err := New(&buf).ResultsJSON([]search.Result{
		{FilePath: "a.go", ChunkIndex: 1, Score: 0.7, Content: "x"},
	})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "a.go", decoded[0]["file_path"])
	assert.Equal(t, 0.7, decoded[0]["score"])
}
