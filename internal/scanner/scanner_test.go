package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// writeTree materializes a map of relative path to content under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func collectPaths(t *testing.T, s *Scanner) []string {
	t.Helper()
	files, err := s.Collect(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

func TestScanner_FindsFilesWithMetadata(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":        "package main\n\nfunc main() {}\n",
		"docs/readme.md": "# readme\n",
		"config.yaml":    "key: value\n",
	})

	s, err := New(Options{RootDir: root})
	require.NoError(t, err)

	files, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 3)

	byPath := make(map[string]*FileInfo)
	for _, f := range files {
		byPath[f.Path] = f
		assert.True(t, filepath.IsAbs(f.AbsPath))
		assert.Positive(t, f.Size)
		assert.False(t, f.ModTime.IsZero())
	}

	require.Contains(t, byPath, "main.go")
	assert.Equal(t, "go", byPath["main.go"].Language)
	assert.Equal(t, ContentTypeCode, byPath["main.go"].ContentType)

	require.Contains(t, byPath, "docs/readme.md")
	assert.Equal(t, ContentTypeMarkdown, byPath["docs/readme.md"].ContentType)

	require.Contains(t, byPath, "config.yaml")
	assert.Equal(t, ContentTypeConfig, byPath["config.yaml"].ContentType)
}

func TestScanner_BuiltInExclusions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":              "package main\n",
		"node_modules/pkg.js":  "module.exports = {}\n",
		"vendor/dep.go":        "package dep\n",
		"dist/bundle.min.js":   "var a=1\n",
		"app.min.js":           "var b=2\n",
		"package-lock.json":    "{}\n",
		".env":                 "API_KEY=x\n",
		".env.local":           "API_KEY=y\n",
		"deploy.pem":           "-----BEGIN-----\n",
		"id_rsa":               "private\n",
		"aws_credentials.json": "{}\n",
	})

	s, err := New(Options{RootDir: root})
	require.NoError(t, err)

	paths := collectPaths(t, s)
	assert.Equal(t, []string{"main.go"}, paths)
}

func TestScanner_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":     "*.log\ntmp/\n",
		"sub/.gitignore": "local.yaml\n",
		"main.go":        "package main\n",
		"debug.log":      "line\n",
		"tmp/scratch.go": "package scratch\n",
		"sub/local.yaml": "a: 1\n",
		"sub/kept.go":    "package sub\n",
	})

	s, err := New(Options{RootDir: root, RespectGitignore: true})
	require.NoError(t, err)
	paths := collectPaths(t, s)
	assert.ElementsMatch(t, []string{".gitignore", "sub/.gitignore", "main.go", "sub/kept.go"}, paths)

	// Without the flag the ignored files come back.
	s, err = New(Options{RootDir: root})
	require.NoError(t, err)
	paths = collectPaths(t, s)
	assert.Contains(t, paths, "debug.log")
	assert.Contains(t, paths, "sub/local.yaml")
}

func TestScanner_IncludePatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":      "package a\n",
		"sub/b.go":  "package b\n",
		"notes.txt": "notes\n",
	})

	s, err := New(Options{RootDir: root, IncludePatterns: []string{"*.go"}})
	require.NoError(t, err)

	paths := collectPaths(t, s)
	assert.ElementsMatch(t, []string{"a.go", "sub/b.go"}, paths)
}

func TestScanner_ExcludePatternsPruneDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":         "package main\n",
		"gen/types.go":    "package gen\n",
		"gen/sub/more.go": "package sub\n",
	})

	// Config-style glob; the scanner prunes the whole subtree.
	s, err := New(Options{RootDir: root, ExcludePatterns: []string{"**/gen/**"}})
	require.NoError(t, err)

	paths := collectPaths(t, s)
	assert.Equal(t, []string{"main.go"}, paths)
}

func TestScanner_SkipsBinaryAndOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go": "package main\n",
		"big.go":  strings.Repeat("x", 2048),
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.dat"), []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01}, 0o644))

	s, err := New(Options{RootDir: root, MaxFileSize: 1024})
	require.NoError(t, err)

	paths := collectPaths(t, s)
	assert.Equal(t, []string{"main.go"}, paths)
}

func TestScanner_FlagsGeneratedFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"gen.go":  "// Code generated by protoc-gen-go. DO NOT EDIT.\npackage pb\n",
		"main.go": "package main\n",
	})

	s, err := New(Options{RootDir: root})
	require.NoError(t, err)

	files, err := s.Collect(context.Background())
	require.NoError(t, err)
	for _, f := range files {
		assert.Equal(t, f.Path == "gen.go", f.IsGenerated, f.Path)
	}
}

func TestScanner_FileLimit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
		"c.go": "package c\n",
		"d.go": "package d\n",
	})

	s, err := New(Options{RootDir: root, MaxFiles: 2})
	require.NoError(t, err)

	files, err := s.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeInvalidInput, semerrors.GetCode(err))
	assert.Len(t, files, 2, "files before the limit are still delivered")
}

func TestScanner_RootMustBeDirectory(t *testing.T) {
	_, err := New(Options{RootDir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeInvalidPath, semerrors.GetCode(err))
}

func TestScanner_Includes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})

	s, err := New(Options{RootDir: root, IncludePatterns: []string{"*.go"}})
	require.NoError(t, err)

	assert.True(t, s.Includes("pkg/handler.go", false))
	assert.False(t, s.Includes("README.md", false), "misses the include patterns")
	assert.False(t, s.Includes("node_modules", true))
	assert.False(t, s.Includes(".env", false))
	assert.True(t, s.Includes("pkg", true), "include patterns never rule out directories")
}

func TestScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})

	s, err := New(Options{RootDir: root})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"cmd/root.go", "go"},
		{"web/app.tsx", "typescript"},
		{"scripts/run.sh", "shell"},
		{"Dockerfile", "dockerfile"},
		{"sub/Makefile", "makefile"},
		{"README.md", "markdown"},
		{"unknown.xyz", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}
