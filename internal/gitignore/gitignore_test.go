package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"exact file", "secret.txt", "secret.txt", false, true},
		{"exact file nested", "secret.txt", "sub/dir/secret.txt", false, true},
		{"star extension", "*.log", "debug.log", false, true},
		{"star extension nested", "*.log", "logs/debug.log", false, true},
		{"star does not cross slash", "a*c", "a/c", false, false},
		{"question mark", "fil?.go", "file.go", false, true},
		{"char class", "file[0-9].go", "file7.go", false, true},
		{"char class miss", "file[0-9].go", "filex.go", false, false},
		{"no match", "*.log", "main.go", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_DirectoryOnly(t *testing.T) {
	m := New()
	m.AddPattern("build/")

	assert.True(t, m.Match("build", true), "directory itself")
	assert.True(t, m.Match("build/out.bin", false), "file inside")
	assert.True(t, m.Match("sub/build/out.bin", false), "nested occurrence")
	assert.False(t, m.Match("build", false), "plain file named build")
}

func TestMatcher_Anchored(t *testing.T) {
	m := New()
	m.AddPattern("/vendor")

	assert.True(t, m.Match("vendor", true))
	assert.False(t, m.Match("third_party/vendor", true), "anchored pattern only matches at root")

	m = New()
	m.AddPattern("doc/frotz")
	assert.True(t, m.Match("doc/frotz", false))
	assert.False(t, m.Match("sub/doc/frotz", false), "internal slash anchors")
}

func TestMatcher_Negation(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("!keep.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("keep.log", false))
}

func TestMatcher_DoubleStar(t *testing.T) {
	m := New()
	m.AddPattern("**/generated")
	assert.True(t, m.Match("generated", true))
	assert.True(t, m.Match("a/b/generated", true))

	m = New()
	m.AddPattern("docs/**")
	assert.True(t, m.Match("docs/a/b.md", false))
}

func TestMatcher_CommentsAndEscapes(t *testing.T) {
	m := New()
	m.AddPattern("# just a comment")
	m.AddPattern("")
	assert.False(t, m.Match("anything", false))

	m.AddPattern(`\#literal`)
	assert.True(t, m.Match("#literal", false))

	m.AddPattern(`\!important`)
	assert.True(t, m.Match("!important", false))
}

func TestMatcher_NestedBase(t *testing.T) {
	m := New()
	m.AddPatternWithBase("*.tmp", "sub")

	assert.True(t, m.Match("sub/file.tmp", false))
	assert.False(t, m.Match("file.tmp", false), "nested patterns stay scoped to their base")
	assert.False(t, m.Match("other/file.tmp", false))
}

func TestMatcher_DirCacheInvalidatedByNewPattern(t *testing.T) {
	m := New()
	assert.False(t, m.Match("node_modules", true))

	m.AddPattern("node_modules/")
	assert.True(t, m.Match("node_modules", true), "cache must not serve stale verdicts")
}

func TestLoad_NestedGitignoreFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("*.tmp\n"), 0o644))

	m, err := Load(root)
	require.NoError(t, err)

	assert.True(t, m.Match("a.log", false), "root pattern applies everywhere")
	assert.True(t, m.Match("sub/a.log", false))
	assert.True(t, m.Match("sub/a.tmp", false), "nested pattern applies under its dir")
	assert.False(t, m.Match("a.tmp", false), "nested pattern does not leak to root")
}

func TestLoad_MissingGitignoreIsFine(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, m.Match("anything.go", false))
}
