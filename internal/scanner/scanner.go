// Package scanner discovers indexable files under a project root. It
// streams results while walking, honoring include/exclude globs,
// .gitignore rules, size caps, and sensitive-file patterns.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/semdex/internal/config"
	semerrors "github.com/Aman-CERP/semdex/internal/errors"
	"github.com/Aman-CERP/semdex/internal/gitignore"
)

// Options configures a scan.
type Options struct {
	// RootDir is the project root to walk.
	RootDir string

	// IncludePatterns restricts files to those matching at least one
	// pattern (gitignore glob syntax). Empty means everything.
	IncludePatterns []string

	// ExcludePatterns drop matching files and prune matching
	// directories, on top of the built-in exclusions.
	ExcludePatterns []string

	// RespectGitignore loads .gitignore files (root and nested).
	RespectGitignore bool

	// MaxFileSize skips larger files, in bytes. 0 means DefaultMaxFileSize.
	MaxFileSize int64

	// MaxFiles aborts the scan once this many files have been emitted.
	// 0 means unlimited.
	MaxFiles int

	// FollowSymlinks includes symlinked files. Off by default: symlink
	// cycles and out-of-tree targets are not worth the risk.
	FollowSymlinks bool
}

// FromConfig builds scan options from the resolved configuration.
func FromConfig(cfg *config.Config, root string) Options {
	return Options{
		RootDir:          root,
		IncludePatterns:  cfg.Paths.Include,
		ExcludePatterns:  cfg.Paths.Exclude,
		RespectGitignore: true,
		MaxFileSize:      int64(cfg.Performance.MaxFileSizeKB) * 1024,
		MaxFiles:         cfg.Performance.MaxFiles,
	}
}

// Scanner walks a project tree and emits indexable files. Construct
// with New; a Scanner is safe for concurrent use once built.
type Scanner struct {
	root    string
	opts    Options
	maxSize int64
	include *gitignore.Matcher // nil means include everything
	exclude *gitignore.Matcher // built-ins plus configured patterns
	git     *gitignore.Matcher // nil when gitignore is not consulted
}

// New resolves the root and compiles the pattern matchers.
func New(opts Options) (*Scanner, error) {
	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "resolve scan root: "+opts.RootDir, err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "scan root is not a directory: "+root, err)
	}

	s := &Scanner{root: root, opts: opts, maxSize: opts.MaxFileSize}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxFileSize
	}

	s.exclude = gitignore.New()
	for _, p := range defaultExcludeDirs {
		s.exclude.AddPattern(p)
	}
	for _, p := range defaultExcludeFiles {
		s.exclude.AddPattern(p)
	}
	for _, p := range sensitivePatterns {
		s.exclude.AddPattern(p)
	}
	for _, p := range opts.ExcludePatterns {
		s.exclude.AddPattern(normalizePattern(p))
	}

	if len(opts.IncludePatterns) > 0 {
		s.include = gitignore.New()
		for _, p := range opts.IncludePatterns {
			s.include.AddPattern(normalizePattern(p))
		}
	}

	if opts.RespectGitignore {
		m, err := gitignore.Load(root)
		if err != nil {
			return nil, err
		}
		s.git = m
	}

	return s, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the tree and streams results. The channel closes when the
// walk finishes, errors out, or ctx is cancelled. A terminal error is
// delivered as the last ScanResult.
func (s *Scanner) Scan(ctx context.Context) <-chan ScanResult {
	results := make(chan ScanResult, 64)

	go func() {
		defer close(results)

		emitted := 0
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if walkErr != nil {
				return nil // unreadable entry: skip, keep walking
			}

			rel, err := filepath.Rel(s.root, path)
			if err != nil || rel == "." {
				return nil
			}

			if d.IsDir() {
				if s.excluded(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 && !s.opts.FollowSymlinks {
				return nil
			}
			if !s.Includes(rel, false) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > s.maxSize {
				return nil
			}
			if isBinaryFile(path) {
				return nil
			}

			if s.opts.MaxFiles > 0 && emitted >= s.opts.MaxFiles {
				return errFileLimit
			}
			emitted++

			language := DetectLanguage(rel)
			fi := &FileInfo{
				Path:        filepath.ToSlash(rel),
				AbsPath:     path,
				Size:        info.Size(),
				ModTime:     info.ModTime(),
				ContentType: DetectContentType(language),
				Language:    language,
				IsGenerated: isGeneratedFile(path),
			}

			select {
			case results <- ScanResult{File: fi}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		switch {
		case err == nil || ctx.Err() != nil:
		case err == errFileLimit:
			limitErr := semerrors.New(semerrors.ErrCodeInvalidInput,
				fmt.Sprintf("file limit reached (%d files); narrow include patterns or raise performance.max_files", s.opts.MaxFiles),
				nil).WithSuggestion("add exclude patterns for generated or vendored directories")
			select {
			case results <- ScanResult{Error: limitErr}:
			case <-ctx.Done():
			}
		default:
			select {
			case results <- ScanResult{Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return results
}

// Collect drains a full scan into a slice. On error the files found so
// far are returned alongside it.
func (s *Scanner) Collect(ctx context.Context) ([]*FileInfo, error) {
	var files []*FileInfo
	for res := range s.Scan(ctx) {
		if res.Error != nil {
			return files, res.Error
		}
		files = append(files, res.File)
	}
	return files, ctx.Err()
}

// Includes reports whether a path (relative to the root) passes the
// exclusion and include filters. The watcher uses this to drop events
// for files a scan would never have emitted. Include patterns only
// apply to files: a directory cannot be ruled out by them.
func (s *Scanner) Includes(relPath string, isDir bool) bool {
	if s.excluded(relPath, isDir) {
		return false
	}
	if !isDir && s.include != nil && !s.include.Match(relPath, false) {
		return false
	}
	return true
}

func (s *Scanner) excluded(relPath string, isDir bool) bool {
	if s.exclude.Match(relPath, isDir) {
		return true
	}
	return s.git != nil && s.git.Match(relPath, isDir)
}

// errFileLimit is a walk sentinel; it is translated to an EngineError
// before reaching the result stream.
var errFileLimit = fmt.Errorf("file limit reached")

// normalizePattern rewrites config-style "**/dir/**" and "dir/**"
// globs to directory patterns so the walk can prune the whole subtree
// instead of testing every file in it.
func normalizePattern(p string) string {
	trimmed := strings.TrimPrefix(p, "**/")
	if strings.HasSuffix(trimmed, "/**") {
		return strings.TrimSuffix(trimmed, "/**") + "/"
	}
	return p
}

// isBinaryFile sniffs the first 512 bytes for a null byte.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// isGeneratedFile looks for code-generation markers in the first 1KB.
func isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}

	head := string(buf[:n])
	for _, marker := range generatedMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

var generatedMarkers = []string{
	"// Code generated",
	"// DO NOT EDIT",
	"/* DO NOT EDIT",
	"# Generated by",
	"// Generated by",
	"/* Generated by",
	"<!-- AUTO-GENERATED -->",
}

// Directories never worth indexing.
var defaultExcludeDirs = []string{
	".git/",
	".semdex/",
	"node_modules/",
	"vendor/",
	"__pycache__/",
	".venv/",
	"dist/",
	"build/",
	"target/",
	".aws/",
	".ssh/",
}

// Generated or lockfile noise.
var defaultExcludeFiles = []string{
	"*.min.js",
	"*.min.css",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
}

// Files that may hold credentials. Never indexed, regardless of
// include patterns.
var sensitivePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
