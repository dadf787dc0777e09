package scanner

import (
	"path/filepath"
	"time"
)

// ContentType classifies what kind of content a file holds.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
	ContentTypeConfig   ContentType = "config"
)

// FileInfo describes a discovered file.
type FileInfo struct {
	Path        string      // relative to the scan root
	AbsPath     string      // absolute path
	Size        int64       // bytes
	ModTime     time.Time   // last modification time
	ContentType ContentType // code, markdown, text, config
	Language    string      // go, python, typescript, ...
	IsGenerated bool        // carries a code-generation marker
}

// ScanResult is one item on the scan stream. Exactly one of File or
// Error is set; a terminal error ends the stream.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize caps file size when Options.MaxFileSize is zero.
const DefaultMaxFileSize = 10 * 1024 * 1024

// languageMap maps extensions (and a few exact filenames) to languages.
var languageMap = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".py":  "python",
	".pyi": "python",

	".html": "html",
	".css":  "css",
	".scss": "scss",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".ini":  "ini",

	".md":       "markdown",
	".mdx":      "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".scala": "scala",
	".ex":    "elixir",
	".exs":   "elixir",
	".hs":    "haskell",
	".lua":   "lua",
	".sql":   "sql",

	".proto":   "protobuf",
	".graphql": "graphql",
	".vue":     "vue",
	".svelte":  "svelte",

	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"makefile":    "makefile",
	"GNUmakefile": "makefile",
}

var contentTypeMap = map[string]ContentType{
	"go":         ContentTypeCode,
	"javascript": ContentTypeCode,
	"typescript": ContentTypeCode,
	"python":     ContentTypeCode,
	"ruby":       ContentTypeCode,
	"rust":       ContentTypeCode,
	"java":       ContentTypeCode,
	"kotlin":     ContentTypeCode,
	"c":          ContentTypeCode,
	"cpp":        ContentTypeCode,
	"csharp":     ContentTypeCode,
	"swift":      ContentTypeCode,
	"php":        ContentTypeCode,
	"scala":      ContentTypeCode,
	"elixir":     ContentTypeCode,
	"haskell":    ContentTypeCode,
	"lua":        ContentTypeCode,
	"sql":        ContentTypeCode,
	"shell":      ContentTypeCode,
	"protobuf":   ContentTypeCode,
	"graphql":    ContentTypeCode,
	"vue":        ContentTypeCode,
	"svelte":     ContentTypeCode,
	"html":       ContentTypeCode,
	"css":        ContentTypeCode,
	"scss":       ContentTypeCode,

	"markdown": ContentTypeMarkdown,
	"rst":      ContentTypeMarkdown,

	"text": ContentTypeText,

	"json":       ContentTypeConfig,
	"yaml":       ContentTypeConfig,
	"toml":       ContentTypeConfig,
	"xml":        ContentTypeConfig,
	"ini":        ContentTypeConfig,
	"dockerfile": ContentTypeConfig,
	"makefile":   ContentTypeConfig,
}

// DetectLanguage maps a file path to a language name, or "" if unknown.
// Exact filenames (Dockerfile, Makefile) win over extensions.
func DetectLanguage(path string) string {
	if lang, ok := languageMap[filepath.Base(path)]; ok {
		return lang
	}
	if lang, ok := languageMap[filepath.Ext(path)]; ok {
		return lang
	}
	return ""
}

// DetectContentType maps a language to its content type. Unknown
// languages are treated as plain text.
func DetectContentType(language string) ContentType {
	if ct, ok := contentTypeMap[language]; ok {
		return ct
	}
	return ContentTypeText
}
