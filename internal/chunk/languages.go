package chunk

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language describes a tree-sitter grammar the code chunker understands.
type Language struct {
	Name string
	Lang *sitter.Language

	// SymbolTypes are the AST node types treated as chunkable top-level
	// symbols (functions, methods, classes, type declarations).
	SymbolTypes map[string]bool

	// ContextTypes are node types prepended to every chunk as file context
	// (package clause, imports) so symbols embed with their surroundings.
	ContextTypes map[string]bool
}

// languagesByExt maps file extensions to registered grammars.
var languagesByExt = map[string]*Language{}

func register(lang *Language, exts ...string) {
	for _, ext := range exts {
		languagesByExt[ext] = lang
	}
}

func init() {
	register(&Language{
		Name: "go",
		Lang: golang.GetLanguage(),
		SymbolTypes: map[string]bool{
			"function_declaration": true,
			"method_declaration":   true,
			"type_declaration":     true,
			"const_declaration":    true,
			"var_declaration":      true,
		},
		ContextTypes: map[string]bool{
			"package_clause":     true,
			"import_declaration": true,
		},
	}, ".go")

	tsSymbols := map[string]bool{
		"function_declaration":   true,
		"class_declaration":      true,
		"interface_declaration":  true,
		"type_alias_declaration": true,
		"lexical_declaration":    true,
		"variable_declaration":   true,
		"export_statement":       true,
	}
	tsContext := map[string]bool{"import_statement": true}

	register(&Language{
		Name:         "typescript",
		Lang:         typescript.GetLanguage(),
		SymbolTypes:  tsSymbols,
		ContextTypes: tsContext,
	}, ".ts")

	register(&Language{
		Name:         "tsx",
		Lang:         tsx.GetLanguage(),
		SymbolTypes:  tsSymbols,
		ContextTypes: tsContext,
	}, ".tsx")

	register(&Language{
		Name: "javascript",
		Lang: javascript.GetLanguage(),
		SymbolTypes: map[string]bool{
			"function_declaration": true,
			"class_declaration":    true,
			"lexical_declaration":  true,
			"variable_declaration": true,
			"export_statement":     true,
		},
		ContextTypes: tsContext,
	}, ".js", ".jsx", ".mjs")

	register(&Language{
		Name: "python",
		Lang: python.GetLanguage(),
		SymbolTypes: map[string]bool{
			"function_definition":  true,
			"decorated_definition": true,
			"class_definition":     true,
		},
		ContextTypes: map[string]bool{
			"import_statement":      true,
			"import_from_statement": true,
		},
	}, ".py")
}

// LanguageFor returns the registered grammar for a file path, or nil when
// the extension has no language-aware chunking.
func LanguageFor(path string) *Language {
	ext := strings.ToLower(filepath.Ext(path))
	return languagesByExt[ext]
}

// SupportedExtensions lists extensions handled by the code chunker.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(languagesByExt))
	for ext := range languagesByExt {
		exts = append(exts, ext)
	}
	return exts
}
