package chunk

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language is the closed set of languages the chunker understands.
// Every Language indexes into langSpecs; adding a value here without a
// spec entry fails the bounds check in tests, not silently at runtime.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageGo
	LanguageJavaScript
	LanguageJSX
	LanguageTypeScript
	LanguageTSX
	LanguagePython
	LanguagePrisma
	LanguageJSON
	LanguageYAML
	languageCount // sentinel, keep last
)

func (l Language) String() string {
	switch l {
	case LanguageGo:
		return "go"
	case LanguageJavaScript:
		return "javascript"
	case LanguageJSX:
		return "jsx"
	case LanguageTypeScript:
		return "typescript"
	case LanguageTSX:
		return "tsx"
	case LanguagePython:
		return "python"
	case LanguagePrisma:
		return "prisma"
	case LanguageJSON:
		return "json"
	case LanguageYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// LanguageFromPath maps a file path to its Language by extension.
func LanguageFromPath(p string) Language {
	switch strings.ToLower(path.Ext(p)) {
	case ".go":
		return LanguageGo
	case ".js", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".jsx":
		return LanguageJSX
	case ".ts":
		return LanguageTypeScript
	case ".tsx":
		return LanguageTSX
	case ".py":
		return LanguagePython
	case ".prisma":
		return LanguagePrisma
	case ".json":
		return LanguageJSON
	case ".yaml", ".yml":
		return LanguageYAML
	default:
		return LanguageUnknown
	}
}

// langSpec describes how to find semantic units in one language's AST.
type langSpec struct {
	// nodeTypes maps tree-sitter node types to the chunk type they produce.
	nodeTypes map[string]ChunkType

	// importTypes are the node types carrying import/dependency statements.
	importTypes []string
}

// langSpecs is the immutable language table, indexed by Language. Built
// once at init, never mutated afterwards.
var langSpecs = [languageCount]langSpec{
	LanguageGo: {
		nodeTypes: map[string]ChunkType{
			"function_declaration": ChunkTypeFunction,
			"method_declaration":   ChunkTypeFunction,
			"type_declaration":     ChunkTypeType,
			"const_declaration":    ChunkTypeOther,
			"var_declaration":      ChunkTypeOther,
		},
		importTypes: []string{"import_declaration"},
	},
	LanguageJavaScript: {
		nodeTypes: map[string]ChunkType{
			"function_declaration": ChunkTypeFunction,
			"generator_function_declaration": ChunkTypeFunction,
			"class_declaration":    ChunkTypeClass,
			"lexical_declaration":  ChunkTypeOther,
			"variable_declaration": ChunkTypeOther,
		},
		importTypes: []string{"import_statement"},
	},
	LanguageTypeScript: {
		nodeTypes: map[string]ChunkType{
			"function_declaration":   ChunkTypeFunction,
			"class_declaration":      ChunkTypeClass,
			"interface_declaration":  ChunkTypeInterface,
			"type_alias_declaration": ChunkTypeType,
			"enum_declaration":       ChunkTypeType,
			"lexical_declaration":    ChunkTypeOther,
			"variable_declaration":   ChunkTypeOther,
		},
		importTypes: []string{"import_statement"},
	},
	LanguagePython: {
		nodeTypes: map[string]ChunkType{
			"function_definition":           ChunkTypeFunction,
			"decorated_definition":          ChunkTypeFunction,
			"class_definition":              ChunkTypeClass,
		},
		importTypes: []string{"import_statement", "import_from_statement"},
	},
}

func init() {
	// JSX shares the JavaScript grammar and spec; TSX shares TypeScript's.
	langSpecs[LanguageJSX] = langSpecs[LanguageJavaScript]
	langSpecs[LanguageTSX] = langSpecs[LanguageTypeScript]
}

// spec returns the langSpec for l. Languages without AST support
// (prisma, json, yaml, unknown) have a zero spec.
func (l Language) spec() langSpec {
	if l < 0 || l >= languageCount {
		return langSpec{}
	}
	return langSpecs[l]
}

// grammar returns the tree-sitter grammar for l, or nil when the
// language has no AST support.
func (l Language) grammar() *sitter.Language {
	switch l {
	case LanguageGo:
		return golang.GetLanguage()
	case LanguageJavaScript, LanguageJSX:
		return javascript.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguageTSX:
		return tsx.GetLanguage()
	case LanguagePython:
		return python.GetLanguage()
	default:
		return nil
	}
}
