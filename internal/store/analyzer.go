package store

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// CodeTokenizerName is the registered name of the identifier tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the registered name of the keyword stop filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the analyzer used for every indexed field.
	CodeAnalyzerName = "code_analyzer"
)

// Indexed fields suggestions can complete.
const (
	FieldContent = "content"
	FieldPath    = "path"
)

// Fields lists every field the suggester builds term tables for.
var Fields = []string{FieldContent, FieldPath}

// DefaultCodeStopWords are language keywords too common to be useful
// completions.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "package",
}

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// Document is one indexed source file.
type Document struct {
	Content string `json:"content"`
	Path    string `json:"path"`
}

// NewIndexMapping returns the mapping used for project indexes.
func NewIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = CodeAnalyzerName
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	return indexMapping, nil
}

func codeTokenizerConstructor(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

// codeTokenizer emits each identifier whole plus its camelCase and
// snake_case parts, so "parseHTTPRequest" completes from "parse", "http"
// and "request" as well as from "parsehttprequest".
type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var stream analysis.TokenStream
	pos := 1
	for _, loc := range tokenRegex.FindAllIndex(input, -1) {
		for _, term := range IdentifierTerms(string(input[loc[0]:loc[1]])) {
			stream = append(stream, &analysis.Token{
				Term:     []byte(term),
				Start:    loc[0],
				End:      loc[1],
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
		}
	}
	return stream
}

func codeStopFilterConstructor(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, token := range input {
		if _, stop := f.stopWords[strings.ToLower(string(token.Term))]; !stop {
			out = append(out, token)
		}
	}
	return out
}
