package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeCode_SplitsOnDelimiters(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{"whitespace", "hello world", []string{"hello", "world"}},
		{"parentheses", "call(arg)", []string{"call", "arg"}},
		{"dots", "object.method", []string{"object", "method"}},
		{"mixed", "foo.bar(baz, qux)", []string{"foo", "bar", "baz", "qux"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeCode(tt.input))
		})
	}
}

func TestIdentifierTerms_WholeThenParts(t *testing.T) {
	tests := []struct {
		input  string
		expect []string
	}{
		{"parseHTTPRequest", []string{"parsehttprequest", "parse", "http", "request"}},
		{"get_user_by_id", []string{"get_user_by_id", "get", "user", "by", "id"}},
		{"main", []string{"main"}},
		{"x", nil},
		{"aB", []string{"ab"}},
		{"_private", []string{"private"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, IdentifierTerms(tt.input))
		})
	}
}

func TestSplitCamelCase(t *testing.T) {
	assert.Equal(t, []string{"get", "User", "By", "Id"}, SplitCamelCase("getUserById"))
	assert.Equal(t, []string{"HTTP", "Handler"}, SplitCamelCase("HTTPHandler"))
	assert.Equal(t, []string{}, SplitCamelCase(""))
}

func TestCodeTokenizer_OffsetsPointAtIdentifier(t *testing.T) {
	tok := &codeTokenizer{}

	stream := tok.Tokenize([]byte("x := newReader()"))

	require.Len(t, stream, 3)
	assert.Equal(t, "newreader", string(stream[0].Term))
	assert.Equal(t, 5, stream[0].Start)
	assert.Equal(t, 14, stream[0].End)
	assert.Equal(t, "new", string(stream[1].Term))
	assert.Equal(t, "reader", string(stream[2].Term))
	assert.Equal(t, 3, stream[2].Position)
}

func TestCodeStopFilter_DropsKeywords(t *testing.T) {
	f := &codeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}
	tok := &codeTokenizer{}

	out := f.Filter(tok.Tokenize([]byte("return value")))

	require.Len(t, out, 1)
	assert.Equal(t, "value", string(out[0].Term))
}
