package analyzer

import (
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"parlift/internal/symbols"
)

// Token is one leaf of the parse tree together with its position in the
// original source.
type Token struct {
	Index     int
	Text      string
	StartByte uint
	EndByte   uint
	Line      int // 1-based
	Column    int // 1-based
}

// TokenStream is the file's token sequence in source order. Token ranges are
// the unit of source editing: every construct the compiler may rewrite is
// located by an inclusive [start, stop] index pair into this stream.
type TokenStream struct {
	source []byte
	tokens []Token
}

// NewTokenStream flattens the parse tree's leaves into a token stream.
func NewTokenStream(source []byte, root *sitter.Node) *TokenStream {
	ts := &TokenStream{source: source}
	ts.collect(root)
	return ts
}

func (ts *TokenStream) collect(node *sitter.Node) {
	if node == nil {
		return
	}
	if node.ChildCount() == 0 {
		if node.StartByte() == node.EndByte() {
			return
		}
		pos := node.StartPosition()
		ts.tokens = append(ts.tokens, Token{
			Index:     len(ts.tokens),
			Text:      string(ts.source[node.StartByte():node.EndByte()]),
			StartByte: node.StartByte(),
			EndByte:   node.EndByte(),
			Line:      int(pos.Row) + 1,
			Column:    int(pos.Column) + 1,
		})
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		ts.collect(node.Child(i))
	}
}

func (ts *TokenStream) Len() int {
	return len(ts.tokens)
}

func (ts *TokenStream) Token(i int) Token {
	return ts.tokens[i]
}

func (ts *TokenStream) Source() []byte {
	return ts.source
}

// Text returns the raw source slice covering tokens [start, stop] inclusive,
// whitespace between tokens included.
func (ts *TokenStream) Text(start, stop int) string {
	if start < 0 || stop >= len(ts.tokens) || stop < start {
		return ""
	}
	return string(ts.source[ts.tokens[start].StartByte:ts.tokens[stop].EndByte])
}

// TextFor returns the verbatim source text of a parse-tree node.
func (ts *TokenStream) TextFor(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(ts.source[node.StartByte():node.EndByte()])
}

// AddressFor maps a parse-tree node to the token range it covers.
func (ts *TokenStream) AddressFor(node *sitter.Node) symbols.TokenAddress {
	if node == nil || len(ts.tokens) == 0 {
		return symbols.TokenAddress{Start: -1, Stop: -1}
	}
	start := sort.Search(len(ts.tokens), func(i int) bool {
		return ts.tokens[i].StartByte >= node.StartByte()
	})
	stop := sort.Search(len(ts.tokens), func(i int) bool {
		return ts.tokens[i].EndByte > node.EndByte()
	}) - 1
	if start >= len(ts.tokens) || stop < start {
		return symbols.TokenAddress{Start: -1, Stop: -1}
	}
	return symbols.TokenAddress{
		Start:  start,
		Stop:   stop,
		Line:   ts.tokens[start].Line,
		Column: ts.tokens[start].Column,
	}
}
