package analyzer

import (
	"errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// Source bundles one parsed host file: its bytes, parse tree and the token
// stream derived from the tree's leaves. The tree stays alive between the
// two analyzer passes; Close releases it.
type Source struct {
	Path    string
	Content []byte
	Tree    *sitter.Tree
	Stream  *TokenStream
}

var javaLanguage = sitter.NewLanguage(tree_sitter_java.Language())

// ParseSource parses a Java host file with the tree-sitter grammar.
func ParseSource(path string, content []byte) (*Source, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(javaLanguage); err != nil {
		return nil, err
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}

	return &Source{
		Path:    path,
		Content: content,
		Tree:    tree,
		Stream:  NewTokenStream(content, tree.RootNode()),
	}, nil
}

func (s *Source) Root() *sitter.Node {
	return s.Tree.RootNode()
}

func (s *Source) Close() {
	if s.Tree != nil {
		s.Tree.Close()
		s.Tree = nil
	}
}
