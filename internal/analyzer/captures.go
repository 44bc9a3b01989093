package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// captureWalker performs the lexical free-variable walk over a user-function
// body. Identifiers bound inside the body (lambda parameters, local
// declarations) are excluded; everything else is reported in order of first
// reference.
type captureWalker struct {
	stream *TokenStream
	bound  map[string]bool
	seen   map[string]bool
	order  []string
}

// freeVariables returns the names referenced by body but not bound within
// it, in order of first appearance. The bound set seeds the walk with the
// user function's own parameters.
func freeVariables(body *sitter.Node, stream *TokenStream, bound []string) []string {
	w := &captureWalker{
		stream: stream,
		bound:  make(map[string]bool, len(bound)),
		seen:   make(map[string]bool),
	}
	for _, name := range bound {
		w.bound[name] = true
	}
	w.walk(body)
	return w.order
}

func (w *captureWalker) walk(node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "identifier":
		w.reference(w.stream.TextFor(node))
	case "field_access":
		// Only the leftmost object of p.rgba.red is a variable reference.
		w.walk(node.ChildByFieldName("object"))
	case "method_invocation":
		w.walk(node.ChildByFieldName("object"))
		w.walk(node.ChildByFieldName("arguments"))
	case "local_variable_declaration":
		for i := uint(0); i < node.ChildCount(); i++ {
			decl := node.Child(i)
			if decl.Kind() != "variable_declarator" {
				continue
			}
			w.bind(w.stream.TextFor(decl.ChildByFieldName("name")))
			w.walk(decl.ChildByFieldName("value"))
		}
	case "lambda_expression":
		for _, name := range lambdaParameterNames(node, w.stream) {
			w.bind(name)
		}
		w.walk(node.ChildByFieldName("body"))
	default:
		for i := uint(0); i < node.ChildCount(); i++ {
			w.walk(node.Child(i))
		}
	}
}

func (w *captureWalker) bind(name string) {
	if name != "" {
		w.bound[name] = true
	}
}

func (w *captureWalker) reference(name string) {
	if name == "" || w.bound[name] || w.seen[name] {
		return
	}
	w.seen[name] = true
	w.order = append(w.order, name)
}

// lambdaParameterNames extracts parameter names from any of the lambda
// parameter shapes: `x -> ...`, `(a, b) -> ...`, `(Type x) -> ...`.
func lambdaParameterNames(lambda *sitter.Node, stream *TokenStream) []string {
	params := lambda.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	switch params.Kind() {
	case "identifier":
		return []string{stream.TextFor(params)}
	case "inferred_parameters":
		var names []string
		for i := uint(0); i < params.ChildCount(); i++ {
			child := params.Child(i)
			if child.Kind() == "identifier" {
				names = append(names, stream.TextFor(child))
			}
		}
		return names
	case "formal_parameters":
		var names []string
		for i := uint(0); i < params.ChildCount(); i++ {
			child := params.Child(i)
			if child.Kind() == "formal_parameter" {
				names = append(names, stream.TextFor(child.ChildByFieldName("name")))
			}
		}
		return names
	}
	return nil
}
