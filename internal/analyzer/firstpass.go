package analyzer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"parlift/internal/symbols"
	"parlift/internal/userlib"
)

// FirstPass populates the symbol table from the parse tree. The pass is
// syntactic: it records classes, methods, variables and creators with their
// token ranges; the only catalog interaction is tagging variables whose
// declared type names a user-library class.
type FirstPass struct {
	table   *symbols.Table
	stream  *TokenStream
	catalog userlib.Catalog
}

func NewFirstPass(table *symbols.Table, stream *TokenStream, catalog userlib.Catalog) *FirstPass {
	return &FirstPass{table: table, stream: stream, catalog: catalog}
}

// Run walks the compilation unit and seals the table when done.
func (p *FirstPass) Run(root *sitter.Node) error {
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child.Kind() == "class_declaration" {
			if err := p.declareClass(child); err != nil {
				return err
			}
		}
	}
	p.table.Seal()
	return nil
}

func (p *FirstPass) declareClass(node *sitter.Node) error {
	nameNode := node.ChildByFieldName("name")
	bodyNode := node.ChildByFieldName("body")
	class, err := p.table.Declare(p.table.Root(), symbols.Symbol{
		Kind:        symbols.KindClass,
		Name:        p.stream.TextFor(nameNode),
		Address:     p.stream.AddressFor(node),
		BodyAddress: p.stream.AddressFor(bodyNode),
	})
	if err != nil {
		return err
	}
	return p.walkScope(bodyNode, class)
}

// walkScope descends the parse tree declaring everything it finds into the
// current scope. Methods open a new scope; blocks do not, homonyms in nested
// blocks coexist through their identifier.
func (p *FirstPass) walkScope(node *sitter.Node, scope symbols.Handle) error {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "method_declaration", "constructor_declaration":
		return p.declareMethod(node, scope)
	case "field_declaration", "local_variable_declaration":
		if err := p.declareVariables(node, scope); err != nil {
			return err
		}
		// Initializers may contain creators.
		return p.walkChildren(node, scope)
	case "object_creation_expression":
		if err := p.declareCreator(node, scope); err != nil {
			return err
		}
		return p.walkChildren(node, scope)
	default:
		return p.walkChildren(node, scope)
	}
}

func (p *FirstPass) walkChildren(node *sitter.Node, scope symbols.Handle) error {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := p.walkScope(node.Child(i), scope); err != nil {
			return err
		}
	}
	return nil
}

func (p *FirstPass) declareMethod(node *sitter.Node, scope symbols.Handle) error {
	nameNode := node.ChildByFieldName("name")
	name := p.stream.TextFor(nameNode)
	paramsNode := node.ChildByFieldName("parameters")
	signature := name + p.stream.TextFor(paramsNode)

	method, err := p.table.Declare(scope, symbols.Symbol{
		Kind:       symbols.KindMethod,
		Name:       name,
		Identifier: len(p.table.LookupInScope(scope, name, symbols.KindMethod)),
		Signature:  signature,
		Address:    p.stream.AddressFor(node),
	})
	if err != nil {
		return err
	}

	if paramsNode != nil {
		for i := uint(0); i < paramsNode.ChildCount(); i++ {
			param := paramsNode.Child(i)
			if param.Kind() != "formal_parameter" {
				continue
			}
			if err := p.declareFormalParameter(param, method); err != nil {
				return err
			}
		}
	}
	return p.walkChildren(node.ChildByFieldName("body"), method)
}

func (p *FirstPass) declareFormalParameter(node *sitter.Node, scope symbols.Handle) error {
	typeName, typeParams := p.splitType(node.ChildByFieldName("type"))
	name := p.stream.TextFor(node.ChildByFieldName("name"))
	_, err := p.table.Declare(scope, symbols.Symbol{
		Kind:             p.variableKind(typeName),
		Name:             name,
		Identifier:       len(p.table.LookupInScope(scope, name, symbols.KindVariable)),
		TypeName:         typeName,
		TypeParameters:   typeParams,
		Modifier:         p.modifier(node),
		Address:          p.stream.AddressFor(node),
		StatementAddress: p.stream.AddressFor(node),
	})
	return err
}

func (p *FirstPass) declareVariables(node *sitter.Node, scope symbols.Handle) error {
	typeName, typeParams := p.splitType(node.ChildByFieldName("type"))
	modifier := p.modifier(node)
	statement := p.stream.AddressFor(node)

	for i := uint(0); i < node.ChildCount(); i++ {
		decl := node.Child(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := p.stream.TextFor(decl.ChildByFieldName("name"))
		_, err := p.table.Declare(scope, symbols.Symbol{
			Kind:             p.variableKind(typeName),
			Name:             name,
			Identifier:       len(p.table.LookupInScope(scope, name, symbols.KindVariable)),
			TypeName:         typeName,
			TypeParameters:   typeParams,
			Modifier:         modifier,
			Address:          p.stream.AddressFor(decl),
			StatementAddress: statement,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *FirstPass) declareCreator(node *sitter.Node, scope symbols.Handle) error {
	attributed := attributedObjectName(node, p.stream)
	if attributed == "" {
		return nil
	}

	name := "new " + p.stream.TextFor(node.ChildByFieldName("type"))
	creator, err := p.table.Declare(scope, symbols.Symbol{
		Kind:                 symbols.KindCreator,
		Name:                 name,
		Identifier:           len(p.table.LookupInScope(scope, name, symbols.KindCreator)),
		AttributedObjectName: attributed,
		Address:              p.stream.AddressFor(node),
		StatementAddress:     p.stream.AddressFor(enclosingStatement(node)),
	})
	if err != nil {
		return err
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var handles []symbols.Handle
	for i := uint(0); i < args.ChildCount(); i++ {
		arg := args.Child(i)
		if !arg.IsNamed() {
			continue
		}
		h, err := p.argumentSymbol(arg, scope, creator)
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}
	p.table.Get(creator).Arguments = handles
	return nil
}

// argumentSymbol converts one creator argument into a symbol handle:
// literals and opaque expressions become fresh symbols under the creator,
// identifiers resolve to the variable they reference.
func (p *FirstPass) argumentSymbol(arg *sitter.Node, scope, creator symbols.Handle) (symbols.Handle, error) {
	text := p.stream.TextFor(arg)
	if kind, ok := literalKind(arg.Kind()); ok {
		return p.table.Declare(creator, symbols.Symbol{
			Kind:        symbols.KindLiteral,
			Name:        text,
			Identifier:  len(p.table.LookupInScope(creator, text, symbols.KindLiteral)),
			LiteralKind: kind,
			Value:       text,
			Address:     p.stream.AddressFor(arg),
		})
	}
	if arg.Kind() == "identifier" {
		if h, ok := p.table.LookupUpward(scope, text, symbols.KindVariable); ok {
			return h, nil
		}
	}
	return p.table.Declare(creator, symbols.Symbol{
		Kind:       symbols.KindExpression,
		Name:       text,
		Identifier: len(p.table.LookupInScope(creator, text, symbols.KindExpression)),
		Address:    p.stream.AddressFor(arg),
	})
}

func (p *FirstPass) variableKind(typeName string) symbols.Kind {
	if p.catalog.Recognizes(typeName) {
		return symbols.KindUserLibraryVariable
	}
	return symbols.KindVariable
}

// splitType decomposes a type node into its raw name and ordered type
// parameters, e.g. Array<Int32> into ("Array", ["Int32"]).
func (p *FirstPass) splitType(node *sitter.Node) (string, []string) {
	if node == nil {
		return "", nil
	}
	if node.Kind() != "generic_type" {
		return p.stream.TextFor(node), nil
	}
	name := ""
	var params []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "type_identifier", "scoped_type_identifier":
			name = p.stream.TextFor(child)
		case "type_arguments":
			for j := uint(0); j < child.ChildCount(); j++ {
				argNode := child.Child(j)
				if argNode.IsNamed() {
					params = append(params, p.stream.TextFor(argNode))
				}
			}
		}
	}
	return name, params
}

func (p *FirstPass) modifier(node *sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "modifiers" {
			continue
		}
		if strings.Contains(p.stream.TextFor(child), "final") {
			return "final"
		}
	}
	return ""
}

func literalKind(nodeKind string) (symbols.LiteralKind, bool) {
	switch nodeKind {
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		return symbols.LiteralInt, true
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		return symbols.LiteralFloat, true
	case "true", "false":
		return symbols.LiteralBoolean, true
	case "character_literal":
		return symbols.LiteralChar, true
	case "string_literal":
		return symbols.LiteralString, true
	}
	return 0, false
}

// attributedObjectName finds the variable a creator expression is assigned
// to, either through a declarator or a plain assignment.
func attributedObjectName(node *sitter.Node, stream *TokenStream) string {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "variable_declarator":
			return stream.TextFor(parent.ChildByFieldName("name"))
		case "assignment_expression":
			left := parent.ChildByFieldName("left")
			if left != nil && left.Kind() == "identifier" {
				return stream.TextFor(left)
			}
			return ""
		case "statement", "expression_statement", "block", "class_body", "program":
			return ""
		}
	}
	return ""
}

// enclosingStatement climbs to the statement a node belongs to.
func enclosingStatement(node *sitter.Node) *sitter.Node {
	for n := node; n != nil; n = n.Parent() {
		switch n.Kind() {
		case "expression_statement", "local_variable_declaration", "field_declaration", "return_statement":
			return n
		}
	}
	return node
}
