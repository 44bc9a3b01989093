package analyzer

import (
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/symbols"
	"parlift/internal/userlib"
)

// ClassAnalysis is the extracted user-library usage of one host class.
type ClassAnalysis struct {
	Name        string
	Class       symbols.Handle
	Ops         ir.OperationsAndBinds
	MethodCalls []ir.MethodCall
}

// HasUserLibraryUsage reports whether the class references the user library
// at all; classes without usage produce no artifacts.
func (c ClassAnalysis) HasUserLibraryUsage() bool {
	return !c.Ops.Empty() || len(c.MethodCalls) > 0
}

// FileAnalysis is the second-pass output for one host file.
type FileAnalysis struct {
	Path         string
	PackageName  string
	ImportRanges []symbols.TokenAddress
	Classes      []ClassAnalysis
}

// SecondPass identifies binds, operations and method calls, producing the
// back-end-neutral IR together with the token ranges each construct occupies.
type SecondPass struct {
	table   *symbols.Table
	stream  *TokenStream
	catalog userlib.Catalog

	seq int
}

func NewSecondPass(table *symbols.Table, stream *TokenStream, catalog userlib.Catalog) *SecondPass {
	return &SecondPass{table: table, stream: stream, catalog: catalog}
}

// Run extracts the IR for every class in the file. Operation sequence
// numbers start at startSeq and continue across classes; the next unused
// number is returned so the orchestrator can thread it through files.
func (p *SecondPass) Run(root *sitter.Node, startSeq int) (*FileAnalysis, int, error) {
	p.seq = startSeq
	analysis := &FileAnalysis{}

	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		switch child.Kind() {
		case "package_declaration":
			analysis.PackageName = p.packageName(child)
		case "import_declaration":
			analysis.ImportRanges = append(analysis.ImportRanges, p.stream.AddressFor(child))
		case "class_declaration":
			class, err := p.analyzeClass(child)
			if err != nil {
				return nil, p.seq, err
			}
			analysis.Classes = append(analysis.Classes, *class)
		}
	}
	return analysis, p.seq, nil
}

func (p *SecondPass) packageName(node *sitter.Node) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "scoped_identifier" || child.Kind() == "identifier" {
			return p.stream.TextFor(child)
		}
	}
	return ""
}

func (p *SecondPass) analyzeClass(node *sitter.Node) (*ClassAnalysis, error) {
	name := p.stream.TextFor(node.ChildByFieldName("name"))
	handles := p.table.LookupInScope(p.table.Root(), name, symbols.KindClass)
	if len(handles) == 0 {
		return nil, errors.Newf(errors.KindInternal, "class %q missing from symbol table", name)
	}
	class := handles[0]

	analysis := &ClassAnalysis{Name: name, Class: class}

	if err := p.collectInputBinds(class, &analysis.Ops); err != nil {
		return nil, err
	}

	walker := &invocationWalker{pass: p, class: class, analysis: analysis, methodSeen: map[string]int{}}
	if err := walker.walk(node.ChildByFieldName("body"), class); err != nil {
		return nil, err
	}
	return analysis, nil
}

// collectInputBinds pairs every creator with its user-library collection
// variable and converts creator arguments into bind parameters. Sequence
// indices are assigned monotonically from 1 in lexical order.
func (p *SecondPass) collectInputBinds(class symbols.Handle, ops *ir.OperationsAndBinds) error {
	creators := p.table.Collect(class, symbols.KindCreator, true)
	sort.SliceStable(creators, func(i, j int) bool {
		return p.table.Get(creators[i]).StatementAddress.Start < p.table.Get(creators[j]).StatementAddress.Start
	})

	seq := 0
	for _, ch := range creators {
		creator := p.table.Get(ch)
		vh, ok := p.table.LookupUpward(creator.Parent, creator.AttributedObjectName, symbols.KindUserLibraryVariable)
		if !ok {
			continue
		}
		variable := p.table.Get(vh)
		if !p.catalog.IsCollection(variable.TypeName) {
			continue
		}

		args := make([]ir.Parameter, 0, len(creator.Arguments))
		for _, ah := range creator.Arguments {
			param, err := p.bindArgument(ah)
			if err != nil {
				return errors.AddContext(err, errors.CtxLine, creator.StatementAddress.Line)
			}
			args = append(args, param)
		}

		seq++
		ops.InputBinds = append(ops.InputBinds, ir.InputBind{
			Variable:         irVariable(variable),
			SequenceIndex:    seq,
			Arguments:        args,
			DeclarationRange: variable.StatementAddress,
			CreationRange:    creator.StatementAddress,
		})
	}
	return nil
}

func (p *SecondPass) bindArgument(h symbols.Handle) (ir.Parameter, error) {
	sym := p.table.Get(h)
	switch sym.Kind {
	case symbols.KindLiteral:
		return ir.Literal{Value: sym.Value, TypeName: sym.LiteralKind.TypeName()}, nil
	case symbols.KindVariable, symbols.KindUserLibraryVariable:
		return irVariable(sym), nil
	case symbols.KindExpression:
		return ir.Expression{Text: sym.Name}, nil
	}
	return nil, errors.Newf(errors.KindUnsupportedArgumentShape,
		"bind argument %q is neither literal, variable nor expression", sym.Name)
}

// invocationWalker scans a class body for method calls on user-library
// variables, tracking the scope handle so name resolution matches the first
// pass exactly.
type invocationWalker struct {
	pass       *SecondPass
	class      symbols.Handle
	analysis   *ClassAnalysis
	methodSeen map[string]int
}

func (w *invocationWalker) walk(node *sitter.Node, scope symbols.Handle) error {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "method_declaration", "constructor_declaration":
		name := w.pass.stream.TextFor(node.ChildByFieldName("name"))
		handles := w.pass.table.LookupInScope(scope, name, symbols.KindMethod)
		idx := w.methodSeen[name]
		w.methodSeen[name]++
		inner := scope
		if idx < len(handles) {
			inner = handles[idx]
		}
		return w.walkChildren(node, inner)
	case "method_invocation":
		if err := w.handleInvocation(node, scope); err != nil {
			return err
		}
		return w.walkChildren(node, scope)
	default:
		return w.walkChildren(node, scope)
	}
}

func (w *invocationWalker) walkChildren(node *sitter.Node, scope symbols.Handle) error {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if err := w.walk(node.Child(i), scope); err != nil {
			return err
		}
	}
	return nil
}

func (w *invocationWalker) handleInvocation(node *sitter.Node, scope symbols.Handle) error {
	object := node.ChildByFieldName("object")
	if object == nil || object.Kind() != "identifier" {
		return nil
	}
	vh, ok := w.pass.table.LookupUpward(scope, w.pass.stream.TextFor(object), symbols.KindUserLibraryVariable)
	if !ok {
		return nil
	}
	variable := w.pass.table.Get(vh)
	methodName := w.pass.stream.TextFor(node.ChildByFieldName("name"))

	kind, valid := w.pass.catalog.ValidMethod(variable.TypeName, methodName)
	if !valid {
		// Methods the catalog does not know stay untouched.
		return nil
	}

	switch kind {
	case userlib.OperationForeach, userlib.OperationMap, userlib.OperationReduce, userlib.OperationFilter:
		return w.extractOperation(node, scope, variable, kind)
	case userlib.OperationOutputBind:
		return w.extractOutputBind(node, scope, variable)
	case userlib.OperationMethodCall:
		w.analysis.MethodCalls = append(w.analysis.MethodCalls, ir.MethodCall{
			Variable:        irVariable(variable),
			MethodName:      methodName,
			ExpressionRange: w.pass.stream.AddressFor(node),
		})
	}
	return nil
}

func (w *invocationWalker) extractOperation(node *sitter.Node, scope symbols.Handle, variable *symbols.Symbol, kind userlib.OperationKind) error {
	lambda := soleLambdaArgument(node)
	if lambda == nil {
		return nil
	}

	params := lambdaParameterNames(lambda, w.pass.stream)
	if len(params) == 0 {
		return nil
	}

	typeParam := ""
	if len(variable.TypeParameters) > 0 {
		typeParam = variable.TypeParameters[0]
	}
	elementType := w.pass.catalog.ElementTypeName(variable.TypeName, typeParam)

	fn := ir.UserFunction{
		Code:     w.userFunctionCode(lambda),
		Argument: ir.Variable{Name: params[0], TypeName: elementType, Modifier: "final"},
	}
	for _, extra := range params[1:] {
		fn.ExtraArguments = append(fn.ExtraArguments, ir.Variable{Name: extra, TypeName: elementType, Modifier: "final"})
	}

	externals, err := w.externalVariables(lambda, scope, params)
	if err != nil {
		return err
	}

	w.pass.seq++
	w.analysis.Ops.Operations = append(w.analysis.Ops.Operations, ir.Operation{
		Variable:          irVariable(variable),
		Kind:              operationKind(kind),
		SequenceIndex:     w.pass.seq,
		UserFunction:      fn,
		ExternalVariables: externals,
		StatementRange:    w.pass.stream.AddressFor(enclosingStatement(node)),
	})
	return nil
}

func (w *invocationWalker) externalVariables(lambda *sitter.Node, scope symbols.Handle, params []string) ([]ir.Variable, error) {
	var externals []ir.Variable
	for _, name := range freeVariables(lambda.ChildByFieldName("body"), w.pass.stream, params) {
		vh, ok := w.pass.table.LookupUpward(scope, name, symbols.KindVariable)
		if !ok {
			continue
		}
		sym := w.pass.table.Get(vh)
		if sym.Kind != symbols.KindVariable {
			continue
		}
		externals = append(externals, irVariable(sym))
	}
	return externals, nil
}

func (w *invocationWalker) extractOutputBind(node *sitter.Node, scope symbols.Handle, variable *symbols.Symbol) error {
	bind := ir.OutputBind{
		Variable:       irVariable(variable),
		StatementRange: w.pass.stream.AddressFor(enclosingStatement(node)),
		Kind:           ir.OutputBindAssignment,
	}

	if decl := enclosingDeclarator(node); decl != nil {
		declaration := decl.Parent()
		bind.Kind = ir.OutputBindDeclarativeAssignment
		bind.Destination = ir.Variable{
			Name:     w.pass.stream.TextFor(decl.ChildByFieldName("name")),
			TypeName: w.pass.stream.TextFor(declaration.ChildByFieldName("type")),
		}
	} else if left := assignmentTarget(node); left != nil {
		name := w.pass.stream.TextFor(left)
		bind.Destination = ir.Variable{Name: name}
		if vh, ok := w.pass.table.LookupUpward(scope, name, symbols.KindVariable); ok {
			bind.Destination = irVariable(w.pass.table.Get(vh))
		}
	} else if arg := soleIdentifierArgument(node); arg != nil {
		name := w.pass.stream.TextFor(arg)
		bind.Destination = ir.Variable{Name: name}
		if vh, ok := w.pass.table.LookupUpward(scope, name, symbols.KindVariable); ok {
			bind.Destination = irVariable(w.pass.table.Get(vh))
		}
	} else {
		return nil
	}

	w.analysis.Ops.OutputBinds = append(w.analysis.Ops.OutputBinds, bind)
	return nil
}

// userFunctionCode captures the lambda body verbatim; expression bodies are
// normalized into a braced block returning the expression.
func (w *invocationWalker) userFunctionCode(lambda *sitter.Node) string {
	body := lambda.ChildByFieldName("body")
	text := w.pass.stream.TextFor(body)
	if body != nil && body.Kind() == "block" {
		return text
	}
	return "{\n\treturn " + text + ";\n}"
}

func irVariable(sym *symbols.Symbol) ir.Variable {
	typeParam := ""
	if len(sym.TypeParameters) > 0 {
		typeParam = sym.TypeParameters[0]
	}
	return ir.Variable{
		Name:          sym.Name,
		TypeName:      sym.TypeName,
		TypeParameter: typeParam,
		Modifier:      sym.Modifier,
		Identifier:    sym.Identifier,
	}
}

func operationKind(kind userlib.OperationKind) ir.OperationKind {
	switch kind {
	case userlib.OperationMap:
		return ir.OperationMap
	case userlib.OperationReduce:
		return ir.OperationReduce
	case userlib.OperationFilter:
		return ir.OperationFilter
	default:
		return ir.OperationForeach
	}
}

func soleLambdaArgument(invocation *sitter.Node) *sitter.Node {
	args := invocation.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var lambda *sitter.Node
	count := 0
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if !child.IsNamed() {
			continue
		}
		count++
		if child.Kind() == "lambda_expression" {
			lambda = child
		}
	}
	if count != 1 {
		return nil
	}
	return lambda
}

func soleIdentifierArgument(invocation *sitter.Node) *sitter.Node {
	args := invocation.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var ident *sitter.Node
	count := 0
	for i := uint(0); i < args.ChildCount(); i++ {
		child := args.Child(i)
		if !child.IsNamed() {
			continue
		}
		count++
		if child.Kind() == "identifier" {
			ident = child
		}
	}
	if count != 1 {
		return nil
	}
	return ident
}

func enclosingDeclarator(node *sitter.Node) *sitter.Node {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Kind() {
		case "variable_declarator":
			return n
		case "expression_statement", "block":
			return nil
		}
	}
	return nil
}

func assignmentTarget(node *sitter.Node) *sitter.Node {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Kind() {
		case "assignment_expression":
			left := n.ChildByFieldName("left")
			if left != nil && left.Kind() == "identifier" {
				return left
			}
			return nil
		case "expression_statement", "block":
			return nil
		}
	}
	return nil
}
