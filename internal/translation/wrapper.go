package translation

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/userlib"
)

// The wrapper surface is one method per input bind, operation, output bind
// and method call. Non-final externals of sequential operations are passed
// as single-element arrays so the generated code can write them back.

func parameterDecl(v ir.Variable, asArray bool) string {
	if asArray {
		return fmt.Sprintf("%s[] %s", v.TypeName, v.Name)
	}
	return fmt.Sprintf("%s %s", v.TypeName, v.Name)
}

// InputBindSignature declares the wrapper method constructing bind b. Only
// variable arguments become parameters; literals and expressions are baked
// into the generated body.
func InputBindSignature(b ir.InputBind) string {
	var params []string
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			params = append(params, parameterDecl(v, false))
		}
	}
	return fmt.Sprintf("public void %s(%s)", InputBindName(b), strings.Join(params, ", "))
}

// OperationSignature declares the wrapper method running op. Every external
// variable is a parameter; non-final externals of sequential operations
// arrive as single-element arrays.
func OperationSignature(op ir.Operation) string {
	var params []string
	for _, v := range op.ExternalVariables {
		asArray := op.Execution == ir.ExecutionSequential && !v.IsFinal()
		params = append(params, parameterDecl(v, asArray))
	}
	return fmt.Sprintf("public void %s(%s)", OperationName(op), strings.Join(params, ", "))
}

func OutputBindSignature(b ir.OutputBind) string {
	return fmt.Sprintf("public void %s(%s %s)", OutputBindName(b), b.Destination.TypeName, b.Destination.Name)
}

func MethodCallSignature(mc ir.MethodCall, catalog userlib.Catalog) string {
	ret := catalog.MethodReturnType(mc.Variable.TypeName, mc.MethodName)
	return fmt.Sprintf("public %s %s()", ret, MethodCallName(mc))
}

var interfaceTemplate = template.Must(template.New("interface").Parse(
	`{{.Header}}
package {{.Package}};

{{range .Imports}}import {{.}};
{{end}}
public interface {{.Name}} {
	public boolean isValid();

{{range .Signatures}}	{{.}};

{{end}}}
`))

// WrapperInterface renders the back-end-neutral interface for one class.
func WrapperInterface(packageName, className string, ops ir.OperationsAndBinds, methodCalls []ir.MethodCall, catalog userlib.Catalog, imports []string) (string, error) {
	var signatures []string
	for _, b := range ops.InputBinds {
		signatures = append(signatures, InputBindSignature(b))
	}
	for _, op := range ops.Operations {
		signatures = append(signatures, OperationSignature(op))
	}
	for _, b := range ops.OutputBinds {
		signatures = append(signatures, OutputBindSignature(b))
	}
	for _, mc := range methodCalls {
		signatures = append(signatures, MethodCallSignature(mc, catalog))
	}

	data := struct {
		Header     string
		Package    string
		Imports    []string
		Name       string
		Signatures []string
	}{
		Header:     HeaderComment(),
		Package:    packageName,
		Imports:    sortedImports(imports),
		Name:       WrapperInterfaceName(className),
		Signatures: signatures,
	}
	var b strings.Builder
	if err := interfaceTemplate.Execute(&b, data); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "render wrapper interface")
	}
	return b.String(), nil
}

type wrapperMethod struct {
	Signature string
	Body      string
}

var classTemplate = template.Must(template.New("class").Parse(
	`{{.Header}}
package {{.Package}};

{{range .Imports}}import {{.}};
{{end}}
public class {{.Name}} implements {{.Interface}} {
{{range .Declarations}}	{{.}}
{{end}}
	public boolean isValid() {
		{{.IsValidBody}}
	}

{{range .Methods}}	{{.Signature}} {
{{.Body}}
	}

{{end}}}
`))

// WrapperImplementation renders the implementation class for one back-end,
// with method bodies supplied by the back-end's type translators.
func WrapperImplementation(b *Backend, packageName, className string, ops ir.OperationsAndBinds, methodCalls []ir.MethodCall, catalog userlib.Catalog) (string, error) {
	name := WrapperClassName(className, b.Target)
	var declarations []string
	var methods []wrapperMethod

	for _, bind := range ops.InputBinds {
		t, err := b.TranslatorFor(bind.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.InputBindDeclarations != nil {
			declarations = append(declarations, t.InputBindDeclarations(bind)...)
		}
		methods = append(methods, wrapperMethod{
			Signature: InputBindSignature(bind),
			Body:      indentBody(t.InputBindCreation(name, bind)),
		})
	}
	declarations = append(declarations, b.InitializationLines(className)...)

	for _, op := range ops.Operations {
		t, err := b.TranslatorFor(op.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.OperationDeclarations != nil {
			declarations = append(declarations, t.OperationDeclarations(op)...)
		}
		methods = append(methods, wrapperMethod{
			Signature: OperationSignature(op),
			Body:      indentBody(t.OperationCall(name, op)),
		})
	}
	for _, bind := range ops.OutputBinds {
		t, err := b.TranslatorFor(bind.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.OutputBindDeclarations != nil {
			declarations = append(declarations, t.OutputBindDeclarations(bind)...)
		}
		methods = append(methods, wrapperMethod{
			Signature: OutputBindSignature(bind),
			Body:      indentBody(t.OutputBindCall(name, bind)),
		})
	}
	for _, mc := range methodCalls {
		t, err := b.TranslatorFor(mc.Variable.TypeName)
		if err != nil {
			return "", err
		}
		if t.MethodCallDeclarations != nil {
			declarations = append(declarations, t.MethodCallDeclarations(mc)...)
		}
		body, err := t.MethodCall(mc)
		if err != nil {
			return "", errors.AddContext(err, errors.CtxMethod, mc.MethodName)
		}
		methods = append(methods, wrapperMethod{
			Signature: MethodCallSignature(mc, catalog),
			Body:      indentBody(body),
		})
	}

	data := struct {
		Header       string
		Package      string
		Imports      []string
		Name         string
		Interface    string
		Declarations []string
		IsValidBody  string
		Methods      []wrapperMethod
	}{
		Header:       HeaderComment(),
		Package:      packageName,
		Imports:      sortedImports(b.WrapperImports),
		Name:         name,
		Interface:    WrapperInterfaceName(className),
		Declarations: declarations,
		IsValidBody:  b.IsValidBody,
		Methods:      methods,
	}
	var out strings.Builder
	if err := classTemplate.Execute(&out, data); err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "render wrapper class")
	}
	return out.String(), nil
}

// indentBody shifts a method body two tab stops in.
func indentBody(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "\t\t" + line
		}
	}
	return strings.Join(lines, "\n")
}

// sortedImports keeps generated import blocks deterministic.
func sortedImports(imports []string) []string {
	set := map[string]bool{}
	for _, imp := range imports {
		if imp != "" {
			set[imp] = true
		}
	}
	out := make([]string, 0, len(set))
	for imp := range set {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

// InitializationCode is inserted right after the class body opens: the
// wrapper field plus a constructor instantiating the preferred back-end and
// falling back to the secondary when it reports invalid at runtime.
func InitializationCode(className string, preferred, secondary Target) string {
	object := RuntimeObjectName()
	iface := WrapperInterfaceName(className)
	return fmt.Sprintf("\n\n\tprivate %s %s;\n\n"+
		"\tpublic %s(RenderScript PM_mRS) {\n"+
		"\t\tthis.%s = new %s(%s);\n"+
		"\t\tif (!this.%s.isValid())\n"+
		"\t\t\tthis.%s = new %s(%s);\n"+
		"\t}\n",
		iface, object,
		className,
		object, WrapperClassName(className, preferred), constructorArgs(preferred),
		object,
		object, WrapperClassName(className, secondary), constructorArgs(secondary))
}

func constructorArgs(target Target) string {
	if target == TargetRenderScript {
		return "PM_mRS"
	}
	return ""
}

// InputBindCall replaces the creator statement in the host source. Only
// variable arguments flow through the wrapper; literal and expression
// arguments are baked into the generated bodies.
func InputBindCall(b ir.InputBind) string {
	var args []string
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			args = append(args, v.Name)
		}
	}
	return fmt.Sprintf("%s.%s(%s);", RuntimeObjectName(), InputBindName(b), strings.Join(args, ", "))
}

// OperationCall replaces the operation statement in the host source.
// Sequential operations wrap each non-final external into a single-element
// array before the call and read it back afterwards.
func OperationCall(op ir.Operation) string {
	object := RuntimeObjectName()
	if op.Execution == ir.ExecutionParallel {
		names := make([]string, len(op.ExternalVariables))
		for i, v := range op.ExternalVariables {
			names[i] = v.Name
		}
		return fmt.Sprintf("%s.%s(%s);", object, OperationName(op), strings.Join(names, ", "))
	}

	var declare, restore []string
	var params []string
	for _, v := range op.ExternalVariables {
		if v.IsFinal() {
			params = append(params, v.Name)
			continue
		}
		arrName := Prefix + v.Name
		declare = append(declare, fmt.Sprintf("%s[] %s = new %s[1];", v.TypeName, arrName, v.TypeName))
		declare = append(declare, fmt.Sprintf("%s[0] = %s;", arrName, v.Name))
		restore = append(restore, fmt.Sprintf("%s = %s[0];", v.Name, arrName))
		params = append(params, arrName)
	}

	var b strings.Builder
	for _, line := range declare {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("%s.%s(%s);", object, OperationName(op), strings.Join(params, ", ")))
	for _, line := range restore {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

// OutputBindCall replaces the output-bind statement in the host source. A
// declarative assignment re-declares the destination before delegating.
func OutputBindCall(b ir.OutputBind) string {
	call := fmt.Sprintf("%s.%s(%s);", RuntimeObjectName(), OutputBindName(b), b.Destination.Name)
	if b.Kind == ir.OutputBindDeclarativeAssignment {
		return fmt.Sprintf("%s %s;\n%s", b.Destination.TypeName, b.Destination.Name, call)
	}
	return call
}

// MethodCallReplacement replaces a method-call expression in the host
// source; it is an expression, not a statement.
func MethodCallReplacement(mc ir.MethodCall) string {
	return fmt.Sprintf("%s.%s()", RuntimeObjectName(), MethodCallName(mc))
}
