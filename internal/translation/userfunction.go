package translation

import (
	"strings"

	"parlift/internal/ir"
	"parlift/internal/userlib"
)

// UserFunctionBody lowers the captured user-function body to the kernel C
// dialect: the external C-expression translator runs first, then accessor
// substitution per element argument and external variable, then the element
// arguments are renamed to the kernel invocation convention (PM_in, or
// PM_in1/PM_in2 for reduce combiners).
//
// Foreach and map bodies additionally return the (possibly mutated) element
// so the driver kernel can write it back.
func UserFunctionBody(op ir.Operation, catalog userlib.Catalog, ctrans CTranslator) string {
	code := op.UserFunction.Code
	if op.Kind == ir.OperationForeach || op.Kind == ir.OperationMap {
		code = appendReturn(code, op.UserFunction.Argument.Name)
	}
	code = ctrans.Translate(code)

	args := append([]ir.Variable{op.UserFunction.Argument}, op.UserFunction.ExtraArguments...)
	for i, arg := range args {
		code = SubstituteVariable(arg, catalog, code)
		code = RenameVariable(code, arg.Name, KernelArgumentName(op, i))
	}
	for _, external := range op.ExternalVariables {
		code = SubstituteVariable(external, catalog, code)
	}
	return code
}

// appendReturn inserts `return <name>;` before the closing brace of a
// braced body.
func appendReturn(code, name string) string {
	idx := strings.LastIndex(code, "}")
	if idx < 0 {
		return code + "\n\treturn " + name + ";"
	}
	return code[:idx] + "\treturn " + name + ";\n}"
}

// ElementCType resolves the kernel C type the user function's element
// argument has for a given collection variable: the image element type, or
// the array's type parameter.
func ElementCType(collection ir.Variable, catalog userlib.Catalog) string {
	if class, ok := catalog.Class(collection.TypeName); ok && class.CType != "" {
		return class.CType
	}
	return catalog.CType(collection.TypeParameter)
}
