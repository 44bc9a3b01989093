package translation

import (
	"regexp"

	"parlift/internal/ir"
	"parlift/internal/userlib"
)

// The substitution rules map user-library accessor syntax onto kernel
// vector-type syntax:
//
//	p.x          -> x
//	p.y          -> y
//	p.rgba.red   -> p.s0 (green s1, blue s2, alpha s3)
//	n.value      -> n
//
// applied per variable, never globally, so unrelated identifiers survive.

// replaceWord replaces a bare identifier or a dotted accessor chain
// anchored on word boundaries, so one variable's accessors never match
// inside another variable's name.
func replaceWord(code, word, with string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllString(code, with)
}

// SubstitutePixel rewrites the accessors of a Pixel variable.
func SubstitutePixel(variable ir.Variable, catalog userlib.Catalog, code string) string {
	out := replaceWord(code, variable.TypeName, catalog.CType(variable.TypeName))
	out = replaceWord(out, variable.Name+".x", "x")
	out = replaceWord(out, variable.Name+".y", "y")
	out = replaceWord(out, variable.Name+".rgba.red", variable.Name+".s0")
	out = replaceWord(out, variable.Name+".rgba.green", variable.Name+".s1")
	out = replaceWord(out, variable.Name+".rgba.blue", variable.Name+".s2")
	out = replaceWord(out, variable.Name+".rgba.alpha", variable.Name+".s3")
	return out
}

// SubstituteNumeric rewrites a numeric box variable (Int16, Int32, Float32)
// to its bare C scalar.
func SubstituteNumeric(variable ir.Variable, catalog userlib.Catalog, code string) string {
	out := replaceWord(code, variable.TypeName, catalog.CType(variable.TypeName))
	out = replaceWord(out, variable.Name+".value", variable.Name)
	return out
}

// SubstituteVariable dispatches on the variable's declared type and applies
// the matching accessor rules.
func SubstituteVariable(variable ir.Variable, catalog userlib.Catalog, code string) string {
	switch {
	case variable.TypeName == "Pixel":
		return SubstitutePixel(variable, catalog, code)
	case variable.TypeName == "Int16" || variable.TypeName == "Int32" || variable.TypeName == "Float32":
		return SubstituteNumeric(variable, catalog, code)
	case IsPrimitive(variable.TypeName):
		return replaceWord(code, variable.TypeName, PrimitiveCType(variable.TypeName))
	case IsBoxed(variable.TypeName):
		return replaceWord(code, variable.TypeName, BoxedCType(variable.TypeName))
	}
	return code
}

// RenameVariable rewrites every remaining standalone reference of a
// variable to its kernel-side name.
func RenameVariable(code, from, to string) string {
	return replaceWord(code, from, to)
}
