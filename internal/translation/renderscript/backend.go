package renderscript

import (
	"fmt"

	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// New builds the RenderScript back-end: a dispatch table of type
// translators plus the class-level scaffolding shared by every generated
// wrapper.
func New(ctrans translation.CTranslator, catalog userlib.Catalog) *translation.Backend {
	b := &translation.Backend{
		Target: translation.TargetRenderScript,
		WrapperImports: []string{
			"android.graphics.Bitmap",
			"android.support.v8.renderscript.*",
		},
		HostImports: []string{
			"android.support.v8.renderscript.RenderScript",
		},
		IsValidBody: "return true;",
		InitializationLines: func(className string) []string {
			wrapper := translation.WrapperClassName(className, translation.TargetRenderScript)
			kernel := translation.KernelFieldName()
			return []string{
				"private RenderScript PM_mRS;",
				fmt.Sprintf("private ScriptC_%s %s;", className, kernel),
				"",
				fmt.Sprintf("public %s(RenderScript PM_mRS) {", wrapper),
				"\tthis.PM_mRS = PM_mRS;",
				fmt.Sprintf("\tthis.%s = new ScriptC_%s(PM_mRS);", kernel, className),
				"}",
			}
		},
		KernelDir: "rs",
		KernelFileName: func(packageName, className string) string {
			return className + ".rs"
		},
		KernelFilePreamble: func(packageName, className string) string {
			return "#pragma version(1)\n#pragma rs java_package_name(" + packageName + ")"
		},
		InternalLibraryFiles: internalLibraryFiles,
	}

	b.Translators = map[string]*translation.TypeTranslator{
		"BitmapImage": newImageTranslator(ctrans, catalog, "BitmapImage", "float3"),
		"HDRImage":    newImageTranslator(ctrans, catalog, "HDRImage", "float4"),
		"Array":       newArrayTranslator(ctrans, catalog),
	}
	return b
}

// externalGlobals declares one script global per final external; non-final
// externals of sequential operations live in single-element allocations.
func externalGlobals(op ir.Operation, catalog userlib.Catalog) []string {
	var decls []string
	for _, v := range op.ExternalVariables {
		ctype := catalog.CType(translation.PrimitiveCType(v.TypeName))
		if op.Execution == ir.ExecutionSequential && !v.IsFinal() {
			decls = append(decls, fmt.Sprintf("rs_allocation %s;", allocationName(op, v)))
			continue
		}
		decls = append(decls, fmt.Sprintf("%s %s;", ctype, v.Name))
	}
	return decls
}

func allocationName(op ir.Operation, v ir.Variable) string {
	return fmt.Sprintf("%s_%s", translation.OperationName(op), v.Name)
}

func inputAllocationName(op ir.Operation) string {
	return translation.OperationName(op) + "_input"
}

// externalParams renders the trailing external-variable parameters of a
// user-function signature.
func externalParams(op ir.Operation, catalog userlib.Catalog) string {
	out := ""
	for _, v := range op.ExternalVariables {
		ctype := catalog.CType(translation.PrimitiveCType(v.TypeName))
		out += fmt.Sprintf(", %s %s", ctype, v.Name)
	}
	return out
}

// externalArgs renders the matching call-site arguments; sequential
// non-final externals read from their allocation before the call.
func externalArgs(op ir.Operation) string {
	out := ""
	for _, v := range op.ExternalVariables {
		out += ", " + v.Name
	}
	return out
}

// elementSuffix is the rsGetElementAt/rsSetElementAt type suffix for a
// kernel C type.
func elementSuffix(ctype string) string {
	return ctype
}

// rsElement maps a kernel C scalar type to its Java Element factory.
func rsElement(ctype string) string {
	switch ctype {
	case "short":
		return "Element.I16(PM_mRS)"
	case "int":
		return "Element.I32(PM_mRS)"
	case "float":
		return "Element.F32(PM_mRS)"
	case "float3":
		return "Element.F32_3(PM_mRS)"
	case "float4":
		return "Element.F32_4(PM_mRS)"
	}
	return "Element.F32(PM_mRS)"
}

// setExternals emits the Java statements feeding externals into the script
// before an operation runs, and the read-back statements afterwards.
func setExternals(op ir.Operation, catalog userlib.Catalog) (before []string, after []string) {
	kernel := translation.KernelFieldName()
	for _, v := range op.ExternalVariables {
		if op.Execution == ir.ExecutionSequential && !v.IsFinal() {
			alloc := translation.Prefix + allocationName(op, v)
			ctype := catalog.CType(translation.PrimitiveCType(v.TypeName))
			before = append(before,
				fmt.Sprintf("Allocation %s = Allocation.createSized(PM_mRS, %s, 1);", alloc, rsElement(ctype)),
				fmt.Sprintf("%s.copyFrom(%s);", alloc, v.Name),
				fmt.Sprintf("%s.set_%s(%s);", kernel, allocationName(op, v), alloc))
			after = append(after, fmt.Sprintf("%s.copyTo(%s);", alloc, v.Name))
			continue
		}
		before = append(before, fmt.Sprintf("%s.set_%s(%s);", kernel, v.Name, v.Name))
	}
	return before, after
}
