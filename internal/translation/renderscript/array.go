package renderscript

import (
	"fmt"
	"strings"

	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// arrayTranslator emits RenderScript kernels and wrapper bodies for the
// typed Array collection. Array data lives in a 1-D allocation of the
// element's scalar type.
type arrayTranslator struct {
	ctrans  translation.CTranslator
	catalog userlib.Catalog
}

func newArrayTranslator(ctrans translation.CTranslator, catalog userlib.Catalog) *translation.TypeTranslator {
	at := &arrayTranslator{ctrans: ctrans, catalog: catalog}
	return &translation.TypeTranslator{
		Operations: map[ir.OperationKind]translation.KernelEmitter{
			ir.OperationForeach: at.foreach,
			ir.OperationMap:     at.mapOp,
			ir.OperationReduce:  at.reduce,
			ir.OperationFilter:  at.filter,
		},
		InputBindDeclarations: at.inputBindDeclarations,
		InputBindCreation:     at.inputBindCreation,
		OperationCall:         at.operationCall,
		OutputBindCall:        at.outputBindCall,
		MethodCall:            at.methodCall,
	}
}

func (at *arrayTranslator) elementType(v ir.Variable) string {
	return at.catalog.CType(v.TypeParameter)
}

func (at *arrayTranslator) userFunction(op ir.Operation) string {
	name := translation.FunctionName(op.SequenceIndex)
	element := at.elementType(op.Variable)
	body := translation.UserFunctionBody(op, at.catalog, at.ctrans)
	switch op.Kind {
	case ir.OperationReduce:
		return fmt.Sprintf("static %s %s(%s PM_in1, %s PM_in2%s) %s",
			element, name, element, element, externalParams(op, at.catalog), body)
	case ir.OperationFilter:
		return fmt.Sprintf("static bool %s(%s PM_in, uint32_t x%s) %s",
			name, element, externalParams(op, at.catalog), body)
	default:
		return fmt.Sprintf("static %s %s(%s PM_in, uint32_t x%s) %s",
			element, name, element, externalParams(op, at.catalog), body)
	}
}

func (at *arrayTranslator) foreach(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, at.catalog)
	fns = append(fns, at.userFunction(op))
	element := at.elementType(op.Variable)
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)

	if op.Execution == ir.ExecutionParallel {
		fns = append(fns, fmt.Sprintf(
			"%s __attribute__((kernel)) %s(%s PM_in, uint32_t x) {\n\treturn %s(PM_in, x%s);\n}",
			element, name, element, fn, externalArgs(op)))
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, at.catalog)
	input := inputAllocationName(op)
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\n\n", input)
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
	b.WriteString("\tfor (uint32_t x = 0; x < PM_length; ++x) {\n")
	fmt.Fprintf(&b, "\t\t%s PM_val = rsGetElementAt_%s(%s, x);\n", element, element, input)
	fmt.Fprintf(&b, "\t\tPM_val = %s(PM_val, x%s);\n", fn, externalArgs(op))
	fmt.Fprintf(&b, "\t\trsSetElementAt_%s(%s, PM_val, x);\n", element, input)
	b.WriteString("\t}\n")
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

func (at *arrayTranslator) mapOp(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, at.catalog)
	fns = append(fns, at.userFunction(op))
	element := at.elementType(op.Variable)
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)

	if op.Execution == ir.ExecutionParallel {
		fns = append(fns, fmt.Sprintf(
			"%s __attribute__((kernel)) %s(%s PM_in, uint32_t x) {\n\treturn %s(PM_in, x%s);\n}",
			element, name, element, fn, externalArgs(op)))
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, at.catalog)
	input := inputAllocationName(op)
	output := name + "_output"
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\nrs_allocation %s;\n\n", input, output)
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
	b.WriteString("\tfor (uint32_t x = 0; x < PM_length; ++x) {\n")
	fmt.Fprintf(&b, "\t\trsSetElementAt_%s(%s, %s(rsGetElementAt_%s(%s, x), x%s), x);\n", element, output, fn, element, input, externalArgs(op))
	b.WriteString("\t}\n")
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

// reduce tiles the array into contiguous subranges; the tile kernel folds
// one subrange, the final invokable combines tile results left-to-right.
func (at *arrayTranslator) reduce(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, at.catalog)
	fns = append(fns, at.userFunction(op))
	element := at.elementType(op.Variable)
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)
	input := inputAllocationName(op)
	tiles := name + "_tiles"
	tileSize := name + "_tileSize"

	if op.Execution == ir.ExecutionParallel {
		var tile strings.Builder
		fmt.Fprintf(&tile, "rs_allocation %s;\nrs_allocation %s;\nint %s;\n\n", input, tiles, tileSize)
		fmt.Fprintf(&tile, "%s __attribute__((kernel)) %s_tile(uint32_t x) {\n", element, name)
		fmt.Fprintf(&tile, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
		fmt.Fprintf(&tile, "\tuint32_t PM_start = x * (uint32_t) %s;\n", tileSize)
		fmt.Fprintf(&tile, "\tuint32_t PM_end = min(PM_start + (uint32_t) %s, PM_length);\n", tileSize)
		fmt.Fprintf(&tile, "\t%s PM_acc = rsGetElementAt_%s(%s, PM_start);\n", element, element, input)
		tile.WriteString("\tfor (uint32_t PM_i = PM_start + 1; PM_i < PM_end; ++PM_i) {\n")
		fmt.Fprintf(&tile, "\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, PM_i)%s);\n", fn, element, input, externalArgs(op))
		tile.WriteString("\t}\n\treturn PM_acc;\n}")
		fns = append(fns, tile.String())

		var final strings.Builder
		fmt.Fprintf(&final, "void %s() {\n", name)
		fmt.Fprintf(&final, "\tuint32_t PM_tileCount = rsAllocationGetDimX(%s);\n", tiles)
		fmt.Fprintf(&final, "\t%s PM_acc = rsGetElementAt_%s(%s, 0);\n", element, element, tiles)
		final.WriteString("\tfor (uint32_t PM_i = 1; PM_i < PM_tileCount; ++PM_i) {\n")
		fmt.Fprintf(&final, "\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, PM_i)%s);\n", fn, element, tiles, externalArgs(op))
		final.WriteString("\t}\n")
		fmt.Fprintf(&final, "\trsSetElementAt_%s(%s, PM_acc, 0);\n}", element, tiles)
		fns = append(fns, final.String())
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, at.catalog)
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\nrs_allocation %s;\n\n", input, tiles)
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
	fmt.Fprintf(&b, "\t%s PM_acc = rsGetElementAt_%s(%s, 0);\n", element, element, input)
	b.WriteString("\tfor (uint32_t x = 1; x < PM_length; ++x) {\n")
	fmt.Fprintf(&b, "\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, x)%s);\n", fn, element, input, externalArgs(op))
	b.WriteString("\t}\n")
	fmt.Fprintf(&b, "\trsSetElementAt_%s(%s, PM_acc, 0);\n", element, tiles)
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

// filter runs the predicate per tile recording flags and per-tile counts,
// then compacts kept elements in input order. The output length equals the
// number of truthy predicates; an empty result is valid.
func (at *arrayTranslator) filter(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, at.catalog)
	fns = append(fns, at.userFunction(op))
	element := at.elementType(op.Variable)
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)
	input := inputAllocationName(op)
	flags := name + "_flags"
	output := name + "_output"
	tileSize := name + "_tileSize"

	locals, writeback := sequentialLocals(op, at.catalog)

	if op.Execution == ir.ExecutionParallel {
		var tile strings.Builder
		fmt.Fprintf(&tile, "rs_allocation %s;\nrs_allocation %s;\nrs_allocation %s;\nint %s;\n\n", input, flags, output, tileSize)
		fmt.Fprintf(&tile, "int __attribute__((kernel)) %s_tile(uint32_t x) {\n", name)
		fmt.Fprintf(&tile, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
		fmt.Fprintf(&tile, "\tuint32_t PM_start = x * (uint32_t) %s;\n", tileSize)
		fmt.Fprintf(&tile, "\tuint32_t PM_end = min(PM_start + (uint32_t) %s, PM_length);\n", tileSize)
		tile.WriteString("\tint PM_count = 0;\n")
		tile.WriteString("\tfor (uint32_t PM_i = PM_start; PM_i < PM_end; ++PM_i) {\n")
		fmt.Fprintf(&tile, "\t\tbool PM_keep = %s(rsGetElementAt_%s(%s, PM_i), PM_i%s);\n", fn, element, input, externalArgs(op))
		fmt.Fprintf(&tile, "\t\trsSetElementAt_char(%s, PM_keep ? 1 : 0, PM_i);\n", flags)
		tile.WriteString("\t\tif (PM_keep)\n\t\t\t++PM_count;\n")
		tile.WriteString("\t}\n\treturn PM_count;\n}")
		fns = append(fns, tile.String())
	}

	var final strings.Builder
	if op.Execution != ir.ExecutionParallel {
		fmt.Fprintf(&final, "rs_allocation %s;\nrs_allocation %s;\nrs_allocation %s;\n\n", input, flags, output)
	}
	fmt.Fprintf(&final, "void %s() {\n", name)
	for _, l := range locals {
		final.WriteString(l + "\n")
	}
	fmt.Fprintf(&final, "\tuint32_t PM_length = rsAllocationGetDimX(%s);\n", input)
	final.WriteString("\tuint32_t PM_next = 0;\n")
	final.WriteString("\tfor (uint32_t x = 0; x < PM_length; ++x) {\n")
	if op.Execution == ir.ExecutionParallel {
		fmt.Fprintf(&final, "\t\tif (rsGetElementAt_char(%s, x) != 0) {\n", flags)
	} else {
		fmt.Fprintf(&final, "\t\tif (%s(rsGetElementAt_%s(%s, x), x%s)) {\n", fn, element, input, externalArgs(op))
	}
	fmt.Fprintf(&final, "\t\t\trsSetElementAt_%s(%s, rsGetElementAt_%s(%s, x), PM_next++);\n", element, output, element, input)
	final.WriteString("\t\t}\n\t}\n")
	for _, w := range writeback {
		final.WriteString(w + "\n")
	}
	final.WriteString("}")
	fns = append(fns, final.String())
	return fns, nil
}

func (at *arrayTranslator) inputBindDeclarations(b ir.InputBind) []string {
	return []string{
		fmt.Sprintf("private Allocation %s;", translation.VariableInName(b.Variable)),
	}
}

func (at *arrayTranslator) inputBindCreation(className string, b ir.InputBind) string {
	in := translation.VariableInName(b.Variable)
	element := at.elementType(b.Variable)
	param := firstVariableName(b)
	var body strings.Builder
	fmt.Fprintf(&body, "%s = Allocation.createSized(PM_mRS, %s, %s.length);\n", in, rsElement(element), param)
	fmt.Fprintf(&body, "%s.copyFrom(%s);", in, param)
	return body.String()
}

func (at *arrayTranslator) operationCall(className string, op ir.Operation) string {
	kernel := translation.KernelFieldName()
	in := translation.VariableInName(op.Variable)
	element := at.elementType(op.Variable)
	name := translation.OperationName(op)
	before, after := setExternals(op, at.catalog)

	var body strings.Builder
	for _, line := range before {
		body.WriteString(line + "\n")
	}

	if op.Execution == ir.ExecutionParallel {
		switch op.Kind {
		case ir.OperationForeach:
			fmt.Fprintf(&body, "%s.forEach_%s(%s, %s);", kernel, name, in, in)
		case ir.OperationMap:
			alloc := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX());\n", alloc, rsElement(element), in)
			fmt.Fprintf(&body, "%s.forEach_%s(%s, %s);\n", kernel, name, in, alloc)
			fmt.Fprintf(&body, "%s = %s;", in, alloc)
		case ir.OperationReduce:
			tiles := translation.Prefix + name + "_tiles"
			fmt.Fprintf(&body, "int %sTileSize = Math.max(1, (int) Math.sqrt(%s.getType().getX()));\n", tiles, in)
			fmt.Fprintf(&body, "int %sCount = (%s.getType().getX() + %sTileSize - 1) / %sTileSize;\n", tiles, in, tiles, tiles)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %sCount);\n", tiles, rsElement(element), tiles)
			fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, in)
			fmt.Fprintf(&body, "%s.set_%s_tiles(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.set_%s_tileSize(%sTileSize);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.forEach_%s_tile(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		case ir.OperationFilter:
			flags := translation.Prefix + name + "_flags"
			output := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "int %sTileSize = Math.max(1, (int) Math.sqrt(%s.getType().getX()));\n", output, in)
			fmt.Fprintf(&body, "int %sCount = (%s.getType().getX() + %sTileSize - 1) / %sTileSize;\n", output, in, output, output)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, Element.I8(PM_mRS), %s.getType().getX());\n", flags, in)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX());\n", output, rsElement(element), in)
			fmt.Fprintf(&body, "Allocation %sCounts = Allocation.createSized(PM_mRS, Element.I32(PM_mRS), %sCount);\n", output, output)
			fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, in)
			fmt.Fprintf(&body, "%s.set_%s_flags(%s);\n", kernel, name, flags)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.set_%s_tileSize(%sTileSize);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.forEach_%s_tile(%sCounts);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.invoke_%s();\n", kernel, name)
			fmt.Fprintf(&body, "%s = %s;", in, output)
		}
	} else {
		fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, in)
		switch op.Kind {
		case ir.OperationMap:
			alloc := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX());\n", alloc, rsElement(element), in)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, alloc)
			fmt.Fprintf(&body, "%s.invoke_%s();\n", kernel, name)
			fmt.Fprintf(&body, "%s = %s;", in, alloc)
		case ir.OperationReduce:
			tiles := translation.Prefix + name + "_tiles"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, 1);\n", tiles, rsElement(element))
			fmt.Fprintf(&body, "%s.set_%s_tiles(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		case ir.OperationFilter:
			flags := translation.Prefix + name + "_flags"
			output := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, Element.I8(PM_mRS), %s.getType().getX());\n", flags, in)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX());\n", output, rsElement(element), in)
			fmt.Fprintf(&body, "%s.set_%s_flags(%s);\n", kernel, name, flags)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.invoke_%s();\n", kernel, name)
			fmt.Fprintf(&body, "%s = %s;", in, output)
		default:
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		}
	}

	for _, line := range after {
		body.WriteString("\n" + line)
	}
	return body.String()
}

func (at *arrayTranslator) outputBindCall(className string, b ir.OutputBind) string {
	in := translation.VariableInName(b.Variable)
	return fmt.Sprintf("%s.copyTo(%s);", in, b.Destination.Name)
}

func (at *arrayTranslator) methodCall(mc ir.MethodCall) (string, error) {
	return "", unsupportedMethod(mc, "Array")
}
