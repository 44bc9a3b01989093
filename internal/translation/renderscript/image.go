package renderscript

import (
	"fmt"
	"strings"

	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// imageTranslator emits RenderScript kernels and wrapper bodies for the two
// image collection classes. Image data lives in a 2-D allocation of the
// element type; bitmap input discards alpha, output fixes it at 255.
type imageTranslator struct {
	ctrans    translation.CTranslator
	catalog   userlib.Catalog
	className string
	element   string // float3 for BitmapImage, float4 for HDRImage
}

func newImageTranslator(ctrans translation.CTranslator, catalog userlib.Catalog, className, element string) *translation.TypeTranslator {
	it := &imageTranslator{ctrans: ctrans, catalog: catalog, className: className, element: element}
	return &translation.TypeTranslator{
		InputBindKernel:  it.inputBindKernel,
		OutputBindKernel: it.outputBindKernel,
		Operations: map[ir.OperationKind]translation.KernelEmitter{
			ir.OperationForeach: it.foreach,
			ir.OperationMap:     it.mapOp,
			ir.OperationReduce:  it.reduce,
			ir.OperationFilter:  it.filter,
		},
		InputBindDeclarations: it.inputBindDeclarations,
		InputBindCreation:     it.inputBindCreation,
		OperationCall:         it.operationCall,
		OutputBindCall:        it.outputBindCall,
		MethodCall:            it.methodCall,
	}
}

func (it *imageTranslator) inputBindKernel(packageName, className string, b ir.InputBind) string {
	var body strings.Builder
	fmt.Fprintf(&body, "%s __attribute__((kernel)) toFloat%s(uchar4 PM_in, uint32_t x, uint32_t y) {\n", it.element, it.className)
	fmt.Fprintf(&body, "\t%s PM_out;\n", it.element)
	body.WriteString("\tPM_out.s0 = (float) PM_in.r;\n")
	body.WriteString("\tPM_out.s1 = (float) PM_in.g;\n")
	body.WriteString("\tPM_out.s2 = (float) PM_in.b;\n")
	if it.element == "float4" {
		body.WriteString("\tPM_out.s3 = (float) PM_in.a;\n")
	}
	body.WriteString("\treturn PM_out;\n}")
	return body.String()
}

func (it *imageTranslator) outputBindKernel(packageName, className string, b ir.OutputBind) string {
	var body strings.Builder
	fmt.Fprintf(&body, "uchar4 __attribute__((kernel)) toBitmap%s(%s PM_in, uint32_t x, uint32_t y) {\n", it.className, it.element)
	body.WriteString("\tuchar4 PM_out;\n")
	body.WriteString("\tPM_out.r = (uchar) (PM_in.s0);\n")
	body.WriteString("\tPM_out.g = (uchar) (PM_in.s1);\n")
	body.WriteString("\tPM_out.b = (uchar) (PM_in.s2);\n")
	body.WriteString("\tPM_out.a = 255;\n")
	body.WriteString("\treturn PM_out;\n}")
	return body.String()
}

// userFunction renders the standalone C function for the operation's user
// code; image user functions receive the element plus its coordinates.
func (it *imageTranslator) userFunction(op ir.Operation) string {
	name := translation.FunctionName(op.SequenceIndex)
	body := translation.UserFunctionBody(op, it.catalog, it.ctrans)
	switch op.Kind {
	case ir.OperationReduce:
		return fmt.Sprintf("static %s %s(%s PM_in1, %s PM_in2%s) %s",
			it.element, name, it.element, it.element, externalParams(op, it.catalog), body)
	case ir.OperationFilter:
		return fmt.Sprintf("static bool %s(%s PM_in, uint32_t x, uint32_t y%s) %s",
			name, it.element, externalParams(op, it.catalog), body)
	default:
		return fmt.Sprintf("static %s %s(%s PM_in, uint32_t x, uint32_t y%s) %s",
			it.element, name, it.element, externalParams(op, it.catalog), body)
	}
}

// sequentialLocals reads non-final externals out of their single-element
// allocations; sequentialWriteback stores them back after the loop.
func sequentialLocals(op ir.Operation, catalog userlib.Catalog) (locals []string, writeback []string) {
	if op.Execution != ir.ExecutionSequential {
		return nil, nil
	}
	for _, v := range op.ExternalVariables {
		if v.IsFinal() {
			continue
		}
		ctype := catalog.CType(translation.PrimitiveCType(v.TypeName))
		alloc := fmt.Sprintf("%s_%s", translation.OperationName(op), v.Name)
		locals = append(locals, fmt.Sprintf("\t%s %s = rsGetElementAt_%s(%s, 0);", ctype, v.Name, elementSuffix(ctype), alloc))
		writeback = append(writeback, fmt.Sprintf("\trsSetElementAt_%s(%s, %s, 0);", elementSuffix(ctype), alloc, v.Name))
	}
	return locals, writeback
}

func (it *imageTranslator) foreach(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, it.catalog)
	fns = append(fns, it.userFunction(op))
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)

	if op.Execution == ir.ExecutionParallel {
		fns = append(fns, fmt.Sprintf(
			"%s __attribute__((kernel)) %s(%s PM_in, uint32_t x, uint32_t y) {\n\treturn %s(PM_in, x, y%s);\n}",
			it.element, name, it.element, fn, externalArgs(op)))
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, it.catalog)
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\n\n", inputAllocationName(op))
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_width = rsAllocationGetDimX(%s);\n", inputAllocationName(op))
	fmt.Fprintf(&b, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", inputAllocationName(op))
	b.WriteString("\tfor (uint32_t y = 0; y < PM_height; ++y) {\n")
	b.WriteString("\t\tfor (uint32_t x = 0; x < PM_width; ++x) {\n")
	fmt.Fprintf(&b, "\t\t\t%s PM_val = rsGetElementAt_%s(%s, x, y);\n", it.element, it.element, inputAllocationName(op))
	fmt.Fprintf(&b, "\t\t\tPM_val = %s(PM_val, x, y%s);\n", fn, externalArgs(op))
	fmt.Fprintf(&b, "\t\t\trsSetElementAt_%s(%s, PM_val, x, y);\n", it.element, inputAllocationName(op))
	b.WriteString("\t\t}\n\t}\n")
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

func (it *imageTranslator) mapOp(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, it.catalog)
	fns = append(fns, it.userFunction(op))
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)

	if op.Execution == ir.ExecutionParallel {
		fns = append(fns, fmt.Sprintf(
			"%s __attribute__((kernel)) %s(%s PM_in, uint32_t x, uint32_t y) {\n\treturn %s(PM_in, x, y%s);\n}",
			it.element, name, it.element, fn, externalArgs(op)))
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, it.catalog)
	output := name + "_output"
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\nrs_allocation %s;\n\n", inputAllocationName(op), output)
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_width = rsAllocationGetDimX(%s);\n", inputAllocationName(op))
	fmt.Fprintf(&b, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", inputAllocationName(op))
	b.WriteString("\tfor (uint32_t y = 0; y < PM_height; ++y) {\n")
	b.WriteString("\t\tfor (uint32_t x = 0; x < PM_width; ++x) {\n")
	fmt.Fprintf(&b, "\t\t\t%s PM_val = rsGetElementAt_%s(%s, x, y);\n", it.element, it.element, inputAllocationName(op))
	fmt.Fprintf(&b, "\t\t\trsSetElementAt_%s(%s, %s(PM_val, x, y%s), x, y);\n", it.element, output, fn, externalArgs(op))
	b.WriteString("\t\t}\n\t}\n")
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

// reduce lowers to a per-column tile kernel plus a final left-to-right
// combine when parallel, or to one sequential loop otherwise. The user
// function always receives the running accumulator as its first argument.
func (it *imageTranslator) reduce(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, it.catalog)
	fns = append(fns, it.userFunction(op))
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)
	input := inputAllocationName(op)
	tiles := name + "_tiles"

	if op.Execution == ir.ExecutionParallel {
		var tile strings.Builder
		fmt.Fprintf(&tile, "rs_allocation %s;\nrs_allocation %s;\n\n", input, tiles)
		fmt.Fprintf(&tile, "%s __attribute__((kernel)) %s_tile(uint32_t x) {\n", it.element, name)
		fmt.Fprintf(&tile, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", input)
		fmt.Fprintf(&tile, "\t%s PM_acc = rsGetElementAt_%s(%s, x, 0);\n", it.element, it.element, input)
		tile.WriteString("\tfor (uint32_t y = 1; y < PM_height; ++y) {\n")
		fmt.Fprintf(&tile, "\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, x, y)%s);\n", fn, it.element, input, externalArgs(op))
		tile.WriteString("\t}\n\treturn PM_acc;\n}")
		fns = append(fns, tile.String())

		var final strings.Builder
		fmt.Fprintf(&final, "void %s() {\n", name)
		fmt.Fprintf(&final, "\tuint32_t PM_width = rsAllocationGetDimX(%s);\n", input)
		fmt.Fprintf(&final, "\t%s PM_acc = rsGetElementAt_%s(%s, 0);\n", it.element, it.element, tiles)
		final.WriteString("\tfor (uint32_t x = 1; x < PM_width; ++x) {\n")
		fmt.Fprintf(&final, "\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, x)%s);\n", fn, it.element, tiles, externalArgs(op))
		final.WriteString("\t}\n")
		fmt.Fprintf(&final, "\trsSetElementAt_%s(%s, PM_acc, 0);\n}", it.element, tiles)
		fns = append(fns, final.String())
		return fns, nil
	}

	locals, writeback := sequentialLocals(op, it.catalog)
	var b strings.Builder
	fmt.Fprintf(&b, "rs_allocation %s;\nrs_allocation %s;\n\n", input, tiles)
	fmt.Fprintf(&b, "void %s() {\n", name)
	for _, l := range locals {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "\tuint32_t PM_width = rsAllocationGetDimX(%s);\n", input)
	fmt.Fprintf(&b, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", input)
	fmt.Fprintf(&b, "\t%s PM_acc = rsGetElementAt_%s(%s, 0, 0);\n", it.element, it.element, input)
	b.WriteString("\tfor (uint32_t y = 0; y < PM_height; ++y) {\n")
	b.WriteString("\t\tfor (uint32_t x = 0; x < PM_width; ++x) {\n")
	b.WriteString("\t\t\tif (x == 0 && y == 0)\n\t\t\t\tcontinue;\n")
	fmt.Fprintf(&b, "\t\t\tPM_acc = %s(PM_acc, rsGetElementAt_%s(%s, x, y)%s);\n", fn, it.element, input, externalArgs(op))
	b.WriteString("\t\t}\n\t}\n")
	fmt.Fprintf(&b, "\trsSetElementAt_%s(%s, PM_acc, 0);\n", it.element, tiles)
	for _, w := range writeback {
		b.WriteString(w + "\n")
	}
	b.WriteString("}")
	fns = append(fns, b.String())
	return fns, nil
}

// filter lowers to a per-column predicate/count tile kernel plus a final
// order-preserving compaction into a 1-D allocation.
func (it *imageTranslator) filter(packageName, className string, op ir.Operation) ([]string, error) {
	fns := externalGlobals(op, it.catalog)
	fns = append(fns, it.userFunction(op))
	name := translation.OperationName(op)
	fn := translation.FunctionName(op.SequenceIndex)
	input := inputAllocationName(op)
	flags := name + "_flags"
	output := name + "_output"

	locals, writeback := sequentialLocals(op, it.catalog)

	if op.Execution == ir.ExecutionParallel {
		var tile strings.Builder
		fmt.Fprintf(&tile, "rs_allocation %s;\nrs_allocation %s;\nrs_allocation %s;\n\n", input, flags, output)
		fmt.Fprintf(&tile, "int __attribute__((kernel)) %s_tile(uint32_t x) {\n", name)
		fmt.Fprintf(&tile, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", input)
		tile.WriteString("\tint PM_count = 0;\n")
		tile.WriteString("\tfor (uint32_t y = 0; y < PM_height; ++y) {\n")
		fmt.Fprintf(&tile, "\t\tbool PM_keep = %s(rsGetElementAt_%s(%s, x, y), x, y%s);\n", fn, it.element, input, externalArgs(op))
		fmt.Fprintf(&tile, "\t\trsSetElementAt_char(%s, PM_keep ? 1 : 0, x, y);\n", flags)
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
	fmt.Fprintf(&final, "\tuint32_t PM_width = rsAllocationGetDimX(%s);\n", input)
	fmt.Fprintf(&final, "\tuint32_t PM_height = rsAllocationGetDimY(%s);\n", input)
	final.WriteString("\tuint32_t PM_next = 0;\n")
	final.WriteString("\tfor (uint32_t y = 0; y < PM_height; ++y) {\n")
	final.WriteString("\t\tfor (uint32_t x = 0; x < PM_width; ++x) {\n")
	if op.Execution == ir.ExecutionParallel {
		fmt.Fprintf(&final, "\t\t\tif (rsGetElementAt_char(%s, x, y) != 0) {\n", flags)
	} else {
		fmt.Fprintf(&final, "\t\t\tif (%s(rsGetElementAt_%s(%s, x, y), x, y%s)) {\n", fn, it.element, input, externalArgs(op))
	}
	fmt.Fprintf(&final, "\t\t\t\trsSetElementAt_%s(%s, rsGetElementAt_%s(%s, x, y), PM_next++);\n", it.element, output, it.element, input)
	final.WriteString("\t\t\t}\n\t\t}\n\t}\n")
	for _, w := range writeback {
		final.WriteString(w + "\n")
	}
	final.WriteString("}")
	fns = append(fns, final.String())
	return fns, nil
}

func (it *imageTranslator) inputBindDeclarations(b ir.InputBind) []string {
	return []string{
		fmt.Sprintf("private Allocation %s;", translation.VariableInName(b.Variable)),
		fmt.Sprintf("private Allocation %s;", translation.VariableOutName(b.Variable)),
	}
}

func (it *imageTranslator) inputBindCreation(className string, b ir.InputBind) string {
	in := translation.VariableInName(b.Variable)
	out := translation.VariableOutName(b.Variable)
	dataType := in + "DataType"
	kernel := translation.KernelFieldName()
	param := firstVariableName(b)

	var body strings.Builder
	fmt.Fprintf(&body, "Type %s;\n", dataType)
	fmt.Fprintf(&body, "%s = Allocation.createFromBitmap(PM_mRS, %s, Allocation.MipmapControl.MIPMAP_NONE, Allocation.USAGE_SCRIPT | Allocation.USAGE_SHARED);\n", in, param)
	fmt.Fprintf(&body, "%s = new Type.Builder(PM_mRS, %s)\n", dataType, rsElement(it.element))
	fmt.Fprintf(&body, "\t.setX(%s.getType().getX())\n", in)
	fmt.Fprintf(&body, "\t.setY(%s.getType().getY())\n", in)
	body.WriteString("\t.create();\n")
	fmt.Fprintf(&body, "%s = Allocation.createTyped(PM_mRS, %s);\n", out, dataType)
	fmt.Fprintf(&body, "%s.forEach_toFloat%s(%s, %s);", kernel, it.className, in, out)
	return body.String()
}

func (it *imageTranslator) operationCall(className string, op ir.Operation) string {
	kernel := translation.KernelFieldName()
	out := translation.VariableOutName(op.Variable)
	name := translation.OperationName(op)
	before, after := setExternals(op, it.catalog)

	var body strings.Builder
	for _, line := range before {
		body.WriteString(line + "\n")
	}

	if op.Execution == ir.ExecutionParallel {
		switch op.Kind {
		case ir.OperationForeach:
			fmt.Fprintf(&body, "%s.forEach_%s(%s, %s);", kernel, name, out, out)
		case ir.OperationMap:
			alloc := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createTyped(PM_mRS, %s.getType());\n", alloc, out)
			fmt.Fprintf(&body, "%s.forEach_%s(%s, %s);\n", kernel, name, out, alloc)
			fmt.Fprintf(&body, "%s = %s;", out, alloc)
		case ir.OperationReduce:
			tiles := translation.Prefix + name + "_tiles"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX());\n", tiles, rsElement(it.element), out)
			fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, out)
			fmt.Fprintf(&body, "%s.set_%s_tiles(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.forEach_%s_tile(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		case ir.OperationFilter:
			flags := translation.Prefix + name + "_flags"
			output := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Type %sFlagsType = new Type.Builder(PM_mRS, Element.I8(PM_mRS))\n", flags)
			fmt.Fprintf(&body, "\t.setX(%s.getType().getX())\n", out)
			fmt.Fprintf(&body, "\t.setY(%s.getType().getY())\n", out)
			body.WriteString("\t.create();\n")
			fmt.Fprintf(&body, "Allocation %s = Allocation.createTyped(PM_mRS, %sFlagsType);\n", flags, flags)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX() * %s.getType().getY());\n", output, rsElement(it.element), out, out)
			fmt.Fprintf(&body, "Allocation %sCounts = Allocation.createSized(PM_mRS, Element.I32(PM_mRS), %s.getType().getX());\n", output, out)
			fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, out)
			fmt.Fprintf(&body, "%s.set_%s_flags(%s);\n", kernel, name, flags)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.forEach_%s_tile(%sCounts);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		}
	} else {
		fmt.Fprintf(&body, "%s.set_%s_input(%s);\n", kernel, name, out)
		if op.Kind == ir.OperationMap {
			alloc := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createTyped(PM_mRS, %s.getType());\n", alloc, out)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, alloc)
			fmt.Fprintf(&body, "%s.invoke_%s();\n", kernel, name)
			fmt.Fprintf(&body, "%s = %s;", out, alloc)
		} else if op.Kind == ir.OperationReduce {
			tiles := translation.Prefix + name + "_tiles"
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, 1);\n", tiles, rsElement(it.element))
			fmt.Fprintf(&body, "%s.set_%s_tiles(%s);\n", kernel, name, tiles)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		} else if op.Kind == ir.OperationFilter {
			flags := translation.Prefix + name + "_flags"
			output := translation.Prefix + name + "_output"
			fmt.Fprintf(&body, "Type %sFlagsType = new Type.Builder(PM_mRS, Element.I8(PM_mRS))\n", flags)
			fmt.Fprintf(&body, "\t.setX(%s.getType().getX())\n", out)
			fmt.Fprintf(&body, "\t.setY(%s.getType().getY())\n", out)
			body.WriteString("\t.create();\n")
			fmt.Fprintf(&body, "Allocation %s = Allocation.createTyped(PM_mRS, %sFlagsType);\n", flags, flags)
			fmt.Fprintf(&body, "Allocation %s = Allocation.createSized(PM_mRS, %s, %s.getType().getX() * %s.getType().getY());\n", output, rsElement(it.element), out, out)
			fmt.Fprintf(&body, "%s.set_%s_flags(%s);\n", kernel, name, flags)
			fmt.Fprintf(&body, "%s.set_%s_output(%s);\n", kernel, name, output)
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		} else {
			fmt.Fprintf(&body, "%s.invoke_%s();", kernel, name)
		}
	}

	for _, line := range after {
		body.WriteString("\n" + line)
	}
	return body.String()
}

func (it *imageTranslator) outputBindCall(className string, b ir.OutputBind) string {
	kernel := translation.KernelFieldName()
	in := translation.VariableInName(b.Variable)
	out := translation.VariableOutName(b.Variable)
	var body strings.Builder
	fmt.Fprintf(&body, "%s.forEach_toBitmap%s(%s, %s);\n", kernel, it.className, out, in)
	fmt.Fprintf(&body, "%s.copyTo(%s);", in, b.Destination.Name)
	return body.String()
}

func (it *imageTranslator) methodCall(mc ir.MethodCall) (string, error) {
	in := translation.VariableInName(mc.Variable)
	switch mc.MethodName {
	case "getWidth":
		return fmt.Sprintf("return %s.getType().getX();", in), nil
	case "getHeight":
		return fmt.Sprintf("return %s.getType().getY();", in), nil
	}
	return "", unsupportedMethod(mc, it.className)
}

func firstVariableName(b ir.InputBind) string {
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			return v.Name
		}
	}
	if len(b.Arguments) > 0 {
		return b.Arguments[0].String()
	}
	return ""
}
