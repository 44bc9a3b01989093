package pmruntime

import (
	"fmt"
	"strings"

	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// imageTranslator emits the C++ translation-unit functions and Java wrapper
// bodies for the two image collection classes on the custom runtime.
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
		MethodCallKernel: it.methodCallKernel,
		Operations: map[ir.OperationKind]translation.KernelEmitter{
			ir.OperationForeach: it.foreach,
			ir.OperationMap:     it.mapOp,
			ir.OperationReduce:  it.reduce,
			ir.OperationFilter:  it.filter,
		},
		InputBindDeclarations:  it.inputBindDeclarations,
		InputBindCreation:      it.inputBindCreation,
		OperationCall:          it.operationCall,
		OperationDeclarations:  it.operationDeclarations,
		OutputBindCall:         it.outputBindCall,
		OutputBindDeclarations: it.outputBindDeclarations,
		MethodCall:             it.methodCall,
		MethodCallDeclarations: it.methodCallDeclarations,
	}
}

// accessor is the Runtime method returning the buffer for this element
// width; creator is its allocation counterpart.
func (it *imageTranslator) accessor() string {
	if it.element == "float4" {
		return "image4"
	}
	return "image3"
}

func (it *imageTranslator) creator() string {
	if it.element == "float4" {
		return "createImage4"
	}
	return "createImage3"
}

func (it *imageTranslator) inputBindKernel(packageName, className string, b ir.InputBind) string {
	param := firstVariableName(b)
	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.InputBindName(b)),
		", jlong PM_runtimePtr, jobject "+param) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	f.WriteString("\tAndroidBitmapInfo PM_info;\n")
	fmt.Fprintf(&f, "\tAndroidBitmap_getInfo(PM_env, %s, &PM_info);\n", param)
	f.WriteString("\tvoid *PM_pixels = nullptr;\n")
	fmt.Fprintf(&f, "\tAndroidBitmap_lockPixels(PM_env, %s, &PM_pixels);\n", param)
	fmt.Fprintf(&f, "\tauto &PM_buf = PM_runtime->%s(\"%s\", PM_info.width, PM_info.height);\n",
		it.creator(), b.Variable.Name)
	f.WriteString("\tconst uint8_t *PM_src = static_cast<const uint8_t *>(PM_pixels);\n")
	f.WriteString("\tfor (uint32_t y = 0; y < PM_info.height; ++y) {\n")
	f.WriteString("\t\tfor (uint32_t x = 0; x < PM_info.width; ++x) {\n")
	f.WriteString("\t\t\tconst uint8_t *PM_px = PM_src + y * PM_info.stride + x * 4;\n")
	fmt.Fprintf(&f, "\t\t\t%s PM_val;\n", it.element)
	f.WriteString("\t\t\tPM_val.s0 = (float) PM_px[0];\n")
	f.WriteString("\t\t\tPM_val.s1 = (float) PM_px[1];\n")
	f.WriteString("\t\t\tPM_val.s2 = (float) PM_px[2];\n")
	if it.element == "float4" {
		f.WriteString("\t\t\tPM_val.s3 = (float) PM_px[3];\n")
	}
	f.WriteString("\t\t\tPM_buf.at(x, y) = PM_val;\n")
	f.WriteString("\t\t}\n\t}\n")
	fmt.Fprintf(&f, "\tAndroidBitmap_unlockPixels(PM_env, %s);\n", param)
	f.WriteString("}")
	return f.String()
}

func (it *imageTranslator) outputBindKernel(packageName, className string, b ir.OutputBind) string {
	dest := b.Destination.Name
	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.OutputBindName(b)),
		", jlong PM_runtimePtr, jobject "+dest) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	fmt.Fprintf(&f, "\tauto &PM_buf = PM_runtime->%s(\"%s\");\n", it.accessor(), b.Variable.Name)
	f.WriteString("\tvoid *PM_pixels = nullptr;\n")
	fmt.Fprintf(&f, "\tAndroidBitmap_lockPixels(PM_env, %s, &PM_pixels);\n", dest)
	f.WriteString("\tuint8_t *PM_dst = static_cast<uint8_t *>(PM_pixels);\n")
	f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
	f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
	f.WriteString("\t\t\tuint8_t *PM_px = PM_dst + (y * PM_buf.width() + x) * 4;\n")
	fmt.Fprintf(&f, "\t\t\t%s PM_val = PM_buf.at(x, y);\n", it.element)
	f.WriteString("\t\t\tPM_px[0] = (uint8_t) PM_val.s0;\n")
	f.WriteString("\t\t\tPM_px[1] = (uint8_t) PM_val.s1;\n")
	f.WriteString("\t\t\tPM_px[2] = (uint8_t) PM_val.s2;\n")
	f.WriteString("\t\t\tPM_px[3] = 255;\n")
	f.WriteString("\t\t}\n\t}\n")
	fmt.Fprintf(&f, "\tAndroidBitmap_unlockPixels(PM_env, %s);\n", dest)
	f.WriteString("}")
	return f.String()
}

func (it *imageTranslator) methodCallKernel(packageName, className string, mc ir.MethodCall) string {
	accessor := "width"
	if mc.MethodName == "getHeight" {
		accessor = "height"
	}
	return jniFunction(packageName, className, "jint", nativeName(translation.MethodCallName(mc)), ", jlong PM_runtimePtr") + " {\n" +
		"\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n" +
		fmt.Sprintf("\treturn (jint) PM_runtime->%s(\"%s\").%s();\n", it.accessor(), mc.Variable.Name, accessor) +
		"}"
}

func (it *imageTranslator) userFunction(op ir.Operation) string {
	name := translation.FunctionName(op.SequenceIndex)
	body := translation.UserFunctionBody(op, it.catalog, it.ctrans)
	switch op.Kind {
	case ir.OperationReduce:
		return fmt.Sprintf("static %s %s(%s PM_in1, %s PM_in2%s) %s",
			it.element, name, it.element, it.element, externalCParams(op, it.catalog), body)
	case ir.OperationFilter:
		return fmt.Sprintf("static bool %s(%s PM_in, uint32_t x, uint32_t y%s) %s",
			name, it.element, externalCParams(op, it.catalog), body)
	default:
		return fmt.Sprintf("static %s %s(%s PM_in, uint32_t x, uint32_t y%s) %s",
			it.element, name, it.element, externalCParams(op, it.catalog), body)
	}
}

// jniDriver opens the JNI export for one operation, resolves the buffer and
// pins external arrays around the supplied loop body.
func (it *imageTranslator) jniDriver(packageName, className string, op ir.Operation, body func(f *strings.Builder, args string)) string {
	prologue, args, epilogue := externalPins(op, it.catalog)

	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.OperationName(op)),
		", jlong PM_runtimePtr"+externalJNIParams(op)) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	fmt.Fprintf(&f, "\tauto &PM_buf = PM_runtime->%s(\"%s\");\n", it.accessor(), op.Variable.Name)
	for _, line := range prologue {
		f.WriteString(line + "\n")
	}
	body(&f, externalCallArgs(args))
	for _, line := range epilogue {
		f.WriteString(line + "\n")
	}
	f.WriteString("}")
	return f.String()
}

func (it *imageTranslator) foreach(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	driver := it.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor(PM_buf.height(), [&](uint32_t y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_buf.at(x, y) = %s(PM_buf.at(x, y), x, y%s);\n", fn, args)
			f.WriteString("\t\t}\n\t});\n")
			return
		}
		f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
		f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
		fmt.Fprintf(f, "\t\t\tPM_buf.at(x, y) = %s(PM_buf.at(x, y), x, y%s);\n", fn, args)
		f.WriteString("\t\t}\n\t}\n")
	})
	return []string{it.userFunction(op), driver}, nil
}

func (it *imageTranslator) mapOp(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	driver := it.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		fmt.Fprintf(f, "\tauto &PM_out = PM_runtime->%s(\"%s\", PM_buf.width(), PM_buf.height());\n",
			it.creator(), mapOutputKey(op))
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor(PM_buf.height(), [&](uint32_t y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_out.at(x, y) = %s(PM_buf.at(x, y), x, y%s);\n", fn, args)
			f.WriteString("\t\t}\n\t});\n")
		} else {
			f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_out.at(x, y) = %s(PM_buf.at(x, y), x, y%s);\n", fn, args)
			f.WriteString("\t\t}\n\t}\n")
		}
		fmt.Fprintf(f, "\tPM_runtime->promote(\"%s\", \"%s\");\n", mapOutputKey(op), op.Variable.Name)
	})
	return []string{it.userFunction(op), driver}, nil
}

// reduce folds per column into a tile vector when parallel, then combines
// tile results left-to-right; the accumulator is always the user function's
// first argument. The result lands in the runtime's result slot.
func (it *imageTranslator) reduce(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	driver := it.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		if op.Execution == ir.ExecutionParallel {
			fmt.Fprintf(f, "\tstd::vector<%s> PM_tiles(PM_buf.width());\n", it.element)
			f.WriteString("\tPM_runtime->parallelFor(PM_buf.width(), [&](uint32_t x) {\n")
			fmt.Fprintf(f, "\t\t%s PM_acc = PM_buf.at(x, 0);\n", it.element)
			f.WriteString("\t\tfor (uint32_t y = 1; y < PM_buf.height(); ++y) {\n")
			fmt.Fprintf(f, "\t\t\tPM_acc = %s(PM_acc, PM_buf.at(x, y)%s);\n", fn, args)
			f.WriteString("\t\t}\n\t\tPM_tiles[x] = PM_acc;\n\t});\n")
			fmt.Fprintf(f, "\t%s PM_acc = PM_tiles[0];\n", it.element)
			f.WriteString("\tfor (size_t PM_i = 1; PM_i < PM_tiles.size(); ++PM_i) {\n")
			fmt.Fprintf(f, "\t\tPM_acc = %s(PM_acc, PM_tiles[PM_i]%s);\n", fn, args)
			f.WriteString("\t}\n")
		} else {
			fmt.Fprintf(f, "\t%s PM_acc = PM_buf.at(0, 0);\n", it.element)
			f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			f.WriteString("\t\t\tif (x == 0 && y == 0)\n\t\t\t\tcontinue;\n")
			fmt.Fprintf(f, "\t\t\tPM_acc = %s(PM_acc, PM_buf.at(x, y)%s);\n", fn, args)
			f.WriteString("\t\t}\n\t}\n")
		}
		fmt.Fprintf(f, "\tPM_runtime->storeResult(\"%s\", PM_acc);\n", op.Variable.Name)
	})
	return []string{it.userFunction(op), driver}, nil
}

// filter keeps elements whose predicate is true, preserving row-major input
// order in a 1-D result buffer. An empty result is valid.
func (it *imageTranslator) filter(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	driver := it.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		f.WriteString("\tstd::vector<char> PM_flags(PM_buf.width() * PM_buf.height(), 0);\n")
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor(PM_buf.height(), [&](uint32_t y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_flags[y * PM_buf.width() + x] = %s(PM_buf.at(x, y), x, y%s) ? 1 : 0;\n", fn, args)
			f.WriteString("\t\t}\n\t});\n")
		} else {
			f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
			f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_flags[y * PM_buf.width() + x] = %s(PM_buf.at(x, y), x, y%s) ? 1 : 0;\n", fn, args)
			f.WriteString("\t\t}\n\t}\n")
		}
		fmt.Fprintf(f, "\tstd::vector<%s> PM_kept;\n", it.element)
		f.WriteString("\tfor (uint32_t y = 0; y < PM_buf.height(); ++y) {\n")
		f.WriteString("\t\tfor (uint32_t x = 0; x < PM_buf.width(); ++x) {\n")
		f.WriteString("\t\t\tif (PM_flags[y * PM_buf.width() + x])\n")
		f.WriteString("\t\t\t\tPM_kept.push_back(PM_buf.at(x, y));\n")
		f.WriteString("\t\t}\n\t}\n")
		fmt.Fprintf(f, "\tPM_runtime->storeFiltered(\"%s\", PM_kept);\n", op.Variable.Name)
	})
	return []string{it.userFunction(op), driver}, nil
}

func (it *imageTranslator) inputBindDeclarations(b ir.InputBind) []string {
	params := []string{"long PM_runtimePtr"}
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			params = append(params, fmt.Sprintf("%s %s", v.TypeName, v.Name))
		}
	}
	return []string{fmt.Sprintf("private native void %s(%s);",
		nativeName(translation.InputBindName(b)), strings.Join(params, ", "))}
}

func (it *imageTranslator) inputBindCreation(className string, b ir.InputBind) string {
	return javaNativeCall(translation.InputBindName(b), variableArgumentNames(b), false)
}

func (it *imageTranslator) operationDeclarations(op ir.Operation) []string {
	return nativeOperationDeclaration(op)
}

func (it *imageTranslator) operationCall(className string, op ir.Operation) string {
	var args []string
	for _, v := range op.ExternalVariables {
		args = append(args, v.Name)
	}
	return javaNativeCall(translation.OperationName(op), args, false)
}

func (it *imageTranslator) outputBindDeclarations(b ir.OutputBind) []string {
	return []string{fmt.Sprintf("private native void %s(long PM_runtimePtr, %s %s);",
		nativeName(translation.OutputBindName(b)), b.Destination.TypeName, b.Destination.Name)}
}

func (it *imageTranslator) outputBindCall(className string, b ir.OutputBind) string {
	return javaNativeCall(translation.OutputBindName(b), []string{b.Destination.Name}, false)
}

func (it *imageTranslator) methodCallDeclarations(mc ir.MethodCall) []string {
	return []string{fmt.Sprintf("private native int %s(long PM_runtimePtr);",
		nativeName(translation.MethodCallName(mc)))}
}

func (it *imageTranslator) methodCall(mc ir.MethodCall) (string, error) {
	switch mc.MethodName {
	case "getWidth", "getHeight":
		return javaNativeCall(translation.MethodCallName(mc), nil, true), nil
	}
	return "", errors.Newf(errors.KindUnsupportedMethod,
		"method %q of %s is not supported by back-end %s",
		mc.MethodName, it.className, translation.TargetParallelME)
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

// variableArgumentNames lists the bind arguments that cross the native
// boundary; literals and expressions stay host-side.
func variableArgumentNames(b ir.InputBind) []string {
	var names []string
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			names = append(names, v.Name)
		}
	}
	return names
}

func mapOutputKey(op ir.Operation) string {
	return op.Variable.Name + "#" + translation.OperationName(op)
}

// nativeOperationDeclaration renders the Java native declaration for an
// operation; non-final sequential externals are array parameters.
func nativeOperationDeclaration(op ir.Operation) []string {
	params := []string{"long PM_runtimePtr"}
	for _, v := range op.ExternalVariables {
		typeName := v.TypeName
		if op.Execution == ir.ExecutionSequential && !v.IsFinal() {
			typeName += "[]"
		}
		params = append(params, fmt.Sprintf("%s %s", typeName, v.Name))
	}
	return []string{fmt.Sprintf("private native void %s(%s);",
		nativeName(translation.OperationName(op)), strings.Join(params, ", "))}
}
