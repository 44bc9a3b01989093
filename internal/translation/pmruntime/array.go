package pmruntime

import (
	"fmt"
	"strings"

	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// arrayTranslator emits the C++ translation-unit functions and Java wrapper
// bodies for the typed Array collection on the custom runtime.
type arrayTranslator struct {
	ctrans  translation.CTranslator
	catalog userlib.Catalog
}

func newArrayTranslator(ctrans translation.CTranslator, catalog userlib.Catalog) *translation.TypeTranslator {
	at := &arrayTranslator{ctrans: ctrans, catalog: catalog}
	return &translation.TypeTranslator{
		InputBindKernel:  at.inputBindKernel,
		OutputBindKernel: at.outputBindKernel,
		Operations: map[ir.OperationKind]translation.KernelEmitter{
			ir.OperationForeach: at.foreach,
			ir.OperationMap:     at.mapOp,
			ir.OperationReduce:  at.reduce,
			ir.OperationFilter:  at.filter,
		},
		InputBindDeclarations:  at.inputBindDeclarations,
		InputBindCreation:      at.inputBindCreation,
		OperationCall:          at.operationCall,
		OperationDeclarations:  nativeOperationDeclaration,
		OutputBindCall:         at.outputBindCall,
		OutputBindDeclarations: at.outputBindDeclarations,
		MethodCall:             at.methodCall,
	}
}

func (at *arrayTranslator) elementType(v ir.Variable) string {
	return at.catalog.CType(v.TypeParameter)
}

// jniArraySuffix maps a kernel C scalar to the JNI array helper family.
func jniArraySuffix(ctype string) string {
	switch ctype {
	case "short":
		return "Short"
	case "int":
		return "Int"
	case "float":
		return "Float"
	}
	return "Int"
}

func (at *arrayTranslator) inputBindKernel(packageName, className string, b ir.InputBind) string {
	element := at.elementType(b.Variable)
	suffix := jniArraySuffix(element)
	param := firstVariableName(b)
	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.InputBindName(b)),
		fmt.Sprintf(", jlong PM_runtimePtr, j%sArray %s", strings.ToLower(suffix), param)) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	fmt.Fprintf(&f, "\tjsize PM_length = PM_env->GetArrayLength(%s);\n", param)
	fmt.Fprintf(&f, "\tj%s *PM_data = PM_env->Get%sArrayElements(%s, nullptr);\n", strings.ToLower(suffix), suffix, param)
	fmt.Fprintf(&f, "\tPM_runtime->createArray<%s>(\"%s\", PM_data, (size_t) PM_length);\n", element, b.Variable.Name)
	fmt.Fprintf(&f, "\tPM_env->Release%sArrayElements(%s, PM_data, JNI_ABORT);\n", suffix, param)
	f.WriteString("}")
	return f.String()
}

func (at *arrayTranslator) outputBindKernel(packageName, className string, b ir.OutputBind) string {
	element := at.elementType(b.Variable)
	suffix := jniArraySuffix(element)
	dest := b.Destination.Name
	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.OutputBindName(b)),
		fmt.Sprintf(", jlong PM_runtimePtr, j%sArray %s", strings.ToLower(suffix), dest)) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	fmt.Fprintf(&f, "\tauto &PM_buf = PM_runtime->array<%s>(\"%s\");\n", element, b.Variable.Name)
	fmt.Fprintf(&f, "\tjsize PM_capacity = PM_env->GetArrayLength(%s);\n", dest)
	f.WriteString("\tjsize PM_length = (jsize) PM_buf.size();\n")
	f.WriteString("\tif (PM_capacity < PM_length)\n\t\tPM_length = PM_capacity;\n")
	fmt.Fprintf(&f, "\tPM_env->Set%sArrayRegion(%s, 0, PM_length, reinterpret_cast<const j%s *>(PM_buf.data()));\n",
		suffix, dest, strings.ToLower(suffix))
	f.WriteString("}")
	return f.String()
}

func (at *arrayTranslator) userFunction(op ir.Operation) string {
	name := translation.FunctionName(op.SequenceIndex)
	element := at.elementType(op.Variable)
	body := translation.UserFunctionBody(op, at.catalog, at.ctrans)
	switch op.Kind {
	case ir.OperationReduce:
		return fmt.Sprintf("static %s %s(%s PM_in1, %s PM_in2%s) %s",
			element, name, element, element, externalCParams(op, at.catalog), body)
	case ir.OperationFilter:
		return fmt.Sprintf("static bool %s(%s PM_in, uint32_t x%s) %s",
			name, element, externalCParams(op, at.catalog), body)
	default:
		return fmt.Sprintf("static %s %s(%s PM_in, uint32_t x%s) %s",
			element, name, element, externalCParams(op, at.catalog), body)
	}
}

func (at *arrayTranslator) jniDriver(packageName, className string, op ir.Operation, body func(f *strings.Builder, args string)) string {
	prologue, args, epilogue := externalPins(op, at.catalog)
	element := at.elementType(op.Variable)

	var f strings.Builder
	f.WriteString(jniFunction(packageName, className, "void", nativeName(translation.OperationName(op)),
		", jlong PM_runtimePtr"+externalJNIParams(op)) + " {\n")
	f.WriteString("\tauto *PM_runtime = reinterpret_cast<Runtime *>(PM_runtimePtr);\n")
	fmt.Fprintf(&f, "\tauto &PM_buf = PM_runtime->array<%s>(\"%s\");\n", element, op.Variable.Name)
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

func (at *arrayTranslator) foreach(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	driver := at.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor((uint32_t) PM_buf.size(), [&](uint32_t x) {\n")
			fmt.Fprintf(f, "\t\tPM_buf[x] = %s(PM_buf[x], x%s);\n", fn, args)
			f.WriteString("\t});\n")
			return
		}
		f.WriteString("\tfor (uint32_t x = 0; x < (uint32_t) PM_buf.size(); ++x) {\n")
		fmt.Fprintf(f, "\t\tPM_buf[x] = %s(PM_buf[x], x%s);\n", fn, args)
		f.WriteString("\t}\n")
	})
	return []string{at.userFunction(op), driver}, nil
}

func (at *arrayTranslator) mapOp(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	element := at.elementType(op.Variable)
	driver := at.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		fmt.Fprintf(f, "\tstd::vector<%s> PM_out(PM_buf.size());\n", element)
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor((uint32_t) PM_buf.size(), [&](uint32_t x) {\n")
			fmt.Fprintf(f, "\t\tPM_out[x] = %s(PM_buf[x], x%s);\n", fn, args)
			f.WriteString("\t});\n")
		} else {
			f.WriteString("\tfor (uint32_t x = 0; x < (uint32_t) PM_buf.size(); ++x) {\n")
			fmt.Fprintf(f, "\t\tPM_out[x] = %s(PM_buf[x], x%s);\n", fn, args)
			f.WriteString("\t}\n")
		}
		fmt.Fprintf(f, "\tPM_runtime->replaceArray<%s>(\"%s\", PM_out);\n", element, op.Variable.Name)
	})
	return []string{at.userFunction(op), driver}, nil
}

// reduce splits the array into contiguous tiles sized sqrt(n); tile results
// combine left-to-right with the accumulator as the first argument.
func (at *arrayTranslator) reduce(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	element := at.elementType(op.Variable)
	driver := at.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tuint32_t PM_length = (uint32_t) PM_buf.size();\n")
			f.WriteString("\tuint32_t PM_tileSize = Runtime::tileSize(PM_length);\n")
			f.WriteString("\tuint32_t PM_tileCount = (PM_length + PM_tileSize - 1) / PM_tileSize;\n")
			fmt.Fprintf(f, "\tstd::vector<%s> PM_tiles(PM_tileCount);\n", element)
			f.WriteString("\tPM_runtime->parallelFor(PM_tileCount, [&](uint32_t PM_t) {\n")
			f.WriteString("\t\tuint32_t PM_start = PM_t * PM_tileSize;\n")
			f.WriteString("\t\tuint32_t PM_end = PM_start + PM_tileSize;\n")
			f.WriteString("\t\tif (PM_end > PM_length)\n\t\t\tPM_end = PM_length;\n")
			fmt.Fprintf(f, "\t\t%s PM_acc = PM_buf[PM_start];\n", element)
			f.WriteString("\t\tfor (uint32_t x = PM_start + 1; x < PM_end; ++x) {\n")
			fmt.Fprintf(f, "\t\t\tPM_acc = %s(PM_acc, PM_buf[x]%s);\n", fn, args)
			f.WriteString("\t\t}\n\t\tPM_tiles[PM_t] = PM_acc;\n\t});\n")
			fmt.Fprintf(f, "\t%s PM_acc = PM_tiles[0];\n", element)
			f.WriteString("\tfor (size_t PM_i = 1; PM_i < PM_tiles.size(); ++PM_i) {\n")
			fmt.Fprintf(f, "\t\tPM_acc = %s(PM_acc, PM_tiles[PM_i]%s);\n", fn, args)
			f.WriteString("\t}\n")
		} else {
			fmt.Fprintf(f, "\t%s PM_acc = PM_buf[0];\n", element)
			f.WriteString("\tfor (uint32_t x = 1; x < (uint32_t) PM_buf.size(); ++x) {\n")
			fmt.Fprintf(f, "\t\tPM_acc = %s(PM_acc, PM_buf[x]%s);\n", fn, args)
			f.WriteString("\t}\n")
		}
		fmt.Fprintf(f, "\tPM_runtime->storeResult(\"%s\", PM_acc);\n", op.Variable.Name)
	})
	return []string{at.userFunction(op), driver}, nil
}

// filter records predicate flags per tile, then compacts kept elements in
// input order; the result replaces the array buffer.
func (at *arrayTranslator) filter(packageName, className string, op ir.Operation) ([]string, error) {
	fn := translation.FunctionName(op.SequenceIndex)
	element := at.elementType(op.Variable)
	driver := at.jniDriver(packageName, className, op, func(f *strings.Builder, args string) {
		f.WriteString("\tuint32_t PM_length = (uint32_t) PM_buf.size();\n")
		f.WriteString("\tstd::vector<char> PM_flags(PM_length, 0);\n")
		if op.Execution == ir.ExecutionParallel {
			f.WriteString("\tPM_runtime->parallelFor(PM_length, [&](uint32_t x) {\n")
			fmt.Fprintf(f, "\t\tPM_flags[x] = %s(PM_buf[x], x%s) ? 1 : 0;\n", fn, args)
			f.WriteString("\t});\n")
		} else {
			f.WriteString("\tfor (uint32_t x = 0; x < PM_length; ++x) {\n")
			fmt.Fprintf(f, "\t\tPM_flags[x] = %s(PM_buf[x], x%s) ? 1 : 0;\n", fn, args)
			f.WriteString("\t}\n")
		}
		fmt.Fprintf(f, "\tstd::vector<%s> PM_kept;\n", element)
		f.WriteString("\tfor (uint32_t x = 0; x < PM_length; ++x) {\n")
		f.WriteString("\t\tif (PM_flags[x])\n")
		f.WriteString("\t\t\tPM_kept.push_back(PM_buf[x]);\n")
		f.WriteString("\t}\n")
		fmt.Fprintf(f, "\tPM_runtime->replaceArray<%s>(\"%s\", PM_kept);\n", element, op.Variable.Name)
	})
	return []string{at.userFunction(op), driver}, nil
}

func (at *arrayTranslator) inputBindDeclarations(b ir.InputBind) []string {
	params := []string{"long PM_runtimePtr"}
	for _, arg := range b.Arguments {
		if v, ok := arg.(ir.Variable); ok {
			params = append(params, fmt.Sprintf("%s %s", v.TypeName, v.Name))
		}
	}
	return []string{fmt.Sprintf("private native void %s(%s);",
		nativeName(translation.InputBindName(b)), strings.Join(params, ", "))}
}

func (at *arrayTranslator) inputBindCreation(className string, b ir.InputBind) string {
	return javaNativeCall(translation.InputBindName(b), variableArgumentNames(b), false)
}

func (at *arrayTranslator) operationCall(className string, op ir.Operation) string {
	var args []string
	for _, v := range op.ExternalVariables {
		args = append(args, v.Name)
	}
	return javaNativeCall(translation.OperationName(op), args, false)
}

func (at *arrayTranslator) outputBindDeclarations(b ir.OutputBind) []string {
	return []string{fmt.Sprintf("private native void %s(long PM_runtimePtr, %s %s);",
		nativeName(translation.OutputBindName(b)), b.Destination.TypeName, b.Destination.Name)}
}

func (at *arrayTranslator) outputBindCall(className string, b ir.OutputBind) string {
	return javaNativeCall(translation.OutputBindName(b), []string{b.Destination.Name}, false)
}

func (at *arrayTranslator) methodCall(mc ir.MethodCall) (string, error) {
	return "", errors.Newf(errors.KindUnsupportedMethod,
		"method %q of Array is not supported by back-end %s",
		mc.MethodName, translation.TargetParallelME)
}
