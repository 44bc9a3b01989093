package pmruntime

import (
	"fmt"
	"strings"

	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

// New builds the ParallelME runtime back-end: generated Java wrappers
// delegate to per-class native methods implemented in a generated C++
// translation unit on top of the exported runtime helpers.
func New(ctrans translation.CTranslator, catalog userlib.Catalog) *translation.Backend {
	b := &translation.Backend{
		Target: translation.TargetParallelME,
		WrapperImports: []string{
			"android.graphics.Bitmap",
		},
		HostImports: nil,
		IsValidBody: fmt.Sprintf("return this.%sruntimePtr != 0;", translation.Prefix),
		InitializationLines: func(className string) []string {
			wrapper := translation.WrapperClassName(className, translation.TargetParallelME)
			ptr := runtimePtrName()
			return []string{
				fmt.Sprintf("private long %s;", ptr),
				"",
				fmt.Sprintf("public %s() {", wrapper),
				"\ttry {",
				"\t\tSystem.loadLibrary(\"ParallelMEGenerated\");",
				fmt.Sprintf("\t\tthis.%s = nativeInit();", ptr),
				"\t} catch (UnsatisfiedLinkError PM_e) {",
				fmt.Sprintf("\t\tthis.%s = 0;", ptr),
				"\t}",
				"}",
				"",
				"private native long nativeInit();",
			}
		},
		KernelDir: "jni",
		KernelFileName: func(packageName, className string) string {
			return CClassFileName(packageName, className)
		},
		KernelFilePreamble: func(packageName, className string) string {
			return "#include <jni.h>\n" +
				"#include <cstdint>\n" +
				"#include <vector>\n" +
				"#include <android/bitmap.h>\n" +
				"#include \"ParallelMERuntime.hpp\"\n\n" +
				"using namespace parallelme;\n\n" +
				nativeInitFunction(packageName, className)
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

func runtimePtrName() string {
	return translation.Prefix + "runtimePtr"
}

// CClassFileName names the generated C++ translation unit for a class,
// following the JNI symbol convention.
func CClassFileName(packageName, className string) string {
	wrapper := translation.WrapperClassName(className, translation.TargetParallelME)
	return jniName(packageName, wrapper) + ".cpp"
}

func jniName(packageName, className string) string {
	return strings.ReplaceAll(packageName, ".", "_") + "_" + className
}

// jniFunction renders the opening of a JNI export for one native method.
func jniFunction(packageName, className, returnType, method, params string) string {
	return fmt.Sprintf("extern \"C\" JNIEXPORT %s JNICALL\nJava_%s_%s(JNIEnv *PM_env, jobject PM_this%s)",
		returnType, jniName(packageName, translation.WrapperClassName(className, translation.TargetParallelME)), method, params)
}

// nativeInitFunction allocates the per-instance runtime.
func nativeInitFunction(packageName, className string) string {
	return jniFunction(packageName, className, "jlong", "nativeInit", "") + " {\n" +
		"\treturn reinterpret_cast<jlong>(new Runtime());\n" +
		"}"
}

// nativeName is the Java-side native counterpart of a wrapper method.
func nativeName(method string) string {
	return "native" + strings.ToUpper(method[:1]) + method[1:]
}

// jniScalarType maps a host parameter type to its JNI type; Java array
// types and non-final sequential externals map to JNI array types.
func jniScalarType(typeName string, asArray bool) string {
	if strings.HasSuffix(typeName, "[]") {
		typeName = strings.TrimSuffix(typeName, "[]")
		asArray = true
	}
	base := map[string]string{
		"boolean": "jboolean",
		"char":    "jchar",
		"double":  "jdouble",
		"float":   "jfloat",
		"int":     "jint",
		"long":    "jlong",
		"short":   "jshort",
	}
	t, ok := base[typeName]
	if !ok {
		if asArray {
			return "jobjectArray"
		}
		return "jobject"
	}
	if asArray {
		return t + "Array"
	}
	return t
}

// externalJNIParams renders the trailing JNI parameters for an operation's
// external variables; non-final sequential externals arrive as arrays.
func externalJNIParams(op ir.Operation) string {
	out := ""
	for _, v := range op.ExternalVariables {
		asArray := op.Execution == ir.ExecutionSequential && !v.IsFinal()
		out += fmt.Sprintf(", %s %s", jniScalarType(v.TypeName, asArray), v.Name)
	}
	return out
}

// externalPins pins non-final external arrays for the duration of the
// kernel and releases them with write-back; finals pass through unchanged.
// The returned argument list matches the user function's trailing external
// parameters.
func externalPins(op ir.Operation, catalog userlib.Catalog) (prologue []string, args []string, epilogue []string) {
	for _, v := range op.ExternalVariables {
		if op.Execution == ir.ExecutionSequential && !v.IsFinal() {
			jni := jniScalarType(v.TypeName, false)
			pinned := translation.KernelPrefix + v.Name
			upper := strings.ToUpper(jni[1:2]) + jni[2:]
			prologue = append(prologue, fmt.Sprintf("\t%s *%s = PM_env->Get%sArrayElements(%s, nullptr);",
				jni, pinned, upper, v.Name))
			args = append(args, pinned+"[0]")
			epilogue = append(epilogue, fmt.Sprintf("\tPM_env->Release%sArrayElements(%s, %s, 0);",
				upper, v.Name, pinned))
			continue
		}
		args = append(args, v.Name)
	}
	return prologue, args, epilogue
}

func externalCallArgs(args []string) string {
	out := ""
	for _, a := range args {
		out += ", " + a
	}
	return out
}

// externalCParams renders the trailing external parameters of the C++ user
// function.
func externalCParams(op ir.Operation, catalog userlib.Catalog) string {
	out := ""
	for _, v := range op.ExternalVariables {
		ctype := catalog.CType(translation.PrimitiveCType(v.TypeName))
		out += fmt.Sprintf(", %s %s", ctype, v.Name)
	}
	return out
}

// javaNativeCall renders the wrapper method body delegating to the native
// counterpart: pass the runtime pointer first, then every external.
func javaNativeCall(method string, extra []string, returned bool) string {
	args := append([]string{runtimePtrName()}, extra...)
	call := fmt.Sprintf("%s(%s);", nativeName(method), strings.Join(args, ", "))
	if returned {
		return "return " + call
	}
	return call
}
