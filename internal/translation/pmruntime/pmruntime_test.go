package pmruntime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/translation"
	"parlift/internal/userlib"
)

func newBackend() *translation.Backend {
	return New(translation.JavaCTranslator{}, userlib.NewCatalog())
}

func foreachOp(execution ir.ExecutionType, modifier string) ir.Operation {
	return ir.Operation{
		Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
		Kind:          ir.OperationForeach,
		SequenceIndex: 1,
		UserFunction: ir.UserFunction{
			Code:     "{\n\tpixel.rgba.red = pixel.rgba.red * k;\n}",
			Argument: ir.Variable{Name: "pixel", TypeName: "Pixel", Modifier: "final"},
		},
		ExternalVariables: []ir.Variable{{Name: "k", TypeName: "float", Modifier: modifier}},
		Execution:         execution,
	}
}

func TestForeachParallelDriver(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example.effects", "Tint", foreachOp(ir.ExecutionParallel, "final"))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "static float3 function1(float3 PM_in, uint32_t x, uint32_t y, float k)")
	assert.Contains(t, joined, "PM_in.s0 = PM_in.s0 * k;")
	assert.Contains(t, joined, "Java_com_example_effects_TintWrapperPM_nativeForeach1")
	assert.Contains(t, joined, "jlong PM_runtimePtr, jfloat k")
	assert.Contains(t, joined, "PM_runtime->parallelFor(PM_buf.height()")
}

func TestForeachSequentialPinsNonFinals(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example.effects", "Tint", foreachOp(ir.ExecutionSequential, ""))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "jfloatArray k")
	assert.Contains(t, joined, "PM_env->GetFloatArrayElements(k, nullptr);")
	assert.Contains(t, joined, "PM_env->ReleaseFloatArrayElements(k, PM_k, 0);")
	assert.Contains(t, joined, "PM_k[0]")
	assert.NotContains(t, joined, "parallelFor")
}

func TestArrayReduceStoresResult(t *testing.T) {
	op := ir.Operation{
		Variable:      ir.Variable{Name: "numbers", TypeName: "Array", TypeParameter: "Int32"},
		Kind:          ir.OperationReduce,
		SequenceIndex: 2,
		UserFunction: ir.UserFunction{
			Code:           "{\n\treturn a.value + b.value;\n}",
			Argument:       ir.Variable{Name: "a", TypeName: "Int32", Modifier: "final"},
			ExtraArguments: []ir.Variable{{Name: "b", TypeName: "Int32", Modifier: "final"}},
		},
		Execution: ir.ExecutionParallel,
	}
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Sum", op)
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "static int function2(int PM_in1, int PM_in2)")
	assert.Contains(t, joined, "Runtime::tileSize")
	assert.Contains(t, joined, "PM_acc = function2(PM_acc, PM_tiles[PM_i]);")
	assert.Contains(t, joined, "PM_runtime->storeResult(\"numbers\", PM_acc);")
}

func TestArrayFilterReplacesBuffer(t *testing.T) {
	op := ir.Operation{
		Variable:      ir.Variable{Name: "values", TypeName: "Array", TypeParameter: "Float32"},
		Kind:          ir.OperationFilter,
		SequenceIndex: 3,
		UserFunction: ir.UserFunction{
			Code:     "{\n\treturn x.value > 0.5f;\n}",
			Argument: ir.Variable{Name: "x", TypeName: "Float32", Modifier: "final"},
		},
		Execution: ir.ExecutionParallel,
	}
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Keep", op)
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "static bool function3(float PM_in, uint32_t x)")
	assert.Contains(t, joined, "PM_kept.push_back(PM_buf[x]);")
	assert.Contains(t, joined, "PM_runtime->replaceArray<float>(\"values\", PM_kept);")
}

func TestBitmapBindKernels(t *testing.T) {
	b := newBackend()
	tr, err := b.TranslatorFor("BitmapImage")
	require.NoError(t, err)

	bind := ir.InputBind{
		Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
		SequenceIndex: 1,
		Arguments:     []ir.Parameter{ir.Variable{Name: "bitmap", TypeName: "Bitmap"}},
	}
	in := tr.InputBindKernel("com.example", "Tint", bind)
	assert.Contains(t, in, "Java_com_example_TintWrapperPM_nativeInputBindImage1")
	assert.Contains(t, in, "AndroidBitmap_lockPixels")
	assert.Contains(t, in, "PM_val.s2 = (float) PM_px[2];")
	// Bitmap input drops alpha.
	assert.NotContains(t, in, "PM_val.s3")

	out := tr.OutputBindKernel("com.example", "Tint", ir.OutputBind{
		Variable:    ir.Variable{Name: "image", TypeName: "BitmapImage"},
		Destination: ir.Variable{Name: "result", TypeName: "Bitmap"},
	})
	assert.Contains(t, out, "PM_px[3] = 255;")
}

func TestWrapperImplementationDelegatesToNatives(t *testing.T) {
	b := newBackend()
	catalog := userlib.NewCatalog()
	op := foreachOp(ir.ExecutionSequential, "")
	op.ExternalVariables[0].Modifier = ""
	ops := ir.OperationsAndBinds{
		InputBinds: []ir.InputBind{{
			Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
			SequenceIndex: 1,
			Arguments:     []ir.Parameter{ir.Variable{Name: "bitmap", TypeName: "Bitmap"}},
		}},
		Operations: []ir.Operation{op},
	}
	calls := []ir.MethodCall{{Variable: ir.Variable{Name: "image", TypeName: "BitmapImage"}, MethodName: "getWidth"}}

	impl, err := translation.WrapperImplementation(b, "com.example", "Tint", ops, calls, catalog)
	require.NoError(t, err)

	assert.Contains(t, impl, "public class TintWrapperPM implements TintWrapper {")
	assert.Contains(t, impl, "System.loadLibrary(\"ParallelMEGenerated\");")
	assert.Contains(t, impl, "private native long nativeInit();")
	assert.Contains(t, impl, "private native void nativeInputBindImage1(long PM_runtimePtr, Bitmap bitmap);")
	assert.Contains(t, impl, "private native void nativeForeach1(long PM_runtimePtr, float[] k);")
	assert.Contains(t, impl, "private native int nativeGetWidthImage(long PM_runtimePtr);")
	assert.Contains(t, impl, "nativeInputBindImage1($runtimePtr, bitmap);")
	assert.Contains(t, impl, "nativeForeach1($runtimePtr, k);")
	assert.Contains(t, impl, "return nativeGetWidthImage($runtimePtr);")
	assert.Contains(t, impl, "return this.$runtimePtr != 0;")
}

func TestUnsupportedMethodFails(t *testing.T) {
	b := newBackend()
	tr, err := b.TranslatorFor("Array")
	require.NoError(t, err)

	_, err = tr.MethodCall(ir.MethodCall{Variable: ir.Variable{Name: "numbers", TypeName: "Array"}, MethodName: "getWidth"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedMethod))
	assert.Contains(t, err.Error(), "ParallelME")
}

func TestCClassFileName(t *testing.T) {
	assert.Equal(t, "com_example_effects_TintWrapperPM.cpp", CClassFileName("com.example.effects", "Tint"))
}
