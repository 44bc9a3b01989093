package renderscript

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

func reduceOp(execution ir.ExecutionType) ir.Operation {
	return ir.Operation{
		Variable:      ir.Variable{Name: "numbers", TypeName: "Array", TypeParameter: "Int32"},
		Kind:          ir.OperationReduce,
		SequenceIndex: 2,
		UserFunction: ir.UserFunction{
			Code:           "{\n\treturn a.value + b.value;\n}",
			Argument:       ir.Variable{Name: "a", TypeName: "Int32", Modifier: "final"},
			ExtraArguments: []ir.Variable{{Name: "b", TypeName: "Int32", Modifier: "final"}},
		},
		Execution: execution,
	}
}

func TestForeachParallelKernel(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Tint", foreachOp(ir.ExecutionParallel, "final"))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	// External as script global, user function, driver kernel.
	assert.Contains(t, joined, "float k;")
	assert.Contains(t, joined, "static float3 function1(float3 PM_in, uint32_t x, uint32_t y, float k)")
	assert.Contains(t, joined, "PM_in.s0 = PM_in.s0 * k;")
	assert.Contains(t, joined, "float3 __attribute__((kernel)) foreach1(float3 PM_in, uint32_t x, uint32_t y)")
	assert.Contains(t, joined, "return function1(PM_in, x, y, k);")
}

func TestForeachSequentialKernelWritesBack(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Tint", foreachOp(ir.ExecutionSequential, ""))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "rs_allocation foreach1_k;")
	assert.Contains(t, joined, "void foreach1()")
	assert.Contains(t, joined, "float k = rsGetElementAt_float(foreach1_k, 0);")
	assert.Contains(t, joined, "rsSetElementAt_float(foreach1_k, k, 0);")
}

func TestReduceParallelIsTwoStage(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Sum", reduceOp(ir.ExecutionParallel))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.Contains(t, joined, "static int function2(int PM_in1, int PM_in2)")
	assert.Contains(t, joined, "return PM_in1 + PM_in2;")
	assert.Contains(t, joined, "int __attribute__((kernel)) reduce2_tile(uint32_t x)")
	assert.Contains(t, joined, "void reduce2()")
	// Final stage combines tile outputs left-to-right with acc first.
	assert.Contains(t, joined, "PM_acc = function2(PM_acc, rsGetElementAt_int(reduce2_tiles, PM_i));")
}

func TestReduceSequentialIsSingleStage(t *testing.T) {
	b := newBackend()
	fns, err := translation.TranslateOperation(b, "com.example", "Sum", reduceOp(ir.ExecutionSequential))
	require.NoError(t, err)

	joined := strings.Join(fns, "\n\n")
	assert.NotContains(t, joined, "reduce2_tile(")
	assert.Contains(t, joined, "void reduce2()")
}

func TestFilterEmitsTileAndCompaction(t *testing.T) {
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
	assert.Contains(t, joined, "return PM_in > 0.5f;")
	assert.Contains(t, joined, "int __attribute__((kernel)) filter3_tile(uint32_t x)")
	assert.Contains(t, joined, "void filter3()")
	// Compaction preserves input order through a running output cursor.
	assert.Contains(t, joined, "PM_next++")
}

func TestKernelFileContentsPreambleAndOrder(t *testing.T) {
	b := newBackend()
	ops := ir.OperationsAndBinds{
		InputBinds: []ir.InputBind{{
			Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
			SequenceIndex: 1,
			Arguments:     []ir.Parameter{ir.Variable{Name: "bitmap", TypeName: "Bitmap"}},
		}},
		Operations: []ir.Operation{foreachOp(ir.ExecutionParallel, "final")},
		OutputBinds: []ir.OutputBind{{
			Variable:    ir.Variable{Name: "image", TypeName: "BitmapImage"},
			Destination: ir.Variable{Name: "result", TypeName: "Bitmap"},
		}},
	}

	contents, err := translation.KernelFileContents(b, "com.example.effects", "Tint", ops, nil)
	require.NoError(t, err)

	assert.Contains(t, contents, "#pragma version(1)")
	assert.Contains(t, contents, "#pragma rs java_package_name(com.example.effects)")
	assert.Contains(t, contents, "toFloatBitmapImage(uchar4 PM_in")
	assert.Contains(t, contents, "toBitmapBitmapImage(float3 PM_in")
	assert.Contains(t, contents, "PM_out.a = 255;")
	// Input conversion precedes the operation, which precedes the output
	// conversion.
	in := strings.Index(contents, "toFloatBitmapImage")
	op := strings.Index(contents, "foreach1")
	out := strings.Index(contents, "toBitmapBitmapImage")
	assert.Less(t, in, op)
	assert.Less(t, op, out)
}

func TestMethodCallTranslation(t *testing.T) {
	b := newBackend()
	tr, err := b.TranslatorFor("BitmapImage")
	require.NoError(t, err)

	width, err := tr.MethodCall(ir.MethodCall{Variable: ir.Variable{Name: "image", TypeName: "BitmapImage"}, MethodName: "getWidth"})
	require.NoError(t, err)
	assert.Equal(t, "return $imageIn.getType().getX();", width)

	height, err := tr.MethodCall(ir.MethodCall{Variable: ir.Variable{Name: "image", TypeName: "BitmapImage"}, MethodName: "getHeight"})
	require.NoError(t, err)
	assert.Equal(t, "return $imageIn.getType().getY();", height)
}

func TestUnsupportedMethodFails(t *testing.T) {
	b := newBackend()
	tr, err := b.TranslatorFor("Array")
	require.NoError(t, err)

	_, err = tr.MethodCall(ir.MethodCall{Variable: ir.Variable{Name: "numbers", TypeName: "Array"}, MethodName: "getWidth"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedMethod))
	assert.Contains(t, err.Error(), "RenderScript")
}

func TestUnknownTypeHasNoTranslator(t *testing.T) {
	b := newBackend()
	_, err := b.TranslatorFor("Pixel")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedMethod))
}

func TestWrapperImplementationBodies(t *testing.T) {
	b := newBackend()
	catalog := userlib.NewCatalog()
	ops := ir.OperationsAndBinds{
		InputBinds: []ir.InputBind{{
			Variable:      ir.Variable{Name: "image", TypeName: "BitmapImage"},
			SequenceIndex: 1,
			Arguments:     []ir.Parameter{ir.Variable{Name: "bitmap", TypeName: "Bitmap"}},
		}},
		Operations: []ir.Operation{foreachOp(ir.ExecutionParallel, "final")},
	}

	impl, err := translation.WrapperImplementation(b, "com.example", "Tint", ops, nil, catalog)
	require.NoError(t, err)

	assert.Contains(t, impl, "public class TintWrapperRS implements TintWrapper {")
	assert.Contains(t, impl, "private Allocation $imageIn;")
	assert.Contains(t, impl, "private ScriptC_Tint $kernel;")
	assert.Contains(t, impl, "Allocation.createFromBitmap(PM_mRS, bitmap")
	assert.Contains(t, impl, "$kernel.forEach_toFloatBitmapImage($imageIn, $imageOut);")
	assert.Contains(t, impl, "$kernel.set_k(k);")
	assert.Contains(t, impl, "$kernel.forEach_foreach1($imageOut, $imageOut);")
	assert.Contains(t, impl, "return true;")
}
