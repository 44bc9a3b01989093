package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlift/internal/analyzer"
	"parlift/internal/symbols"
)

func parse(t *testing.T, source string) *analyzer.Source {
	t.Helper()
	src, err := analyzer.ParseSource("Test.java", []byte(source))
	require.NoError(t, err)
	t.Cleanup(src.Close)
	return src
}

func TestRenderWithoutEditsIsIdentity(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, source, out)
	assert.False(t, r.Dirty())
}

func TestReplacePreservesSurroundings(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	// Tokens: class A { int x = 1 ; }
	r := NewRewriter(src.Stream)
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 7}, "float y = 2f;")
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\tfloat y = 2f;\n}\n", out)
}

func TestInsertBeforeAndAfter(t *testing.T) {
	source := "class A {}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	r.InsertBefore(0, "import x.Y;\n")
	r.InsertAfter(2, "\n\tint f;")
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "import x.Y;\nclass A {\n\tint f;}\n", out)
}

func TestDeleteRange(t *testing.T) {
	source := "class A {\n\tint x = 1;\n\tint y = 2;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	r.Delete(symbols.TokenAddress{Start: 3, Stop: 7})
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\t\n\tint y = 2;\n}\n", out)
}

func TestStrictContainmentFoldsInnerEdit(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	r.Replace(symbols.TokenAddress{Start: 5, Stop: 6}, "inner")
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 7}, "outer;")
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\touter;\n}\n", out)
}

func TestEqualRangeReplaceThenDelete(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 7}, "call();")
	r.Delete(symbols.TokenAddress{Start: 3, Stop: 7})
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\tcall();\n}\n", out)
}

func TestEqualRangeDeleteThenReplace(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	// The later replace supersedes the delete regardless of edit order.
	r := NewRewriter(src.Stream)
	r.Delete(symbols.TokenAddress{Start: 3, Stop: 7})
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 7}, "call();")
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\tcall();\n}\n", out)
}

func TestPartialOverlapIsRejected(t *testing.T) {
	source := "class A {\n\tint x = 1;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 5}, "a")
	r.Replace(symbols.TokenAddress{Start: 4, Stop: 7}, "b")
	_, err := r.Render()
	require.Error(t, err)
}

func TestEditOrderingIsByPositionNotInsertion(t *testing.T) {
	source := "class A {\n\tint x = 1;\n\tint y = 2;\n}\n"
	src := parse(t, source)

	r := NewRewriter(src.Stream)
	// Later statement edited first; output order follows token positions.
	r.Replace(symbols.TokenAddress{Start: 8, Stop: 12}, "second();")
	r.Replace(symbols.TokenAddress{Start: 3, Stop: 7}, "first();")
	out, err := r.Render()
	require.NoError(t, err)
	assert.Equal(t, "class A {\n\tfirst();\n\tsecond();\n}\n", out)
}
