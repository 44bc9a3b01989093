package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parlift/internal/errors"
)

func TestDeclareAndLookup(t *testing.T) {
	table := NewTable()

	class, err := table.Declare(table.Root(), Symbol{Kind: KindClass, Name: "Demo"})
	require.NoError(t, err)

	method, err := table.Declare(class, Symbol{Kind: KindMethod, Name: "run"})
	require.NoError(t, err)

	_, err = table.Declare(class, Symbol{Kind: KindVariable, Name: "image", TypeName: "BitmapImage"})
	require.NoError(t, err)

	_, err = table.Declare(method, Symbol{Kind: KindVariable, Name: "image", TypeName: "HDRImage", Identifier: 1})
	require.NoError(t, err)

	// Nearest binding wins from the method scope.
	h, ok := table.LookupUpward(method, "image", KindVariable)
	require.True(t, ok)
	assert.Equal(t, "HDRImage", table.Get(h).TypeName)

	// From the class scope only the field is visible.
	h, ok = table.LookupUpward(class, "image", KindVariable)
	require.True(t, ok)
	assert.Equal(t, "BitmapImage", table.Get(h).TypeName)
}

func TestDeclareDuplicate(t *testing.T) {
	table := NewTable()
	class, err := table.Declare(table.Root(), Symbol{Kind: KindClass, Name: "Demo"})
	require.NoError(t, err)

	_, err = table.Declare(class, Symbol{Kind: KindVariable, Name: "x"})
	require.NoError(t, err)

	// Same name, same kind, same identifier: rejected.
	_, err = table.Declare(class, Symbol{Kind: KindVariable, Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDuplicateInScope))

	// Same name with a different identifier coexists.
	_, err = table.Declare(class, Symbol{Kind: KindVariable, Name: "x", Identifier: 1})
	assert.NoError(t, err)

	// Same name with a different kind coexists.
	_, err = table.Declare(class, Symbol{Kind: KindMethod, Name: "x"})
	assert.NoError(t, err)
}

func TestUserLibraryVariableMatchesVariableLookup(t *testing.T) {
	table := NewTable()
	class, err := table.Declare(table.Root(), Symbol{Kind: KindClass, Name: "Demo"})
	require.NoError(t, err)

	_, err = table.Declare(class, Symbol{Kind: KindUserLibraryVariable, Name: "image", TypeName: "BitmapImage"})
	require.NoError(t, err)

	h, ok := table.LookupUpward(class, "image", KindVariable)
	require.True(t, ok)
	assert.Equal(t, KindUserLibraryVariable, table.Get(h).Kind)

	// The specific kind still matches too.
	hs := table.LookupInScope(class, "image", KindUserLibraryVariable)
	assert.Len(t, hs, 1)
}

func TestCollectPreOrder(t *testing.T) {
	table := NewTable()
	class, _ := table.Declare(table.Root(), Symbol{Kind: KindClass, Name: "Demo"})
	m1, _ := table.Declare(class, Symbol{Kind: KindMethod, Name: "a"})
	_, _ = table.Declare(m1, Symbol{Kind: KindVariable, Name: "inner"})
	_, _ = table.Declare(class, Symbol{Kind: KindVariable, Name: "field"})

	names := []string{}
	for _, h := range table.Collect(table.Root(), KindVariable, true) {
		names = append(names, table.Get(h).Name)
	}
	assert.Equal(t, []string{"inner", "field"}, names)

	// Non-recursive collection sees only direct children.
	assert.Empty(t, table.Collect(table.Root(), KindVariable, false))
}

func TestSealRejectsDeclarations(t *testing.T) {
	table := NewTable()
	table.Seal()
	_, err := table.Declare(table.Root(), Symbol{Kind: KindClass, Name: "Late"})
	require.Error(t, err)
}
