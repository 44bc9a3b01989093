package symbols

import (
	"fmt"

	"parlift/internal/errors"
)

type Kind int

const (
	KindRoot Kind = iota
	KindClass
	KindMethod
	KindVariable
	KindUserLibraryVariable
	KindLiteral
	KindExpression
	KindCreator
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindVariable:
		return "variable"
	case KindUserLibraryVariable:
		return "user-library-variable"
	case KindLiteral:
		return "literal"
	case KindExpression:
		return "expression"
	case KindCreator:
		return "creator"
	}
	return "unknown"
}

type LiteralKind int

const (
	LiteralBoolean LiteralKind = iota
	LiteralChar
	LiteralInt
	LiteralFloat
	LiteralString
)

func (k LiteralKind) TypeName() string {
	switch k {
	case LiteralBoolean:
		return "boolean"
	case LiteralChar:
		return "char"
	case LiteralInt:
		return "int"
	case LiteralFloat:
		return "float"
	case LiteralString:
		return "String"
	}
	return ""
}

// Handle is an index into the table's arena. Parent and child links are
// handles, never pointers, so the scope tree has no cycles to chase.
type Handle int32

const InvalidHandle Handle = -1

// Symbol is a tagged variant: the Kind selects which of the optional field
// groups carry meaning.
type Symbol struct {
	Kind       Kind
	Name       string
	Identifier int
	Parent     Handle
	Address    TokenAddress

	// KindClass
	BodyAddress TokenAddress

	// KindMethod
	Signature string

	// KindVariable / KindUserLibraryVariable
	TypeName         string
	TypeParameters   []string
	Modifier         string
	StatementAddress TokenAddress

	// KindLiteral
	LiteralKind LiteralKind
	Value       string

	// KindCreator
	AttributedObjectName string
	Arguments            []Handle

	children map[string][]Handle
	order    []Handle
}

// Table owns every symbol of one source file. The arena is append-only and
// becomes immutable once Seal is called at the end of the first pass.
type Table struct {
	arena  []Symbol
	sealed bool
}

func NewTable() *Table {
	t := &Table{}
	t.arena = append(t.arena, Symbol{
		Kind:     KindRoot,
		Name:     "",
		Parent:   InvalidHandle,
		children: make(map[string][]Handle),
	})
	return t
}

func (t *Table) Root() Handle {
	return 0
}

func (t *Table) Get(h Handle) *Symbol {
	if h < 0 || int(h) >= len(t.arena) {
		return nil
	}
	return &t.arena[h]
}

// Seal freezes the table. Declarations after sealing indicate a pass-ordering
// bug and fail loudly.
func (t *Table) Seal() {
	t.sealed = true
}

// Declare adds sym under parent. It fails with DuplicateInScope only when a
// symbol with the same name, kind and identifier already exists in parent.
func (t *Table) Declare(parent Handle, sym Symbol) (Handle, error) {
	if t.sealed {
		return InvalidHandle, errors.New(errors.KindInternal, "declare on sealed symbol table")
	}
	p := t.Get(parent)
	if p == nil {
		return InvalidHandle, errors.Newf(errors.KindInternal, "declare under invalid scope handle %d", parent)
	}
	for _, h := range p.children[sym.Name] {
		existing := t.Get(h)
		if existing.Kind == sym.Kind && existing.Identifier == sym.Identifier {
			return InvalidHandle, errors.Newf(errors.KindDuplicateInScope,
				"symbol %q (%s, id %d) already declared in scope %q",
				sym.Name, sym.Kind, sym.Identifier, p.Name)
		}
	}
	sym.Parent = parent
	sym.children = make(map[string][]Handle)
	h := Handle(len(t.arena))
	t.arena = append(t.arena, sym)
	p = t.Get(parent)
	p.children[sym.Name] = append(p.children[sym.Name], h)
	p.order = append(p.order, h)
	return h, nil
}

// kindMatches treats user-library variables as variables for lookup purposes.
func kindMatches(want, got Kind) bool {
	if want == got {
		return true
	}
	return want == KindVariable && got == KindUserLibraryVariable
}

// LookupInScope returns the matching children of scope in declaration order.
func (t *Table) LookupInScope(scope Handle, name string, kind Kind) []Handle {
	s := t.Get(scope)
	if s == nil {
		return nil
	}
	var out []Handle
	for _, h := range s.children[name] {
		if kindMatches(kind, t.Get(h).Kind) {
			out = append(out, h)
		}
	}
	return out
}

// LookupUpward walks enclosing scopes until a binding for name is found and
// returns the lexically nearest one.
func (t *Table) LookupUpward(scope Handle, name string, kind Kind) (Handle, bool) {
	for s := scope; s != InvalidHandle; s = t.Get(s).Parent {
		if matches := t.LookupInScope(s, name, kind); len(matches) > 0 {
			return matches[len(matches)-1], true
		}
	}
	return InvalidHandle, false
}

// Collect enumerates symbols of the given kind under scope in pre-order.
func (t *Table) Collect(scope Handle, kind Kind, recursive bool) []Handle {
	s := t.Get(scope)
	if s == nil {
		return nil
	}
	var out []Handle
	for _, h := range s.order {
		if kindMatches(kind, t.Get(h).Kind) {
			out = append(out, h)
		}
		if recursive {
			out = append(out, t.Collect(h, kind, true)...)
		}
	}
	return out
}

// EnclosingClass walks upward to the nearest class symbol, if any.
func (t *Table) EnclosingClass(scope Handle) (Handle, bool) {
	for s := scope; s != InvalidHandle; s = t.Get(s).Parent {
		if t.Get(s).Kind == KindClass {
			return s, true
		}
	}
	return InvalidHandle, false
}

func (t *Table) String() string {
	return fmt.Sprintf("symbol table (%d symbols, sealed=%v)", len(t.arena), t.sealed)
}
