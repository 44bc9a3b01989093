package userlib

// OperationKind classifies what a user-library method call means to the
// compiler.
type OperationKind int

const (
	OperationNone OperationKind = iota
	OperationForeach
	OperationMap
	OperationReduce
	OperationFilter
	OperationOutputBind
	OperationMethodCall
)

func (k OperationKind) String() string {
	switch k {
	case OperationForeach:
		return "foreach"
	case OperationMap:
		return "map"
	case OperationReduce:
		return "reduce"
	case OperationFilter:
		return "filter"
	case OperationOutputBind:
		return "output-bind"
	case OperationMethodCall:
		return "method-call"
	}
	return "none"
}

// Class describes one user-library class the compiler recognizes.
type Class struct {
	Name        string
	Typed       bool   // parametric over an element type
	Collection  bool   // backed by a runtime allocation
	ElementType string // element type for untyped collections (images)
	CType       string // kernel C dialect type, "" when not mappable
	Methods     map[string]OperationKind
	// MethodReturns maps method-call methods to their Java return type.
	MethodReturns map[string]string
}

// Catalog is the immutable registry of user-library classes. It is built once
// at startup and injected through the pipeline; nothing mutates it afterwards.
type Catalog struct {
	classes map[string]Class
}

var operationMethods = map[string]OperationKind{
	"foreach": OperationForeach,
	"map":     OperationMap,
	"reduce":  OperationReduce,
	"filter":  OperationFilter,
}

func collectionMethods(outputBindMethod string) map[string]OperationKind {
	methods := make(map[string]OperationKind, len(operationMethods)+3)
	for name, kind := range operationMethods {
		methods[name] = kind
	}
	methods[outputBindMethod] = OperationOutputBind
	methods["getWidth"] = OperationMethodCall
	methods["getHeight"] = OperationMethodCall
	return methods
}

// NewCatalog builds the fixed registry of user-library classes.
func NewCatalog() Catalog {
	classes := map[string]Class{
		"BitmapImage": {
			Name:        "BitmapImage",
			Collection:  true,
			ElementType: "Pixel",
			CType:       "float3",
			Methods:     collectionMethods("toBitmap"),
			MethodReturns: map[string]string{
				"getWidth":  "int",
				"getHeight": "int",
			},
		},
		"HDRImage": {
			Name:        "HDRImage",
			Collection:  true,
			ElementType: "Pixel",
			CType:       "float4",
			Methods:     collectionMethods("toBitmap"),
			MethodReturns: map[string]string{
				"getWidth":  "int",
				"getHeight": "int",
			},
		},
		"Array": {
			Name:       "Array",
			Typed:      true,
			Collection: true,
			Methods: func() map[string]OperationKind {
				methods := make(map[string]OperationKind, len(operationMethods)+1)
				for name, kind := range operationMethods {
					methods[name] = kind
				}
				methods["toArray"] = OperationOutputBind
				return methods
			}(),
		},
		"Pixel": {
			Name:  "Pixel",
			CType: "float4",
		},
		"RGB": {
			Name:  "RGB",
			CType: "float3",
		},
		"Int16": {
			Name:  "Int16",
			CType: "short",
		},
		"Int32": {
			Name:  "Int32",
			CType: "int",
		},
		"Float32": {
			Name:  "Float32",
			CType: "float",
		},
	}
	return Catalog{classes: classes}
}

// Recognizes reports whether typeName names a user-library class.
func (c Catalog) Recognizes(typeName string) bool {
	_, ok := c.classes[typeName]
	return ok
}

// IsCollection reports whether typeName is a user-library collection class.
func (c Catalog) IsCollection(typeName string) bool {
	class, ok := c.classes[typeName]
	return ok && class.Collection
}

// IsTyped reports whether typeName is parametric over an element type.
func (c Catalog) IsTyped(typeName string) bool {
	class, ok := c.classes[typeName]
	return ok && class.Typed
}

// Class returns the registry entry for typeName.
func (c Catalog) Class(typeName string) (Class, bool) {
	class, ok := c.classes[typeName]
	return class, ok
}

// ValidMethod resolves a method on a user-library class to its operation
// kind. The second return is false for methods the class does not define.
func (c Catalog) ValidMethod(typeName, methodName string) (OperationKind, bool) {
	class, ok := c.classes[typeName]
	if !ok {
		return OperationNone, false
	}
	kind, ok := class.Methods[methodName]
	return kind, ok
}

// MethodReturnType returns the Java return type of a method-call method.
func (c Catalog) MethodReturnType(typeName, methodName string) string {
	class, ok := c.classes[typeName]
	if !ok {
		return "void"
	}
	if ret, ok := class.MethodReturns[methodName]; ok {
		return ret
	}
	return "void"
}

// CType maps a user-library type name to the kernel C dialect. Unknown names
// pass through untouched.
func (c Catalog) CType(typeName string) string {
	if class, ok := c.classes[typeName]; ok && class.CType != "" {
		return class.CType
	}
	return typeName
}

// ElementTypeName resolves the element type the user function of an
// operation over typeName receives: the fixed element for images, the type
// parameter for typed collections.
func (c Catalog) ElementTypeName(typeName, typeParameter string) string {
	class, ok := c.classes[typeName]
	if !ok {
		return typeParameter
	}
	if class.ElementType != "" {
		return class.ElementType
	}
	if class.Typed {
		return typeParameter
	}
	return typeName
}
