package translation

var primitiveCTypes = map[string]string{
	"boolean": "bool",
	"byte":    "char",
	"char":    "char",
	"double":  "double",
	"float":   "float",
	"int":     "int",
	"long":    "long",
	"short":   "short",
}

var boxedCTypes = map[string]string{
	"Boolean":   "bool",
	"Character": "char",
	"Double":    "double",
	"Float":     "float",
	"Integer":   "int",
	"Long":      "long",
	"Short":     "short",
}

func IsPrimitive(typeName string) bool {
	_, ok := primitiveCTypes[typeName]
	return ok
}

func PrimitiveCType(typeName string) string {
	if c, ok := primitiveCTypes[typeName]; ok {
		return c
	}
	return typeName
}

func IsBoxed(typeName string) bool {
	_, ok := boxedCTypes[typeName]
	return ok
}

func BoxedCType(typeName string) string {
	if c, ok := boxedCTypes[typeName]; ok {
		return c
	}
	return typeName
}
