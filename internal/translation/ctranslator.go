package translation

import (
	"regexp"
	"strings"
)

// CTranslator lowers a host-language source fragment inside a user function
// to the kernel C dialect. It is a pure function of its input.
type CTranslator interface {
	Translate(code string) string
}

// JavaCTranslator is the default expression lowering. It handles the small
// surface that survives inside user-function bodies: boxed casts, Math
// intrinsics and final modifiers. Anything it does not know passes through
// untouched.
type JavaCTranslator struct{}

var (
	mathCallPattern  = regexp.MustCompile(`\bMath\.(\w+)\(`)
	finalPattern     = regexp.MustCompile(`\bfinal\s+`)
	floatCastPattern = regexp.MustCompile(`\(\s*Float\s*\)`)
	intCastPattern   = regexp.MustCompile(`\(\s*Integer\s*\)`)
)

func (JavaCTranslator) Translate(code string) string {
	out := finalPattern.ReplaceAllString(code, "")
	out = mathCallPattern.ReplaceAllString(out, "$1(")
	out = floatCastPattern.ReplaceAllString(out, "(float)")
	out = intCastPattern.ReplaceAllString(out, "(int)")
	out = strings.ReplaceAll(out, "Math.PI", "M_PI")
	return out
}
