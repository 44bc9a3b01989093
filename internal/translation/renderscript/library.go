package renderscript

import (
	"parlift/internal/errors"
	"parlift/internal/ir"
	"parlift/internal/translation"
)

func unsupportedMethod(mc ir.MethodCall, className string) error {
	return errors.Newf(errors.KindUnsupportedMethod,
		"method %q of %s is not supported by back-end %s",
		mc.MethodName, className, translation.TargetRenderScript)
}

// internalLibraryFiles are the runtime helpers exported once per
// destination: the shared script with common vector conversions.
func internalLibraryFiles(packageName string) map[string]string {
	common := translation.HeaderComment() +
		"#pragma version(1)\n" +
		"#pragma rs java_package_name(" + packageName + ")\n" +
		"\n" +
		"float3 __attribute__((kernel)) PM_clamp3(float3 PM_in, uint32_t x, uint32_t y) {\n" +
		"\treturn clamp(PM_in, 0.0f, 255.0f);\n" +
		"}\n" +
		"\n" +
		"float4 __attribute__((kernel)) PM_clamp4(float4 PM_in, uint32_t x, uint32_t y) {\n" +
		"\treturn clamp(PM_in, 0.0f, 255.0f);\n" +
		"}\n"
	return map[string]string{
		"rs/Common.rs": common,
	}
}
