package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"parlift/internal/translation"
	"parlift/internal/translation/pmruntime"
	"parlift/internal/util"
)

// writeAndroidMK emits the build script enumerating the runtime bridge and
// every generated C++ translation unit, once per compilation.
func (c *Compiler) writeAndroidMK() error {
	files := []string{"ParallelMERuntime.cpp"}
	for _, class := range c.compiledClasses {
		files = append(files, pmruntime.CClassFileName(class.packageName, class.className))
	}

	var b strings.Builder
	b.WriteString(translation.MkHeaderComment())
	b.WriteString("\n")
	b.WriteString("LOCAL_PATH := $(call my-dir)\n")
	b.WriteString("include $(CLEAR_VARS)\n")
	b.WriteString("LOCAL_MODULE := libParallelMEGenerated\n")
	b.WriteString("LOCAL_ARM_MODE := arm\n")
	b.WriteString("LOCAL_C_INCLUDES := $(LOCAL_PATH)/../runtime/include\n")
	b.WriteString("LOCAL_CFLAGS := -O3 -Wall -Wextra -Werror -Wno-unused-parameter -Wno-extern-c-compat\n")
	b.WriteString("LOCAL_CPPFLAGS := -O3 -std=c++14 -fexceptions\n")
	b.WriteString("LOCAL_CPP_FEATURES += exceptions\n")
	b.WriteString("LOCAL_LDLIBS := -llog -ljnigraphics\n")
	b.WriteString("LOCAL_SHARED_LIBRARIES := libParallelMERuntime\n")
	fmt.Fprintf(&b, "LOCAL_SRC_FILES := %s\n", strings.Join(files, " \\\n\t"))
	b.WriteString("include $(BUILD_SHARED_LIBRARY)\n")

	dest := filepath.Join(c.cfg.Paths.Destination, "jni")
	return util.WriteGenerated("Android.mk", dest, b.String())
}
