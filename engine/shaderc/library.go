//go:build linux || darwin || freebsd

package shaderc

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// library holds the bound shaderc entry points.
type library struct {
	compilerInitialize func() uintptr
	compilerRelease    func(compiler uintptr)

	optionsInitialize    func() uintptr
	optionsRelease       func(options uintptr)
	setOptimizationLevel func(options uintptr, level int32)
	setGenerateDebugInfo func(options uintptr)
	setTargetEnv         func(options uintptr, env int32, version uint32)
	setIncludeCallbacks  func(options, resolver, releaser, userData uintptr)

	compileIntoSPV func(compiler uintptr, source string, size uintptr, kind int32, inputFileName, entryPoint string, options uintptr) uintptr

	resultGetLength            func(result uintptr) uintptr
	resultGetBytes             func(result uintptr) unsafe.Pointer
	resultGetErrorMessage      func(result uintptr) string
	resultGetCompilationStatus func(result uintptr) int32
	resultRelease              func(result uintptr)
}

var (
	librariesMu sync.Mutex
	libraries   = map[string]*library{}
)

func defaultNames() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"libshaderc_shared.dylib", "libshaderc_shared.1.dylib", "/usr/local/lib/libshaderc_shared.dylib", "/opt/homebrew/lib/libshaderc_shared.dylib"}
	default:
		return []string{"libshaderc_shared.so.1", "libshaderc_shared.so"}
	}
}

// openLibrary loads and binds a library once per path. Libraries are
// never closed; bound function pointers outlive every compiler.
func openLibrary(path string) (*library, error) {
	librariesMu.Lock()
	defer librariesMu.Unlock()

	if l, ok := libraries[path]; ok {
		return l, nil
	}

	names := defaultNames()
	if path != "" {
		names = []string{path}
	}

	var (
		handle uintptr
		err    error
	)
	for _, name := range names {
		handle, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	l := &library{}
	bindings := []struct {
		fn   any
		name string
	}{
		{&l.compilerInitialize, "shaderc_compiler_initialize"},
		{&l.compilerRelease, "shaderc_compiler_release"},
		{&l.optionsInitialize, "shaderc_compile_options_initialize"},
		{&l.optionsRelease, "shaderc_compile_options_release"},
		{&l.setOptimizationLevel, "shaderc_compile_options_set_optimization_level"},
		{&l.setGenerateDebugInfo, "shaderc_compile_options_set_generate_debug_info"},
		{&l.setTargetEnv, "shaderc_compile_options_set_target_env"},
		{&l.setIncludeCallbacks, "shaderc_compile_options_set_include_callbacks"},
		{&l.compileIntoSPV, "shaderc_compile_into_spv"},
		{&l.resultGetLength, "shaderc_result_get_length"},
		{&l.resultGetBytes, "shaderc_result_get_bytes"},
		{&l.resultGetErrorMessage, "shaderc_result_get_error_message"},
		{&l.resultGetCompilationStatus, "shaderc_result_get_compilation_status"},
		{&l.resultRelease, "shaderc_result_release"},
	}
	for _, b := range bindings {
		if _, err := purego.Dlsym(handle, b.name); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.name, err)
		}
		purego.RegisterLibFunc(b.fn, handle, b.name)
	}

	libraries[path] = l
	return l, nil
}

// Available reports whether the library can be loaded.
func (e *Engine) Available() error {
	_, err := openLibrary(e.Library)
	return err
}
