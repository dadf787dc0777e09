package embed

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
)

// gpuRuntimeLibs lists GPU runtime libraries to probe per platform. Any
// one loading successfully is enough to consider GPU acceleration present.
var gpuRuntimeLibs = map[string][]string{
	"darwin": {
		"/System/Library/Frameworks/Metal.framework/Metal",
	},
	"linux": {
		"libcuda.so.1",
		"libcuda.so",
		"librocm_smi64.so",
	},
}

// ProbeGPURuntime checks whether a GPU runtime library can be dlopen'd on
// this machine. It proves the runtime exists, not that the sidecar is
// running; the sidecar health check covers that separately.
func ProbeGPURuntime() error {
	libs, ok := gpuRuntimeLibs[runtime.GOOS]
	if !ok {
		return fmt.Errorf("no GPU runtime probe for %s", runtime.GOOS)
	}

	var lastErr error
	for _, lib := range libs {
		handle, err := purego.Dlopen(lib, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			_ = purego.Dlclose(handle)
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("no GPU runtime library loadable: %w", lastErr)
}
