package capability

import "strings"

// estimateGPUMemoryMB maps the maximum supported texture size to a VRAM
// estimate. Coarse on purpose; refined by renderer-string matching when
// the host exposes one.
func estimateGPUMemoryMB(maxTextureSize int) int {
	switch {
	case maxTextureSize >= 16384:
		return 4096
	case maxTextureSize >= 8192:
		return 2048
	case maxTextureSize >= 4096:
		return 1024
	case maxTextureSize >= 2048:
		return 512
	default:
		return 256
	}
}

type gpuFamily struct {
	pattern  string
	memoryMB int
}

// Known GPU families, matched against the lowercased vendor/renderer
// string. First match wins; ordered from more to less capable.
var gpuFamilies = []gpuFamily{
	{"geforce rtx", 8192},
	{"radeon rx", 8192},
	{"geforce gtx", 4096},
	{"apple m", 8192},
	{"apple a17", 6144},
	{"apple a15", 4096},
	{"apple a12", 4096},
	{"adreno 7", 4096},
	{"adreno 6", 2048},
	{"adreno 5", 1024},
	{"mali-g7", 2048},
	{"mali-g5", 1024},
	{"mali-t", 512},
	{"intel iris", 2048},
	{"intel uhd", 1024},
	{"intel hd", 512},
	{"powervr", 512},
}

func refineGPUMemoryMB(vendor, renderer string) (int, bool) {
	id := strings.ToLower(vendor + " " + renderer)
	if strings.TrimSpace(id) == "" {
		return 0, false
	}

	for _, family := range gpuFamilies {
		if strings.Contains(id, family.pattern) {
			return family.memoryMB, true
		}
	}

	return 0, false
}
