package capability

import (
	"fmt"

	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLProbe reads the real GPU name and VRAM via NVML when an NVIDIA
// device is present. Initialization failure is expected on most hosts
// and degrades to the texture-size estimate.
type NVMLProbe struct {
	device nvml.Device
}

func NewNVMLProbe() (*NVMLProbe, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errFactory.WithData(errors.ErrProbeFailed, nvml.ErrorString(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		_ = nvml.Shutdown()
		return nil, errFactory.WithData(errors.ErrProbeFailed, nvml.ErrorString(ret))
	}

	return &NVMLProbe{device: device}, nil
}

func (p *NVMLProbe) GPU() (GPUInfo, error) {
	errFactory := errors.New()

	info := GPUInfo{
		Vendor: "nvidia",
		// NVML-class hardware supports large textures across the board.
		MaxTextureSize: 16384,
	}

	name, ret := p.device.GetName()
	if ret != nvml.SUCCESS {
		return GPUInfo{}, errFactory.WithData(errors.ErrProbeFailed, nvml.ErrorString(ret))
	}
	info.Renderer = name

	memory, ret := p.device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return GPUInfo{}, errFactory.WithData(errors.ErrProbeFailed, nvml.ErrorString(ret))
	}
	info.MemoryMB = int(memory.Total / bytesPerMB)

	logger.Debug().Msg(fmt.Sprintf("Detected GPU: %s (%d MB)", info.Renderer, info.MemoryMB))

	return info, nil
}

func (p *NVMLProbe) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().WithData(errors.ErrShutdownFailed, nvml.ErrorString(ret))
	}
	return nil
}
