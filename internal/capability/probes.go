package capability

import (
	"os"

	"codeberg.org/mutker/animctl/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMB = 1024 * 1024

// HostMemoryProbe reads host and process memory via gopsutil.
type HostMemoryProbe struct{}

func (HostMemoryProbe) Memory() (MemoryInfo, error) {
	errFactory := errors.New()

	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, errFactory.Wrap(errors.ErrProbeFailed, err)
	}

	info := MemoryInfo{
		TotalMB:     float64(vm.Total) / bytesPerMB,
		AvailableMB: float64(vm.Available) / bytesPerMB,
	}

	// Process RSS is best-effort; the host figures alone are still useful.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			info.ProcessMB = float64(mi.RSS) / bytesPerMB
		}
	}

	return info, nil
}

// SensorThermalProbe classifies host temperature sensors into a thermal
// pressure state.
type SensorThermalProbe struct {
	// Celsius cutoffs for fair, serious and critical pressure.
	FairAt     float64
	SeriousAt  float64
	CriticalAt float64
}

func DefaultSensorThermalProbe() SensorThermalProbe {
	return SensorThermalProbe{
		FairAt:     70,
		SeriousAt:  85,
		CriticalAt: 95,
	}
}

func (p SensorThermalProbe) Thermal() (ThermalState, error) {
	errFactory := errors.New()

	sensors, err := host.SensorsTemperatures()
	if err != nil || len(sensors) == 0 {
		return ThermalUnknown, errFactory.Wrap(errors.ErrProbeFailed, err)
	}

	var hottest float64
	for _, s := range sensors {
		if s.Temperature > hottest {
			hottest = s.Temperature
		}
	}

	switch {
	case hottest >= p.CriticalAt:
		return ThermalCritical, nil
	case hottest >= p.SeriousAt:
		return ThermalSerious, nil
	case hottest >= p.FairAt:
		return ThermalFair, nil
	default:
		return ThermalNominal, nil
	}
}

// StaticProbe satisfies every probe interface with fixed values. Hosts
// that receive their signals as events (browser bridges, test harnesses)
// update it in place.
type StaticProbe struct {
	GPUInfo     GPUInfo
	MemoryInfo  MemoryInfo
	BatteryInfo *BatteryInfo
	NetworkInfo NetworkInfo
	State       ThermalState
	View        Viewport
	Touch       bool
}

func (s *StaticProbe) GPU() (GPUInfo, error)       { return s.GPUInfo, nil }
func (s *StaticProbe) Memory() (MemoryInfo, error) { return s.MemoryInfo, nil }

func (s *StaticProbe) Battery() (BatteryInfo, error) {
	if s.BatteryInfo == nil {
		return BatteryInfo{}, errors.New().New(errors.ErrProbeFailed)
	}
	return *s.BatteryInfo, nil
}

func (s *StaticProbe) Network() (NetworkInfo, error)  { return s.NetworkInfo, nil }
func (s *StaticProbe) Thermal() (ThermalState, error) { return s.State, nil }
func (s *StaticProbe) Viewport() (Viewport, error)    { return s.View, nil }
func (s *StaticProbe) TouchSupported() (bool, error)  { return s.Touch, nil }
