package device

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVML reads device counters through the NVIDIA management library.
// Device indices follow NVML enumeration, which is PCI bus order.
type NVML struct{}

func (NVML) Name() string {
	return "nvml"
}

func (p NVML) Snapshot() ([]Record, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, queryError(p.Name(), "failed to initialize nvml: %s", nvml.ErrorString(ret))
	}
	defer nvml.Shutdown()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, queryError(p.Name(), "failed to count devices: %s", nvml.ErrorString(ret))
	}
	if count == 0 {
		return nil, queryError(p.Name(), "no devices found")
	}

	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, queryError(p.Name(), "device %d: get handle: %s", i, nvml.ErrorString(ret))
		}

		record, err := readDevice(p.Name(), i, dev)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// nvmlDevice is the part of nvml.Device a snapshot reads.
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetComputeRunningProcesses() ([]nvml.ProcessInfo, nvml.Return)
	GetPerformanceState() (nvml.Pstates, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
}

func readDevice(provider string, index int, dev nvmlDevice) (Record, error) {
	record := Record{ID: index}

	name, ret := dev.GetName()
	if err := checkReturn(provider, index, "name", ret); err != nil {
		return Record{}, err
	}
	record.Name = name

	util, ret := dev.GetUtilizationRates()
	if err := checkReturn(provider, index, "utilization", ret); err != nil {
		return Record{}, err
	}
	if ret == nvml.SUCCESS {
		record.Util = int(util.Gpu)
		record.MemUtil = int(util.Memory)
	} else {
		record.Util = UnknownUtil
		record.MemUtil = UnknownUtil
	}

	procs, ret := dev.GetComputeRunningProcesses()
	if err := checkReturn(provider, index, "compute processes", ret); err != nil {
		return Record{}, err
	}
	if ret == nvml.SUCCESS {
		record.Processes = len(procs)
	} else {
		record.Processes = UnknownProcesses
	}

	pstate, ret := dev.GetPerformanceState()
	if err := checkReturn(provider, index, "performance state", ret); err != nil {
		return Record{}, err
	}
	if ret == nvml.SUCCESS {
		record.PerfState = PerfState(int(pstate))
	}

	power, ret := dev.GetPowerUsage()
	if err := checkReturn(provider, index, "power usage", ret); err != nil {
		return Record{}, err
	}
	if ret == nvml.SUCCESS {
		record.PowerUsage = int(power)
	}

	temp, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if err := checkReturn(provider, index, "temperature", ret); err != nil {
		return Record{}, err
	}
	if ret == nvml.SUCCESS {
		record.Temperature = int(temp)
	}

	return record, nil
}

// unsupported counters are left to readDevice rather than failing the snapshot
func checkReturn(provider string, index int, what string, ret nvml.Return) error {
	switch ret {
	case nvml.SUCCESS, nvml.ERROR_NOT_SUPPORTED:
		return nil
	default:
		return queryError(provider, "device %d: %s: %s", index, what, nvml.ErrorString(ret))
	}
}
