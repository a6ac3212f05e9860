package device

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

type RunCmdFunc func(name string, args ...string) (string, error)

// SMI parses nvidia-smi CSV output. It is the fallback for hosts where the
// management library cannot be loaded in-process.
type SMI struct {
	Run RunCmdFunc
}

const (
	smiBinary = "nvidia-smi"

	// name is last so commas in marketing names survive the split
	smiGPUQuery  = "index,uuid,utilization.gpu,utilization.memory,pstate,power.draw,temperature.gpu,name"
	smiGPUFields = 8
	smiAppsQuery = "gpu_uuid,pid"
)

func (SMI) Name() string {
	return "smi"
}

func (p SMI) Snapshot() ([]Record, error) {
	run := p.Run
	if run == nil {
		run = ExecCommand
	}

	output, err := run(smiBinary, "--query-gpu="+smiGPUQuery, "--format=csv,noheader,nounits")
	if err != nil {
		return nil, &QueryError{Provider: p.Name(), Err: err}
	}

	apps, err := run(smiBinary, "--query-compute-apps="+smiAppsQuery, "--format=csv,noheader")
	if err != nil {
		return nil, &QueryError{Provider: p.Name(), Err: err}
	}
	procsByUUID := countProcesses(apps)

	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.SplitN(line, ",", smiGPUFields)
		if len(parts) < smiGPUFields {
			return nil, queryError(p.Name(), "unexpected nvidia-smi line %q", line)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, queryError(p.Name(), "invalid device index %q", parts[0])
		}

		records = append(records, Record{
			ID:          id,
			Name:        parts[7],
			Util:        parseSMILoad(parts[2]),
			MemUtil:     parseSMILoad(parts[3]),
			Processes:   procsByUUID[parts[1]],
			PerfState:   parsePerfState(parts[4]),
			PowerUsage:  parseWattsAsMilli(parts[5]),
			Temperature: parseSMIInt(parts[6]),
		})
	}

	if len(records) == 0 {
		return nil, queryError(p.Name(), "no devices found")
	}
	return records, nil
}

func ExecCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapCommandError(err, stderr.String())
	}
	return stdout.String(), nil
}

func wrapCommandError(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s not found in PATH", smiBinary)
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%v: %s", err, msg)
	}
	return err
}

func countProcesses(output string) map[string]int {
	counts := make(map[string]int)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		uuid := strings.TrimSpace(fields[0])
		if uuid == "" {
			continue
		}
		counts[uuid]++
	}
	return counts
}

func parseSMINumber(value string) (int, bool) {
	if val, err := strconv.Atoi(value); err == nil {
		return val, true
	}
	if val, err := strconv.ParseFloat(value, 64); err == nil {
		return int(val), true
	}
	return 0, false
}

// "[N/A]" and "[Not Supported]" read as zero
func parseSMIInt(value string) int {
	val, _ := parseSMINumber(value)
	return val
}

// utilization the driver cannot report counts as fully busy
func parseSMILoad(value string) int {
	if val, ok := parseSMINumber(value); ok {
		return val
	}
	return UnknownUtil
}

func parsePerfState(value string) int {
	value = strings.TrimPrefix(strings.ToUpper(value), "P")
	state, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return PerfState(state)
}

func parseWattsAsMilli(value string) int {
	watts, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(watts * 1000))
}
