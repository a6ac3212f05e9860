package main

import (
	"errors"
	"fmt"
	"os"

	"gpuselect/cmd"
	"gpuselect/internal/device"
	"gpuselect/internal/launch"
	"gpuselect/internal/selection"
	"gpuselect/internal/ui"
)

func main() {
	if err := cmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	if err == nil {
		return
	}

	var exitErr *cmd.ExitError
	var launchErr *launch.LaunchError
	var insufficient *selection.InsufficientDevicesError

	switch {
	case errors.As(err, &exitErr):
		os.Exit(exitErr.Code)
	case errors.As(err, &launchErr):
		ui.PrintError(err)
		os.Exit(launchErr.ExitCode())
	case errors.As(err, &insufficient):
		ui.PrintError(fmt.Errorf("Not enough idle GPUs: requested %d, found %d. Relax the thresholds or use --silent.",
			insufficient.Requested, insufficient.Available))
		os.Exit(cmd.ExitFailure)
	case errors.Is(err, device.ErrQueryFailed):
		ui.PrintError(fmt.Errorf("Cannot query GPUs. Is the NVIDIA driver loaded? (%v)", err))
		os.Exit(cmd.ExitFailure)
	default:
		ui.PrintError(err)
		os.Exit(cmd.ExitFailure)
	}
}
