package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gpuselect/internal/config"
	"gpuselect/internal/device"
	"gpuselect/internal/env"
	"gpuselect/internal/launch"
	"gpuselect/internal/logging"
	"gpuselect/internal/selection"
	"gpuselect/internal/ui"
)

// ExitFailure is returned for every failure of the wrapper itself. It sits
// in the range shells reserve, away from ordinary program exit codes.
const ExitFailure = 125

type Options struct {
	Count      int
	Name       string
	Util       int
	MemUtil    int
	Processes  int
	Devices    []int
	Silent     bool
	Export     bool
	Provider   string
	Snapshot   string
	Debug      bool
	ConfigFile string
	Command    []string
}

var ErrInvalidArguments = errors.New("invalid arguments")

// ExitError carries a wrapped command's non-zero exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.Code)
}

func NewRootCmd() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "gpuselect [flags] [-- command [args...]]",
		Short: "Select idle GPUs and expose them through CUDA_VISIBLE_DEVICES",
		Long: `gpuselect picks idle GPUs at random and sets CUDA_VISIBLE_DEVICES.

Without a command it prints the selected device list. With a command after
"--" it runs the command restricted to the selected devices and exits with
the command's exit code.

Selection is advisory: nothing reserves the chosen devices, so two users
selecting at the same moment may pick the same GPU.`,
		Example: `  gpuselect --count 2 -- python train.py --epochs 10
  eval "$(gpuselect --export --name A6000)"`,
		Version:       FullVersion(),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadOptions(cmd, opts); err != nil {
				return err
			}
			command, err := commandArgs(cmd, args)
			if err != nil {
				return err
			}
			opts.Command = command
			if err := Validate(opts); err != nil {
				return err
			}
			return runSelect(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.IntP("count", "c", 1, "Number of GPUs to select")
	flags.StringP("name", "n", "", "Only select GPUs whose name contains this (case-sensitive)")
	flags.Int("util", 0, "Maximum GPU utilization percentage")
	flags.Int("mem_util", 0, "Maximum memory utilization percentage")
	flags.Int("processes", 0, "Maximum number of running compute processes")
	flags.IntSlice("devices", nil, "Only consider these device ids (e.g. 0,2)")
	flags.BoolP("silent", "s", false, "Select no GPUs instead of failing when too few are idle")
	flags.BoolVar(&opts.Export, "export", false, "Print a shell export statement instead of the bare value")

	persistent := rootCmd.PersistentFlags()
	persistent.String("provider", "auto", "Device query backend: auto, nvml, smi")
	persistent.String("snapshot", "", "Read devices from a JSON snapshot instead of the hardware")
	persistent.Bool("debug", false, "Log selection details to stderr")
	persistent.StringVar(&opts.ConfigFile, "config", "", "Config file (default: gpuselect.yaml in ., ~/.config/gpuselect, /etc/gpuselect)")

	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

func loadOptions(cmd *cobra.Command, opts *Options) error {
	cfg, err := config.Load(cmd.Flags(), opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	opts.Count = cfg.Count
	opts.Name = cfg.Name
	opts.Util = cfg.Util
	opts.MemUtil = cfg.MemUtil
	opts.Processes = cfg.Processes
	opts.Devices = cfg.Devices
	opts.Silent = cfg.Silent
	opts.Provider = cfg.Provider
	opts.Snapshot = cfg.Snapshot
	opts.Debug = cfg.Debug
	return nil
}

// everything after "--" is the command to wrap
func commandArgs(cmd *cobra.Command, args []string) ([]string, error) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: unexpected argument %q (put the command after --)", ErrInvalidArguments, args[0])
		}
		return nil, nil
	}
	if dash > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q before --", ErrInvalidArguments, args[0])
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no command after --", ErrInvalidArguments)
	}
	return args, nil
}

func Validate(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options are required", ErrInvalidArguments)
	}

	if opts.Count < 1 {
		return fmt.Errorf("%w: --count must be at least 1", ErrInvalidArguments)
	}
	if opts.Util < 0 || opts.Util > 100 {
		return fmt.Errorf("%w: --util must be between 0 and 100", ErrInvalidArguments)
	}
	if opts.MemUtil < 0 || opts.MemUtil > 100 {
		return fmt.Errorf("%w: --mem_util must be between 0 and 100", ErrInvalidArguments)
	}
	if opts.Processes < 0 {
		return fmt.Errorf("%w: --processes cannot be negative", ErrInvalidArguments)
	}
	for _, id := range opts.Devices {
		if id < 0 {
			return fmt.Errorf("%w: invalid device id %d", ErrInvalidArguments, id)
		}
	}
	if opts.Export && len(opts.Command) > 0 {
		return fmt.Errorf("%w: --export cannot be used with a command", ErrInvalidArguments)
	}

	return nil
}

func newLogger(opts *Options) (*zap.Logger, error) {
	log, err := logging.New(opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func newProvider(opts *Options, log *zap.Logger) (device.Provider, error) {
	provider, err := device.Detect(opts.Provider, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if opts.Snapshot != "" {
		snapshot, err := device.LoadSnapshot(opts.Snapshot)
		if err != nil {
			return nil, err
		}
		return snapshot, nil
	}
	return provider, nil
}

func runSelect(cmd *cobra.Command, opts *Options) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	provider, err := newProvider(opts, log)
	if err != nil {
		return err
	}

	req := selection.Request{
		Count:     opts.Count,
		Name:      opts.Name,
		Util:      opts.Util,
		MemUtil:   opts.MemUtil,
		Processes: opts.Processes,
		Devices:   opts.Devices,
		Silent:    opts.Silent,
	}
	result, err := selection.New(provider, selection.WithLogger(log)).Select(req)
	if err != nil {
		return err
	}

	if len(opts.Command) == 0 {
		ui.PrintSelection(cmd.OutOrStdout(), env.VisibleDevices, result.Value, opts.Export)
		return nil
	}

	environ := env.Override(os.Environ(), env.VisibleDevices, result.Value)
	environ = env.Default(environ, env.DeviceOrder, env.PCIBusOrder)
	log.Debug("launching command", zap.Strings("argv", opts.Command), zap.String(env.VisibleDevices, result.Value))

	code, err := launch.Run(opts.Command, environ, launch.Streams{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
