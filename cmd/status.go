package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gpuselect/internal/device"
	"gpuselect/internal/selection"
	"gpuselect/internal/ui"
)

type statusOptions struct {
	All      bool
	JSON     bool
	Watch    bool
	Interval time.Duration
}

func newStatusCmd(opts *Options) *cobra.Command {
	statusOpts := &statusOptions{}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show utilization of every GPU",
		Long: `Show the current counters of every GPU. By default only the devices
allowed by CUDA_VISIBLE_DEVICES are listed; --all lists every device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadOptions(cmd, opts); err != nil {
				return err
			}
			if err := validateStatus(cmd, statusOpts); err != nil {
				return err
			}
			return runStatus(cmd, opts, statusOpts)
		},
	}

	flags := statusCmd.Flags()
	flags.BoolVarP(&statusOpts.All, "all", "a", false, "Ignore CUDA_VISIBLE_DEVICES and list every device")
	flags.BoolVar(&statusOpts.JSON, "json", false, "Output in JSON format")
	flags.BoolVarP(&statusOpts.Watch, "watch", "w", false, "Refresh continuously in an interactive view")
	flags.DurationVar(&statusOpts.Interval, "interval", 2*time.Second, "Refresh interval (with --watch)")
	return statusCmd
}

func validateStatus(cmd *cobra.Command, opts *statusOptions) error {
	if opts.JSON && opts.Watch {
		return fmt.Errorf("%w: --json cannot be used with --watch", ErrInvalidArguments)
	}
	if cmd.Flags().Changed("interval") && !opts.Watch {
		return fmt.Errorf("%w: --interval requires --watch", ErrInvalidArguments)
	}
	if opts.Interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", ErrInvalidArguments)
	}
	return nil
}

func runStatus(cmd *cobra.Command, opts *Options, statusOpts *statusOptions) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	provider, err := newProvider(opts, log)
	if err != nil {
		return err
	}
	pipeline := selection.New(provider, selection.WithLogger(log))
	onlyVisible := !statusOpts.All

	if statusOpts.Watch {
		return ui.RunWatch(func() ([]device.Record, error) {
			return pipeline.Status(onlyVisible)
		}, statusOpts.Interval)
	}

	records, err := pipeline.Status(onlyVisible)
	if err != nil {
		return err
	}
	if statusOpts.JSON {
		return ui.PrintStatusJSON(cmd.OutOrStdout(), records)
	}
	ui.PrintStatus(cmd.OutOrStdout(), records)
	return nil
}
