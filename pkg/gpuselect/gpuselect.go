// Package gpuselect picks idle GPUs on a shared host and exposes them through
// CUDA_VISIBLE_DEVICES, so that CUDA work started afterwards in this process
// or in its children only sees the chosen devices.
//
//	value, err := gpuselect.Select(gpuselect.Count(2), gpuselect.MemUtil(10))
//
// Selection is advisory. Nothing reserves a device, and two processes
// selecting at the same time may choose the same one. Select writes process
// wide state and must not be called concurrently.
package gpuselect

import (
	"math/rand"

	"go.uber.org/zap"

	"gpuselect/internal/device"
	"gpuselect/internal/env"
	"gpuselect/internal/selection"
)

const VisibleDevicesEnv = env.VisibleDevices

type (
	Device                   = device.Record
	Provider                 = device.Provider
	Binder                   = env.Binder
	Selector                 = selection.Selector
	InsufficientDevicesError = selection.InsufficientDevicesError
)

var (
	ErrInsufficientDevices = selection.ErrInsufficientDevices
	ErrQueryFailed         = device.ErrQueryFailed
	ErrInvalidRequest      = selection.ErrInvalidRequest
)

type settings struct {
	req      selection.Request
	provider device.Provider
	pipeline []selection.Option
	log      *zap.Logger
}

type Option func(*settings)

// Count sets how many devices to select. Defaults to 1.
func Count(n int) Option {
	return func(s *settings) { s.req.Count = n }
}

// Name only accepts devices whose name contains substr (case-sensitive).
func Name(substr string) Option {
	return func(s *settings) { s.req.Name = substr }
}

// Util sets the maximum GPU utilization percentage. Defaults to 0.
func Util(n int) Option {
	return func(s *settings) { s.req.Util = n }
}

// MemUtil sets the maximum memory utilization percentage. Defaults to 0.
func MemUtil(n int) Option {
	return func(s *settings) { s.req.MemUtil = n }
}

// Processes sets the maximum number of running compute processes. Defaults to 0.
func Processes(n int) Option {
	return func(s *settings) { s.req.Processes = n }
}

// Devices restricts selection to the given device ids.
func Devices(ids ...int) Option {
	return func(s *settings) { s.req.Devices = ids }
}

// WithSelector replaces the Name, Util, MemUtil and Processes filters with fn.
// Devices and Count still apply.
func WithSelector(fn Selector) Option {
	return func(s *settings) { s.req.Selector = fn }
}

// Silent makes Select return "" instead of an error when too few devices are
// eligible.
func Silent(silent bool) Option {
	return func(s *settings) { s.req.Silent = silent }
}

// WithProvider replaces hardware detection, e.g. with a recorded snapshot.
func WithProvider(p Provider) Option {
	return func(s *settings) { s.provider = p }
}

// WithBinder binds the result somewhere other than the process environment.
func WithBinder(b Binder) Option {
	return func(s *settings) { s.pipeline = append(s.pipeline, selection.WithBinder(b)) }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		s.log = log
		s.pipeline = append(s.pipeline, selection.WithLogger(log))
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(s *settings) { s.pipeline = append(s.pipeline, selection.WithRand(rng)) }
}

func newPipeline(opts []Option) (*selection.Pipeline, selection.Request, error) {
	s := &settings{req: selection.NewRequest()}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		provider, err := device.Detect("auto", s.log)
		if err != nil {
			return nil, s.req, err
		}
		s.provider = provider
	}
	return selection.New(s.provider, s.pipeline...), s.req, nil
}

// Select chooses devices, sets CUDA_VISIBLE_DEVICES and returns the value it
// set. With Silent(true) an insufficient candidate set returns "" (and sets
// the variable to ""); every other failure is returned as an error and leaves
// the variable untouched.
func Select(opts ...Option) (string, error) {
	pipeline, req, err := newPipeline(opts)
	if err != nil {
		return "", err
	}
	result, err := pipeline.Select(req)
	if err != nil {
		return "", err
	}
	return result.Value, nil
}

// Status returns every device in enumeration order. With onlyVisible it
// lists only the devices the current CUDA_VISIBLE_DEVICES exposes; an unset
// or non-numeric value exposes everything.
func Status(onlyVisible bool, opts ...Option) ([]Device, error) {
	pipeline, _, err := newPipeline(opts)
	if err != nil {
		return nil, err
	}
	return pipeline.Status(onlyVisible)
}
