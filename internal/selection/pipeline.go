// Package selection turns a device snapshot into a random choice of idle
// devices and binds it to the visibility variable.
//
// A selection is advisory, not a reservation. Two processes that query the
// host at the same time can both see a device as idle and both choose it;
// nothing here locks or leases devices.
//
// A Pipeline writes process-wide state through its Binder and is not safe
// for concurrent use.
package selection

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"gpuselect/internal/device"
	"gpuselect/internal/env"
)

type Pipeline struct {
	provider device.Provider
	binder   env.Binder
	log      *zap.Logger
	rng      *rand.Rand
}

type Option func(*Pipeline)

func WithBinder(b env.Binder) Option {
	return func(p *Pipeline) {
		p.binder = b
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// New builds a pipeline that binds into the real process environment unless
// WithBinder says otherwise.
func New(provider device.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider: provider,
		binder:   env.Process{},
		log:      zap.NewNop(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Select runs snapshot, scope, filter and pick, then binds the result.
//
// With req.Silent an insufficient candidate set yields the empty Result (and
// binds the empty string) instead of an *InsufficientDevicesError. Query
// failures are returned regardless of Silent. On error nothing is bound.
func (p *Pipeline) Select(req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	snapshot, err := p.provider.Snapshot()
	if err != nil {
		return Result{}, err
	}

	scoped := Scope(snapshot, req.Devices)
	eligible := Filter(scoped, req)
	p.log.Debug("filtered devices",
		zap.String("provider", p.provider.Name()),
		zap.Ints("snapshot", device.IDs(snapshot)),
		zap.Ints("scoped", device.IDs(scoped)),
		zap.Ints("eligible", device.IDs(eligible)),
		zap.Bool("custom_selector", req.Selector != nil),
	)

	ids, err := Pick(p.rng, eligible, req.Count)
	if err != nil {
		var insufficient *InsufficientDevicesError
		if !req.Silent || !errors.As(err, &insufficient) {
			return Result{}, err
		}
		p.log.Info("not enough idle devices, selecting none",
			zap.Int("requested", insufficient.Requested),
			zap.Int("available", insufficient.Available),
		)
		ids = []int{}
	}

	result := Result{IDs: ids, Value: env.Format(ids)}
	if err := p.binder.Set(result.Value); err != nil {
		return Result{}, fmt.Errorf("set %s: %w", env.VisibleDevices, err)
	}
	p.log.Info("selected devices", zap.String(env.VisibleDevices, result.Value))
	return result, nil
}

// Status returns the full snapshot in provider order, optionally limited to
// the devices the current visibility variable exposes.
func (p *Pipeline) Status(onlyVisible bool) ([]device.Record, error) {
	snapshot, err := p.provider.Snapshot()
	if err != nil {
		return nil, err
	}
	if !onlyVisible {
		return snapshot, nil
	}
	return ScopeVisible(snapshot, p.binder), nil
}
