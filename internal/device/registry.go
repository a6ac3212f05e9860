package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Static serves a fixed snapshot.
type Static []Record

func (Static) Name() string {
	return "static"
}

func (s Static) Snapshot() ([]Record, error) {
	if len(s) == 0 {
		return nil, queryError("static", "no devices found")
	}
	records := make([]Record, len(s))
	copy(records, s)
	return records, nil
}

// LoadSnapshot reads a JSON array of records, the shape "status --json" prints.
func LoadSnapshot(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &QueryError{Provider: "static", Err: err}
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, queryError("static", "parse %s: %v", path, err)
	}
	seen := make(map[int]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			return nil, queryError("static", "duplicate device id %d in %s", r.ID, path)
		}
		seen[r.ID] = struct{}{}
	}
	return Static(records), nil
}

// Chain tries providers in order and returns the first successful snapshot.
type Chain struct {
	Providers []Provider
	Logger    *zap.Logger
}

func (c Chain) Name() string {
	return "auto"
}

func (c Chain) Snapshot() ([]Record, error) {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var errs []error
	for _, p := range c.Providers {
		records, err := p.Snapshot()
		if err != nil {
			log.Debug("provider failed", zap.String("provider", p.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		log.Debug("provider succeeded", zap.String("provider", p.Name()), zap.Int("devices", len(records)))
		return records, nil
	}
	if len(errs) == 0 {
		return nil, queryError(c.Name(), "no providers configured")
	}
	return nil, &QueryError{Provider: c.Name(), Err: errors.Join(errs...)}
}

// Detect resolves a provider by name. "auto" (or empty) tries the management
// library first and falls back to nvidia-smi.
func Detect(name string, log *zap.Logger) (Provider, error) {
	switch name {
	case "", "auto":
		return Chain{Providers: []Provider{NVML{}, SMI{}}, Logger: log}, nil
	case "nvml":
		return NVML{}, nil
	case "smi", "nvidia-smi":
		return SMI{}, nil
	default:
		return nil, fmt.Errorf("%w %q (valid: auto, nvml, smi)", ErrUnknownProvider, name)
	}
}
