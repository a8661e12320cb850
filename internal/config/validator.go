package config

import (
	"errors"
	"fmt"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
)

// Validator validates configuration and fills in smart defaults for
// fields the project left unset.
type Validator struct{}

// NewValidator constructs a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and applies smart defaults. It
// mutates cfg in place.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProject(&cfg.Project); err != nil {
		return csharperrors.NewStorageError("config.project", err)
	}
	if err := v.validateIndex(&cfg.Index); err != nil {
		return csharperrors.NewStorageError("config.index", err)
	}
	if err := v.validatePerformance(&cfg.Performance); err != nil {
		return csharperrors.NewStorageError("config.performance", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProject(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndex(index *Index) error {
	if index.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", index.MaxFileSize)
	}
	if index.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", index.MaxFileCount)
	}
	return nil
}

func (v *Validator) validatePerformance(perf *Performance) error {
	if perf.MaxGoroutines < 0 {
		return fmt.Errorf("MaxGoroutines cannot be negative, got %d", perf.MaxGoroutines)
	}
	return nil
}

// setSmartDefaults fills zero-valued fields with runtime-derived
// defaults: worker count off the number of available CPUs.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.MaxGoroutines == 0 {
		cfg.Performance.MaxGoroutines = max(1, numCPU()-1)
	}
}

// ValidateConfig is a convenience wrapper around Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
