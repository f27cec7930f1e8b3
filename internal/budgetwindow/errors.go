package budgetwindow

import (
	"fmt"
	"strings"
)

// ConfigError reports missing credentials or an empty domain. It is raised
// before any network call is issued.
type ConfigError struct {
	MissingCredentials []string
	EmptyDomain        bool
}

func (e *ConfigError) Error() string {
	parts := []string{}
	if len(e.MissingCredentials) > 0 {
		parts = append(parts, "missing API keys: "+strings.Join(e.MissingCredentials, ", "))
	}
	if e.EmptyDomain {
		parts = append(parts, "domain is required")
	}
	if len(parts) == 0 {
		return "invalid configuration"
	}
	return strings.Join(parts, "; ")
}

// DataAvailabilityError means both upstream dependencies failed; scoring is
// never attempted.
type DataAvailabilityError struct {
	EnrichmentErr error
	SignalsErr    error
}

func (e *DataAvailabilityError) Error() string {
	return fmt.Sprintf("no upstream data available (enrichment: %v; signals: %v)", e.EnrichmentErr, e.SignalsErr)
}

// StageError identifies the scoring stage whose text-generation response
// failed transport, the JSON contract, or validation. Fatal for the analysis;
// never retried and never downgraded to the other strategy.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }
