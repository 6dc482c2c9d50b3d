package services

import (
	"fmt"
)

// InvalidInputError rejects a pricing call whose numeric inputs are out of
// domain (non-positive time to expiration or volatility).
type InvalidInputError struct {
	Field string
	Value float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid pricing input: %s=%v", e.Field, e.Value)
}

// InvalidKindError rejects a pricing call for an unrecognized option kind.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("unsupported option kind: %q", e.Kind)
}

// DataNotFoundError reports a symbol, expiration or strike missing from
// fetched market data. It skips the affected entry only.
type DataNotFoundError struct {
	Symbol     string
	Expiration string
	Strike     float64
}

func (e *DataNotFoundError) Error() string {
	if e.Strike != 0 {
		return fmt.Sprintf("no contract for %s exp=%s strike=%v", e.Symbol, e.Expiration, e.Strike)
	}
	if e.Expiration != "" {
		return fmt.Sprintf("no option chain for %s exp=%s", e.Symbol, e.Expiration)
	}
	return fmt.Sprintf("no market data for %s", e.Symbol)
}

// GatewayError wraps a failed or malformed market-data call.
type GatewayError struct {
	Symbol     string
	Expiration string
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("market data fetch failed for %s exp=%s: %v", e.Symbol, e.Expiration, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed history write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal at startup: the process cannot run without the
// named setting.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Setting)
}
