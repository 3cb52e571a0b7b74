package settings

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ConfigError reports an invalid directive or an unsupported value.
type ConfigError struct {
	// Directive is the offending directive name; empty for file-level problems.
	Directive string
	// Line is the 1-based source line, 0 when unknown.
	Line int
	// Reason describes the violated constraint.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Directive != "" && e.Line > 0:
		return fmt.Sprintf("config: %s (line %d): %s", e.Directive, e.Line, e.Reason)
	case e.Directive != "":
		return fmt.Sprintf("config: %s: %s", e.Directive, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("config: line %d: %s", e.Line, e.Reason)
	default:
		return "config: " + e.Reason
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ConfigErrors extracts every *ConfigError carried by err.
func ConfigErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*ConfigError
		for _, e := range merr.Errors {
			out = append(out, ConfigErrors(e)...)
		}
		return out
	}

	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return []*ConfigError{cerr}
	}
	return nil
}
