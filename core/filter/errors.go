package filter

import "fmt"

// ConfigurationError reports a malformed filter specification. It is always
// returned from a constructor, before any forest is processed.
type ConfigurationError struct {
	Filter string
	Value  string
	err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("filter %s: invalid %q: %v", e.Filter, e.Value, e.err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.err
}

func configErr(filter, value string, err error) error {
	return &ConfigurationError{Filter: filter, Value: value, err: err}
}
