package odm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hengadev/errsx"
)

var (
	ErrInvalidDeclaration = errors.New("invalid document declaration")
	ErrRequired           = errors.New("field is required")
	ErrInvalidValue       = errors.New("invalid value")
	ErrUnknownField       = errors.New("unknown field")
	ErrUnknownClass       = errors.New("unknown document class")
)

// ConfigError is returned when a document class declaration cannot be built.
// It is fatal for the class: the declaration has to be fixed.
type ConfigError struct {
	Class string
	Msg   string
	// Keys lists the offending option keys for unrecognized meta options.
	Keys []string
}

func (e *ConfigError) Error() string {
	if e.Class == "" {
		return e.Msg
	}
	return e.Class + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error { return ErrInvalidDeclaration }

func configErrorf(class, format string, args ...any) *ConfigError {
	return &ConfigError{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// FieldError is a single field failure: a value that could not be
// validated, normalized or converted.
type FieldError struct {
	Msg string
	Err error
}

func (e *FieldError) Error() string { return e.Msg }

func (e *FieldError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return &FieldError{Msg: fmt.Sprintf(format, args...), Err: ErrInvalidValue}
}

func requiredError() error {
	return &FieldError{Msg: ErrRequired.Error(), Err: ErrRequired}
}

// ValidationError aggregates the failures of every invalid field of one
// construction or assignment. Entries are keyed by canonical field name (or
// by item index for list values) and may themselves be *ValidationError for
// embedded documents and lists.
type ValidationError struct {
	Class  string
	Fields errsx.Map
}

func (e *ValidationError) Error() string {
	keys := e.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Fields[k]))
	}
	prefix := "validation failed"
	if e.Class != "" {
		prefix = e.Class + " " + prefix
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Keys returns the failed field names, sorted.
func (e *ValidationError) Keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field returns the error recorded for name, or nil.
func (e *ValidationError) Field(name string) error {
	return e.Fields[name]
}

// AsMap flattens the error into nested maps of messages, suitable for JSON
// responses: {"emb_field": {"emb_float": "field is required"}}.
func (e *ValidationError) AsMap() map[string]any {
	out := make(map[string]any, len(e.Fields))
	for k, err := range e.Fields {
		if nested, ok := err.(*ValidationError); ok {
			out[k] = nested.AsMap()
			continue
		}
		out[k] = err.Error()
	}
	return out
}

func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Fields))
	for _, k := range e.Keys() {
		out = append(out, e.Fields[k])
	}
	return out
}

func newValidationError(class string) *ValidationError {
	return &ValidationError{Class: class, Fields: make(errsx.Map)}
}

func (e *ValidationError) set(key string, err error) {
	e.Fields.Set(key, err)
}

// asError returns e when at least one field failed, nil otherwise.
func (e *ValidationError) asError() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
