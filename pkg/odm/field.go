package odm

import (
	"fmt"
	"math/big"
	"regexp"
)

// Field is the contract between a document class and one of its fields.
// The schema registry only names fields; everything about a value
// (validation, normalization, defaults, wire conversion) belongs to the
// field itself.
//
// Custom field types embed *FieldBase, which provides naming, defaults and
// identity wire conversion.
type Field interface {
	// Name is the canonical field name, bound when the field is first
	// declared in a class.
	Name() string
	// WireName is the key used in wire records. Defaults to Name.
	WireName() string
	Required() bool
	// Default returns the default value (calling the factory if any) and
	// whether the field has one.
	Default() (any, bool)
	// Validate checks a user supplied value and returns its normalized form.
	Validate(v any) (any, error)
	// ToWire converts a validated value to its wire representation.
	ToWire(v any) any
	// FromWire converts a trusted wire value back to the in-memory form.
	FromWire(v any) (any, error)

	base() *FieldBase
}

// FieldBase carries the settings shared by all field types.
type FieldBase struct {
	typ        string
	name       string
	wireName   string
	required   bool
	def        any
	defFn      func() any
	hasDefault bool
	choices    []any
	declErr    error
}

func newBase(typ string, s *settings) *FieldBase {
	return &FieldBase{
		typ:        typ,
		name:       s.name,
		wireName:   s.wireName,
		required:   s.required,
		def:        s.def,
		defFn:      s.defFn,
		hasDefault: s.hasDefault,
		choices:    s.choices,
	}
}

// NewFieldBase builds the shared part of a custom field type.
func NewFieldBase(typ string, opts ...Option) *FieldBase {
	return newBase(typ, applyOptions(opts))
}

func (b *FieldBase) base() *FieldBase { return b }

func (b *FieldBase) Name() string { return b.name }

func (b *FieldBase) WireName() string {
	if b.wireName == "" {
		return b.name
	}
	return b.wireName
}

func (b *FieldBase) Required() bool { return b.required }

// Type names the field type, e.g. "string" or "list".
func (b *FieldBase) Type() string { return b.typ }

func (b *FieldBase) Default() (any, bool) {
	if !b.hasDefault {
		return nil, false
	}
	if b.defFn != nil {
		return b.defFn(), true
	}
	return b.def, true
}

func (b *FieldBase) ToWire(v any) any { return v }

func (b *FieldBase) FromWire(v any) (any, error) { return v, nil }

// bind sets the canonical name once; a descriptor reused under another
// name keeps its first one.
func (b *FieldBase) bind(name string) {
	if b.name == "" {
		b.name = name
	}
}

func (b *FieldBase) checkChoices(v any) error {
	if len(b.choices) == 0 {
		return nil
	}
	for _, c := range b.choices {
		if looseEqual(c, v) {
			return nil
		}
	}
	return invalidf("value doesn't match any variant")
}

// Option configures a field at declaration time. Options that do not apply
// to a field type are ignored by it.
type Option func(*settings)

type settings struct {
	name       string
	wireName   string
	required   bool
	def        any
	defFn      func() any
	hasDefault bool
	choices    []any

	allowBlank *bool
	pattern    string
	minLen     *int
	maxLen     *int
	gt, gte    *float64
	lt, lte    *float64
}

func applyOptions(opts []Option) *settings {
	s := &settings{required: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Optional marks the field as not required. Fields are required by default.
func Optional() Option { return func(s *settings) { s.required = false } }

func Required() Option { return func(s *settings) { s.required = true } }

// Named fixes the canonical name instead of taking the declaration name.
func Named(name string) Option { return func(s *settings) { s.name = name } }

// WireName sets the key used for the field in wire records.
func WireName(name string) Option { return func(s *settings) { s.wireName = name } }

// Default sets a static default value.
func Default(v any) Option {
	return func(s *settings) {
		s.def, s.defFn, s.hasDefault = v, nil, true
	}
}

// DefaultFunc sets a default factory, invoked on every construction.
func DefaultFunc(fn func() any) Option {
	return func(s *settings) {
		s.def, s.defFn, s.hasDefault = nil, fn, true
	}
}

// Choices restricts values to the given variants.
func Choices(values ...any) Option { return func(s *settings) { s.choices = values } }

func AllowBlank(allow bool) Option { return func(s *settings) { s.allowBlank = &allow } }

// Pattern requires string values to match expr. When set, AllowBlank,
// MinLength and MaxLength are ignored.
func Pattern(expr string) Option { return func(s *settings) { s.pattern = expr } }

func MinLength(n int) Option { return func(s *settings) { s.minLen = &n } }

func MaxLength(n int) Option { return func(s *settings) { s.maxLen = &n } }

func Gt(x float64) Option { return func(s *settings) { s.gt = &x } }

func Gte(x float64) Option { return func(s *settings) { s.gte = &x } }

func Lt(x float64) Option { return func(s *settings) { s.lt = &x } }

func Lte(x float64) Option { return func(s *settings) { s.lte = &x } }

func (s *settings) compilePattern(b *FieldBase) *regexp.Regexp {
	if s.pattern == "" {
		return nil
	}
	re, err := regexp.Compile(s.pattern)
	if err != nil {
		b.declErr = fmt.Errorf("invalid pattern %q: %w", s.pattern, err)
		return nil
	}
	return re
}

// bounds is the numeric range check shared by int, float and decimal fields.
type bounds struct {
	gt, gte, lt, lte *float64
}

func (s *settings) bounds() bounds {
	return bounds{gt: s.gt, gte: s.gte, lt: s.lt, lte: s.lte}
}

func (r bounds) check(x float64) error {
	switch {
	case r.gt != nil && !(x > *r.gt):
		return invalidf("value should be greater than %v", *r.gt)
	case r.gte != nil && !(x >= *r.gte):
		return invalidf("value is less than %v", *r.gte)
	case r.lt != nil && !(x < *r.lt):
		return invalidf("value should be less than %v", *r.lt)
	case r.lte != nil && !(x <= *r.lte):
		return invalidf("value is greater than %v", *r.lte)
	}
	return nil
}

// checkInt is check for integers, compared exactly rather than through
// float64.
func (r bounds) checkInt(n int64) error {
	x := new(big.Float).SetInt64(n)
	cmp := func(b float64) int { return x.Cmp(big.NewFloat(b)) }
	switch {
	case r.gt != nil && cmp(*r.gt) <= 0:
		return invalidf("value should be greater than %v", *r.gt)
	case r.gte != nil && cmp(*r.gte) < 0:
		return invalidf("value is less than %v", *r.gte)
	case r.lt != nil && cmp(*r.lt) >= 0:
		return invalidf("value should be less than %v", *r.lt)
	case r.lte != nil && cmp(*r.lte) > 0:
		return invalidf("value is greater than %v", *r.lte)
	}
	return nil
}
