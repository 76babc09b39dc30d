package odm

import (
	"encoding/json"
	"math/big"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// AnyField accepts any value. Whether it can be stored is up to the caller.
type AnyField struct{ *FieldBase }

func Any(opts ...Option) *AnyField {
	return &AnyField{newBase("any", applyOptions(opts))}
}

func (f *AnyField) Validate(v any) (any, error) {
	if err := f.checkChoices(v); err != nil {
		return nil, err
	}
	return v, nil
}

type StringField struct {
	*FieldBase
	allowBlank bool
	re         *regexp.Regexp
	minLen     *int
	maxLen     *int
}

// String declares a string field. Blank strings are allowed unless
// AllowBlank(false) is given.
func String(opts ...Option) *StringField {
	return newString("string", true, opts)
}

func newString(typ string, allowBlank bool, opts []Option) *StringField {
	s := applyOptions(opts)
	f := &StringField{FieldBase: newBase(typ, s), allowBlank: allowBlank, minLen: s.minLen, maxLen: s.maxLen}
	if s.allowBlank != nil {
		f.allowBlank = *s.allowBlank
	}
	f.re = s.compilePattern(f.FieldBase)
	return f
}

func (f *StringField) Validate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, invalidf("value is not a string")
	}
	if f.re != nil {
		if !f.re.MatchString(s) {
			return nil, invalidf("does not match pattern %s", f.re.String())
		}
	} else {
		if s == "" && !f.allowBlank {
			return nil, invalidf("blank value is not allowed")
		}
		n := utf8.RuneCountInString(s)
		if f.minLen != nil && n < *f.minLen {
			return nil, invalidf("string is shorter than %d characters", *f.minLen)
		}
		if f.maxLen != nil && n > *f.maxLen {
			return nil, invalidf("string is longer than %d characters", *f.maxLen)
		}
	}
	if err := f.checkChoices(s); err != nil {
		return nil, err
	}
	return s, nil
}

// EmailField is a string field holding an email address.
type EmailField struct{ *StringField }

func Email(opts ...Option) *EmailField {
	return &EmailField{newString("email", false, opts)}
}

func (f *EmailField) Validate(v any) (any, error) {
	out, err := f.StringField.Validate(v)
	if err != nil {
		return nil, err
	}
	if s := out.(string); s != "" {
		if err := validate.Var(s, "email"); err != nil {
			return nil, invalidf("value is not a valid email address")
		}
	}
	return out, nil
}

// URLField is a string field holding an absolute URL.
type URLField struct{ *StringField }

func URL(opts ...Option) *URLField {
	return &URLField{newString("url", false, opts)}
}

func (f *URLField) Validate(v any) (any, error) {
	out, err := f.StringField.Validate(v)
	if err != nil {
		return nil, err
	}
	if s := out.(string); s != "" {
		if err := validate.Var(s, "url"); err != nil {
			return nil, invalidf("value is not URL")
		}
	}
	return out, nil
}

type BoolField struct{ *FieldBase }

func Bool(opts ...Option) *BoolField {
	return &BoolField{newBase("bool", applyOptions(opts))}
}

func (f *BoolField) Validate(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, invalidf("value should be True or False")
	}
	if err := f.checkChoices(b); err != nil {
		return nil, err
	}
	return b, nil
}

// IntField holds int64 values. Integral floats are accepted since decoded
// JSON numbers are float64.
type IntField struct {
	*FieldBase
	bounds bounds
}

func Int(opts ...Option) *IntField {
	s := applyOptions(opts)
	return &IntField{FieldBase: newBase("int", s), bounds: s.bounds()}
}

func (f *IntField) Validate(v any) (any, error) {
	if _, isBool := v.(bool); isBool {
		return nil, invalidf("value can't be converted to int")
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, invalidf("value can't be converted to int")
	}
	if err := f.bounds.checkInt(n); err != nil {
		return nil, err
	}
	if err := f.checkChoices(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (f *IntField) FromWire(v any) (any, error) {
	n, ok := toInt64(v)
	if !ok {
		return nil, invalidf("wire value %T is not an integer", v)
	}
	return n, nil
}

type FloatField struct {
	*FieldBase
	bounds bounds
}

func Float(opts ...Option) *FloatField {
	s := applyOptions(opts)
	return &FloatField{FieldBase: newBase("float", s), bounds: s.bounds()}
}

func (f *FloatField) Validate(v any) (any, error) {
	if _, isBool := v.(bool); isBool {
		return nil, invalidf("value can't be converted to float")
	}
	x, ok := toFloat64(v)
	if !ok {
		return nil, invalidf("value can't be converted to float")
	}
	if err := f.bounds.check(x); err != nil {
		return nil, err
	}
	if err := f.checkChoices(x); err != nil {
		return nil, err
	}
	return x, nil
}

func (f *FloatField) FromWire(v any) (any, error) {
	x, ok := toFloat64(v)
	if !ok {
		return nil, invalidf("wire value %T is not a number", v)
	}
	return x, nil
}

// DateTimeField holds UTC times truncated to milliseconds, the precision of
// the wire format.
type DateTimeField struct{ *FieldBase }

func DateTime(opts ...Option) *DateTimeField {
	return &DateTimeField{newBase("datetime", applyOptions(opts))}
}

func (f *DateTimeField) Validate(v any) (any, error) {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case primitive.DateTime:
		t = x.Time()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil, invalidf("value is not datetime")
		}
		t = parsed
	default:
		return nil, invalidf("value is not datetime")
	}
	t = t.UTC().Truncate(time.Millisecond)
	if err := f.checkChoices(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (f *DateTimeField) ToWire(v any) any {
	return primitive.NewDateTimeFromTime(v.(time.Time))
}

func (f *DateTimeField) FromWire(v any) (any, error) {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC(), nil
	case time.Time:
		return x.UTC(), nil
	}
	return nil, invalidf("wire value %T is not datetime", v)
}

type ObjectIDField struct{ *FieldBase }

func ObjectID(opts ...Option) *ObjectIDField {
	return &ObjectIDField{newBase("objectid", applyOptions(opts))}
}

func (f *ObjectIDField) Validate(v any) (any, error) {
	var id primitive.ObjectID
	switch x := v.(type) {
	case primitive.ObjectID:
		id = x
	case string:
		parsed, err := primitive.ObjectIDFromHex(x)
		if err != nil {
			return nil, invalidf("value is not ObjectId")
		}
		id = parsed
	default:
		return nil, invalidf("value is not ObjectId")
	}
	if err := f.checkChoices(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (f *ObjectIDField) FromWire(v any) (any, error) {
	id, ok := v.(primitive.ObjectID)
	if !ok {
		return nil, invalidf("wire value %T is not ObjectId", v)
	}
	return id, nil
}

// UUIDField holds uuid.UUID values stored as their canonical string.
type UUIDField struct{ *FieldBase }

func UUID(opts ...Option) *UUIDField {
	return &UUIDField{newBase("uuid", applyOptions(opts))}
}

func (f *UUIDField) Validate(v any) (any, error) {
	var id uuid.UUID
	switch x := v.(type) {
	case uuid.UUID:
		id = x
	case string:
		parsed, err := uuid.Parse(x)
		if err != nil {
			return nil, invalidf("value is not UUID")
		}
		id = parsed
	default:
		return nil, invalidf("value is not UUID")
	}
	if err := f.checkChoices(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (f *UUIDField) ToWire(v any) any { return v.(uuid.UUID).String() }

func (f *UUIDField) FromWire(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return uuid.Parse(x)
	case primitive.Binary:
		return uuid.FromBytes(x.Data)
	}
	return nil, invalidf("wire value %T is not UUID", v)
}

// DecimalField holds primitive.Decimal128 values.
type DecimalField struct {
	*FieldBase
	bounds bounds
}

func Decimal(opts ...Option) *DecimalField {
	s := applyOptions(opts)
	return &DecimalField{FieldBase: newBase("decimal", s), bounds: s.bounds()}
}

func (f *DecimalField) Validate(v any) (any, error) {
	d, ok := toDecimal(v)
	if !ok {
		return nil, invalidf("value can't be converted to decimal")
	}
	r, ok := decimalRat(d)
	if !ok {
		return nil, invalidf("value is not a finite decimal")
	}
	x, _ := r.Float64()
	if err := f.bounds.check(x); err != nil {
		return nil, err
	}
	if err := f.checkChoices(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (f *DecimalField) FromWire(v any) (any, error) {
	d, ok := v.(primitive.Decimal128)
	if !ok {
		return nil, invalidf("wire value %T is not decimal", v)
	}
	return d, nil
}

func toDecimal(v any) (primitive.Decimal128, bool) {
	var s string
	switch x := v.(type) {
	case primitive.Decimal128:
		return x, true
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return primitive.Decimal128{}, false
	default:
		n, ok := toInt64(v)
		if !ok {
			return primitive.Decimal128{}, false
		}
		s = strconv.FormatInt(n, 10)
	}
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		return primitive.Decimal128{}, false
	}
	return d, true
}

func decimalRat(d primitive.Decimal128) (*big.Rat, bool) {
	bi, exp, err := d.BigInt()
	if err != nil {
		return nil, false
	}
	r := new(big.Rat).SetInt(bi)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil)
	if exp >= 0 {
		r.Mul(r, new(big.Rat).SetInt(scale))
	} else {
		r.Quo(r, new(big.Rat).SetInt(scale))
	}
	return r, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
