package odm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is an instance of a class. Only fields present in its value map
// are set; an unset field differs from a field holding a zero value.
//
// A Document is not safe for concurrent mutation.
type Document struct {
	class  *Class
	values map[string]any
}

// New returns an empty document with no field set.
func (c *Class) New() *Document {
	return &Document{class: c, values: make(map[string]any, c.schema.Len())}
}

// FromData validates user supplied values into a document. For every field,
// in schema order, the value is looked up under the canonical name, then
// under the registered synonym, then taken from the field default. Every
// field is checked; all failures are returned together as a
// *ValidationError keyed by canonical field name.
func (c *Class) FromData(raw map[string]any) (*Document, error) {
	doc := c.New()
	errs := newValidationError(c.name)
	for name, f := range c.schema.All() {
		v, ok := raw[name]
		if !ok {
			if syn, hasSyn := c.schema.synonyms[name]; hasSyn {
				v, ok = raw[syn]
			}
		}
		if !ok {
			v, ok = f.Default()
		}
		if !ok {
			if f.Required() {
				errs.set(name, requiredError())
			}
			continue
		}
		val, err := f.Validate(v)
		if err != nil {
			errs.set(name, err)
			continue
		}
		doc.values[name] = val
	}
	if err := errs.asError(); err != nil {
		currentObserver().ValidationFailed(c.name, errs.Keys())
		return nil, err
	}
	currentObserver().DocumentConstructed(c.name)
	return doc, nil
}

// Class returns the class of d.
func (d *Document) Class() *Class { return d.class }

// Get returns the value of a field or synonym and whether it is set.
func (d *Document) Get(name string) (any, bool) {
	canonical, ok := d.class.schema.Canonical(name)
	if !ok {
		return nil, false
	}
	v, ok := d.values[canonical]
	return v, ok
}

// Value returns the value of a field, or nil when unset.
func (d *Document) Value(name string) any {
	v, _ := d.Get(name)
	return v
}

// Has reports whether the field is set.
func (d *Document) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// Set validates v through the field and stores the normalized value. A
// failure is returned as a *ValidationError with a single entry.
func (d *Document) Set(name string, v any) error {
	canonical, ok := d.class.schema.Canonical(name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, d.class.name, name)
	}
	val, err := d.class.schema.fields[canonical].Validate(v)
	if err != nil {
		errs := newValidationError(d.class.name)
		errs.set(canonical, err)
		currentObserver().ValidationFailed(d.class.name, []string{canonical})
		return errs
	}
	d.values[canonical] = val
	return nil
}

// Unset removes the field value so that the field is absent from the wire
// record.
func (d *Document) Unset(name string) error {
	canonical, ok := d.class.schema.Canonical(name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, d.class.name, name)
	}
	delete(d.values, canonical)
	return nil
}

// ID returns the identifier value, or nil for embedded documents and
// documents without one.
func (d *Document) ID() any {
	return d.values[IDField]
}

// IdentifierWireValue returns the identifier in its wire form, for point
// lookups.
func (d *Document) IdentifierWireValue() (any, bool) {
	v, ok := d.values[IDField]
	if !ok {
		return nil, false
	}
	return d.class.schema.fields[IDField].ToWire(v), true
}

// QueryID returns the filter {_id: <identifier>} addressing d.
func (d *Document) QueryID() bson.D {
	v, _ := d.IdentifierWireValue()
	return bson.D{{Key: IDField, Value: v}}
}

// ParseID converts the text form of an identifier, as found in a URL or a
// storage key, into an identifier value. The text is tried as is first,
// then as an integer.
func (c *Class) ParseID(s string) (any, error) {
	f, ok := c.schema.fields[IDField]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s field", ErrUnknownField, c.name, IDField)
	}
	v, err := f.Validate(s)
	if err == nil {
		return v, nil
	}
	if n, perr := strconv.ParseInt(s, 10, 64); perr == nil {
		if v, nerr := f.Validate(n); nerr == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", c.name, IDField, err)
}

// IDQuery validates id and returns the filter {_id: <wire identifier>}.
func (c *Class) IDQuery(id any) (bson.D, error) {
	f, ok := c.schema.fields[IDField]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s field", ErrUnknownField, c.name, IDField)
	}
	v, err := f.Validate(id)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, IDField, err)
	}
	return bson.D{{Key: IDField, Value: f.ToWire(v)}}, nil
}

// Fields returns the set field names in schema order.
func (d *Document) Fields() []string {
	out := make([]string, 0, len(d.values))
	for _, name := range d.class.schema.names {
		if _, ok := d.values[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Equal reports whether both documents are of the same class and hold equal
// values for the same set of fields.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.class != other.class || len(d.values) != len(other.values) {
		return false
	}
	for k, v := range d.values {
		ov, ok := other.values[k]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case *Document:
		y, ok := b.(*Document)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// MarshalJSON renders set fields in schema order, keyed by canonical name.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.values[name])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) String() string {
	return fmt.Sprintf("%s%v", d.class.name, d.Fields())
}
