package odm

import (
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// ListField holds a list of values of one item field. Item errors are
// reported as a nested ValidationError keyed by item index.
type ListField struct {
	*FieldBase
	item   Field
	minLen int
	maxLen *int
}

// List declares a list of item values. MinLength and MaxLength bound the
// number of items.
func List(item Field, opts ...Option) *ListField {
	s := applyOptions(opts)
	f := &ListField{FieldBase: newBase("list", s), item: item, maxLen: s.maxLen}
	if s.minLen != nil {
		f.minLen = *s.minLen
	}
	if item == nil {
		f.declErr = errors.New("list item field is nil")
	} else if err := item.base().declErr; err != nil {
		f.declErr = fmt.Errorf("list item: %w", err)
	}
	return f
}

// Item returns the item field.
func (f *ListField) Item() Field { return f.item }

func (f *ListField) Validate(v any) (any, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, invalidf("value is not a list")
	}
	if len(items) < f.minLen {
		return nil, invalidf("list length is less than %d", f.minLen)
	}
	if f.maxLen != nil && len(items) > *f.maxLen {
		return nil, invalidf("list length is greater than %d", *f.maxLen)
	}
	errs := newValidationError("")
	out := make([]any, 0, len(items))
	for i, it := range items {
		val, err := f.item.Validate(it)
		if err != nil {
			errs.set(strconv.Itoa(i), err)
			continue
		}
		out = append(out, val)
	}
	if err := errs.asError(); err != nil {
		return nil, err
	}
	if err := f.checkChoices(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *ListField) ToWire(v any) any {
	items := v.([]any)
	out := make(bson.A, len(items))
	for i, it := range items {
		out[i] = f.item.ToWire(it)
	}
	return out
}

func (f *ListField) FromWire(v any) (any, error) {
	items, ok := asSlice(v)
	if !ok {
		return nil, invalidf("wire value %T is not a list", v)
	}
	out := make([]any, len(items))
	for i, it := range items {
		val, err := f.item.FromWire(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

func (f *ListField) checkTarget(self *Class) error {
	if t, ok := f.item.(targetChecker); ok {
		return t.checkTarget(self)
	}
	return nil
}

// EmbeddedField holds a *Document of an embedded class.
type EmbeddedField struct {
	*FieldBase
	ref ClassRef
}

// Embedded declares a field holding an embedded document of class ref.
func Embedded(ref ClassRef, opts ...Option) *EmbeddedField {
	f := &EmbeddedField{FieldBase: newBase("embedded", applyOptions(opts)), ref: ref}
	if ref == nil {
		f.declErr = errors.New("embedded class is nil")
	}
	return f
}

func (f *EmbeddedField) class() (*Class, error) { return f.ref.resolve() }

// Class resolves the embedded class.
func (f *EmbeddedField) Class() (*Class, error) { return f.class() }

func (f *EmbeddedField) Validate(v any) (any, error) {
	c, err := f.class()
	if err != nil {
		return nil, &FieldError{Msg: err.Error(), Err: err}
	}
	if doc, ok := v.(*Document); ok {
		if doc.class.IsSubclassOf(c) {
			return doc, nil
		}
		return nil, invalidf("value can't be converted to %s", c.name)
	}
	data, ok := asData(v)
	if !ok {
		return nil, invalidf("value can't be converted to %s", c.name)
	}
	doc, err := c.FromData(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *EmbeddedField) ToWire(v any) any {
	return v.(*Document).ToWire()
}

func (f *EmbeddedField) FromWire(v any) (any, error) {
	c, err := f.class()
	if err != nil {
		return nil, err
	}
	rec, ok := asRecord(v)
	if !ok {
		return nil, invalidf("wire value %T is not a document", v)
	}
	return c.FromWire(rec), nil
}

func (f *EmbeddedField) checkTarget(self *Class) error {
	return checkKind(f.ref, self, KindEmbedded)
}

// RefField holds the identifier of a document of class ref. A *Document
// of that class is accepted and reduced to its identifier.
type RefField struct {
	*FieldBase
	ref ClassRef
}

func Ref(ref ClassRef, opts ...Option) *RefField {
	f := &RefField{FieldBase: newBase("ref", applyOptions(opts)), ref: ref}
	if ref == nil {
		f.declErr = errors.New("referenced class is nil")
	}
	return f
}

// Class resolves the referenced class.
func (f *RefField) Class() (*Class, error) { return f.ref.resolve() }

func (f *RefField) target() (*Class, Field, error) {
	c, err := f.ref.resolve()
	if err != nil {
		return nil, nil, err
	}
	id, ok := c.schema.Field(IDField)
	if !ok {
		return nil, nil, fmt.Errorf("%s has no %s field", c.name, IDField)
	}
	return c, id, nil
}

func (f *RefField) idField() (Field, error) {
	_, id, err := f.target()
	return id, err
}

func (f *RefField) Validate(v any) (any, error) {
	c, id, err := f.target()
	if err != nil {
		return nil, &FieldError{Msg: err.Error(), Err: err}
	}
	if doc, ok := v.(*Document); ok {
		if !doc.class.IsSubclassOf(c) {
			return nil, invalidf("value is not a %s document", c.name)
		}
		val, set := doc.Get(IDField)
		if !set {
			return nil, invalidf("referenced document has no %s", IDField)
		}
		return val, nil
	}
	return id.Validate(v)
}

func (f *RefField) ToWire(v any) any {
	id, err := f.idField()
	if err != nil {
		return v
	}
	return id.ToWire(v)
}

func (f *RefField) FromWire(v any) (any, error) {
	id, err := f.idField()
	if err != nil {
		return nil, err
	}
	return id.FromWire(v)
}

func (f *RefField) checkTarget(self *Class) error {
	return checkKind(f.ref, self, KindDocument)
}

// checkKind verifies a class reference at build time. Name references that
// are not registered yet are resolved later.
func checkKind(ref ClassRef, self *Class, want Kind) error {
	var target *Class
	if ref.refName() == self.name {
		target = self
	} else if c, err := ref.resolve(); err == nil {
		target = c
	} else {
		return nil
	}
	if target.kind != want {
		return fmt.Errorf("%s is a %s class, want %s", target.name, target.kind, want)
	}
	return nil
}
