package odm

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/pkg/logger"
)

// ToWire converts d to an ordered wire record: set fields only, in schema
// order, keyed by wire name. Unset fields are absent, never null.
func (d *Document) ToWire() bson.D {
	out := make(bson.D, 0, len(d.values))
	for name, f := range d.class.schema.All() {
		v, ok := d.values[name]
		if !ok {
			continue
		}
		out = append(out, bson.E{Key: f.WireName(), Value: f.ToWire(v)})
	}
	return out
}

// FromWire loads a trusted wire record without validation. Unknown keys are
// ignored and missing keys leave fields unset. A value a field cannot
// convert leaves that field unset as well; it is logged and reported to the
// observer but never returned as an error.
func (c *Class) FromWire(rec bson.D) *Document {
	doc := c.New()
	for name, f := range c.schema.All() {
		raw, ok := lookup(rec, f.WireName())
		if !ok {
			continue
		}
		v, err := f.FromWire(raw)
		if err != nil {
			logger.Debugf("odm: %s.%s: dropped wire value: %v", c.name, name, err)
			currentObserver().WireValueDropped(c.name, name)
			continue
		}
		doc.values[name] = v
	}
	return doc
}

// LoadWire replaces all values of d with those loaded from rec, the way
// FromWire loads them.
func (d *Document) LoadWire(rec bson.D) {
	d.values = d.class.FromWire(rec).values
}

// FromRaw decodes BSON bytes and loads them through FromWire. Only a
// decoding failure is an error.
func (c *Class) FromRaw(raw bson.Raw) (*Document, error) {
	var rec bson.D
	if err := bson.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return c.FromWire(rec), nil
}
