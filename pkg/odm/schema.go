package odm

import (
	"iter"

	"github.com/gogotex/docmodel/pkg/logger"
)

// IDField is the name (and wire name) of the identifier field of document
// classes.
const IDField = "_id"

// Schema is the ordered field table of a class. It is built once per class
// and read-only afterwards, so it is safe for concurrent use.
type Schema struct {
	names  []string
	fields map[string]Field
	// canonical name -> synonym used when constructing from data
	synonyms map[string]string
	// every declared synonym -> canonical name
	aliases map[string]string
	byWire  map[string]string
}

func newSchema() *Schema {
	return &Schema{
		fields:   make(map[string]Field),
		synonyms: make(map[string]string),
		aliases:  make(map[string]string),
		byWire:   make(map[string]string),
	}
}

// Names returns the canonical field names in schema order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Schema) Len() int { return len(s.names) }

// Field returns the field declared as name. Synonyms resolve to their
// canonical field.
func (s *Schema) Field(name string) (Field, bool) {
	canonical, ok := s.Canonical(name)
	if !ok {
		return nil, false
	}
	return s.fields[canonical], true
}

// Canonical resolves a field or synonym name to the canonical field name.
func (s *Schema) Canonical(name string) (string, bool) {
	if _, ok := s.fields[name]; ok {
		return name, true
	}
	if c, ok := s.aliases[name]; ok {
		return c, true
	}
	return "", false
}

// Synonym returns the synonym looked up for canonical during construction.
func (s *Schema) Synonym(canonical string) (string, bool) {
	syn, ok := s.synonyms[canonical]
	return syn, ok
}

// Synonyms returns a copy of the canonical -> synonym table.
func (s *Schema) Synonyms() map[string]string {
	out := make(map[string]string, len(s.synonyms))
	for k, v := range s.synonyms {
		out[k] = v
	}
	return out
}

// ByWireName returns the canonical name of the field stored under wire.
func (s *Schema) ByWireName(wire string) (string, bool) {
	name, ok := s.byWire[wire]
	return name, ok
}

// All iterates fields in schema order.
func (s *Schema) All() iter.Seq2[string, Field] {
	return func(yield func(string, Field) bool) {
		for _, name := range s.names {
			if !yield(name, s.fields[name]) {
				return
			}
		}
	}
}

// put inserts or replaces a field. A replaced field keeps the position
// where its name first appeared.
func (s *Schema) put(name string, f Field) {
	if _, ok := s.fields[name]; !ok {
		s.names = append(s.names, name)
	}
	s.fields[name] = f
}

type pendingSynonym struct {
	class  string
	name   string
	origin string
	field  Field
}

// assemble walks the resolution order of c from the oldest ancestor to c
// itself, collecting fields and synonyms. For document classes without a
// declared identifier it returns the field to inject.
func assemble(c *Class) (*Schema, Field, error) {
	s := newSchema()
	var pending []pendingSynonym
	for i := len(c.mro) - 1; i >= 0; i-- {
		k := c.mro[i]
		for _, m := range k.own {
			switch m.Kind {
			case MemberField:
				m.Field.base().bind(m.Name)
				s.put(m.Name, m.Field)
			case MemberSynonym:
				pending = append(pending, pendingSynonym{class: k.name, name: m.Name, origin: m.Origin, field: m.Field})
			}
		}
	}

	for _, p := range pending {
		origin := p.origin
		if p.field != nil {
			origin = ""
			for _, name := range s.names {
				if s.fields[name] == p.field {
					origin = name
					break
				}
			}
			if origin == "" {
				return nil, nil, configErrorf(c.name, "synonym %q refers to a field that is not part of the class", p.name)
			}
		}
		if _, ok := s.fields[origin]; !ok {
			return nil, nil, configErrorf(c.name, "synonym %q refers to unknown field %q", p.name, origin)
		}
		if _, clash := s.fields[p.name]; clash {
			return nil, nil, configErrorf(c.name, "synonym %q shadows a field of the same name", p.name)
		}
		if prev, ok := s.synonyms[origin]; ok && prev != p.name {
			logger.Warnf("odm: %s: synonym %q for field %q overrides synonym %q declared earlier", c.name, p.name, origin, prev)
		}
		s.synonyms[origin] = p.name
		s.aliases[p.name] = origin
	}

	var injected Field
	if c.kind == KindDocument {
		if f, ok := s.fields[IDField]; ok {
			if !f.Required() {
				return nil, nil, configErrorf(c.name, "'%s' field should be required", IDField)
			}
		} else {
			injected = defaultIDField()
			s.put(IDField, injected)
		}
	}

	for _, name := range s.names {
		f := s.fields[name]
		if b := f.base(); b.declErr != nil {
			return nil, nil, configErrorf(c.name, "field %q: %v", name, b.declErr)
		}
		wire := f.WireName()
		if other, dup := s.byWire[wire]; dup {
			return nil, nil, configErrorf(c.name, "fields %q and %q share wire name %q", other, name, wire)
		}
		s.byWire[wire] = name
	}
	return s, injected, nil
}

// BuildSchema recomputes the schema of c from its declarations. The result
// is equal to c.Schema(); it exists so callers can check that building is
// deterministic.
func BuildSchema(c *Class) (*Schema, error) {
	s, _, err := assemble(c)
	return s, err
}
