package odm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gogotex/docmodel/pkg/logger"
)

// Kind tells top-level documents from embedded documents.
type Kind int

const (
	KindDocument Kind = iota
	KindEmbedded
)

func (k Kind) String() string {
	if k == KindEmbedded {
		return "embedded"
	}
	return "document"
}

type MemberKind int

const (
	MemberField MemberKind = iota
	MemberSynonym
	MemberMeta
)

// Member is one entry of a class body.
type Member struct {
	Kind MemberKind
	Name string
	// Field is the declared field, or for a synonym declared by descriptor
	// the field it aliases.
	Field Field
	// Origin is the canonical field name a synonym aliases when declared by
	// name.
	Origin string
	Meta   Meta
}

// Decl collects a class declaration. Build turns it into a *Class exactly
// once; further calls return the same class or error.
type Decl struct {
	name    string
	kind    Kind
	bases   []*Class
	members []Member

	once  sync.Once
	class *Class
	err   error
}

// NewDocument starts the declaration of a top-level document class.
func NewDocument(name string) *Decl { return &Decl{name: name, kind: KindDocument} }

// NewEmbedded starts the declaration of an embedded document class.
func NewEmbedded(name string) *Decl { return &Decl{name: name, kind: KindEmbedded} }

// Extends adds direct base classes. Fields are inherited, options are not.
func (d *Decl) Extends(bases ...*Class) *Decl {
	d.bases = append(d.bases, bases...)
	return d
}

func (d *Decl) Field(name string, f Field) *Decl {
	d.members = append(d.members, Member{Kind: MemberField, Name: name, Field: f})
	return d
}

// Synonym declares name as an alias of the field named canonical.
func (d *Decl) Synonym(name, canonical string) *Decl {
	d.members = append(d.members, Member{Kind: MemberSynonym, Name: name, Origin: canonical})
	return d
}

// SynonymOf declares name as an alias of the field f, which may be
// declared in this class or any base class.
func (d *Decl) SynonymOf(name string, f Field) *Decl {
	d.members = append(d.members, Member{Kind: MemberSynonym, Name: name, Field: f})
	return d
}

func (d *Decl) Meta(m Meta) *Decl {
	d.members = append(d.members, Member{Kind: MemberMeta, Meta: m})
	return d
}

// Build assembles the schema, resolves options and registers the class.
func (d *Decl) Build() (*Class, error) {
	d.once.Do(func() {
		buildMu.Lock()
		defer buildMu.Unlock()
		d.class, d.err = d.build()
	})
	return d.class, d.err
}

// MustBuild is like Build but panics on a declaration error. Intended for
// package level class variables.
func (d *Decl) MustBuild() *Class {
	c, err := d.Build()
	if err != nil {
		panic(err)
	}
	return c
}

var buildMu sync.Mutex

func (d *Decl) build() (*Class, error) {
	if strings.TrimSpace(d.name) == "" {
		return nil, configErrorf("", "class name is required")
	}
	c := &Class{name: d.name, kind: d.kind, bases: append([]*Class(nil), d.bases...)}

	var meta Meta
	seen := make(map[string]bool)
	for i, m := range d.members {
		switch m.Kind {
		case MemberMeta:
			if meta != nil {
				return nil, configErrorf(d.name, "meta declared more than once")
			}
			meta = m.Meta
			if meta == nil {
				meta = Meta{}
			}
			continue
		case MemberField:
			if m.Field == nil {
				return nil, configErrorf(d.name, "field %q is nil", m.Name)
			}
		case MemberSynonym:
			if m.Field == nil && m.Origin == "" {
				return nil, configErrorf(d.name, "synonym %q names no field", m.Name)
			}
		default:
			return nil, configErrorf(d.name, "member %d has unknown kind %d", i, m.Kind)
		}
		if m.Name == "" {
			return nil, configErrorf(d.name, "member %d has no name", i)
		}
		if seen[m.Name] {
			return nil, configErrorf(d.name, "%q declared more than once", m.Name)
		}
		seen[m.Name] = true
		c.own = append(c.own, m)
	}
	for _, b := range d.bases {
		if b == nil {
			return nil, configErrorf(d.name, "nil base class")
		}
	}

	mro, err := linearize(d.name, c, d.bases)
	if err != nil {
		return nil, err
	}
	c.mro = mro

	schema, injected, err := assemble(c)
	if err != nil {
		return nil, err
	}
	if injected != nil {
		c.own = append(c.own, Member{Kind: MemberField, Name: IDField, Field: injected})
	}
	c.schema = schema

	for name, f := range schema.All() {
		if t, ok := f.(targetChecker); ok {
			if err := t.checkTarget(c); err != nil {
				return nil, configErrorf(d.name, "field %q: %v", name, err)
			}
		}
	}

	if c.options, err = resolveOptions(d.name, d.kind, meta); err != nil {
		return nil, err
	}

	Register(c)
	logger.Debugf("odm: built %s class %s with fields %v", c.kind, c.name, schema.names)
	return c, nil
}

func defaultIDField() Field {
	f := ObjectID(DefaultFunc(func() any { return primitive.NewObjectID() }))
	f.bind(IDField)
	return f
}

// Class is a built document class. It is immutable and safe for concurrent
// use; documents created from it are not.
type Class struct {
	name    string
	kind    Kind
	bases   []*Class
	own     []Member
	mro     []*Class
	schema  *Schema
	options *Options
}

func (c *Class) Name() string { return c.name }

func (c *Class) Kind() Kind { return c.kind }

func (c *Class) String() string { return c.name }

func (c *Class) Bases() []*Class { return append([]*Class(nil), c.bases...) }

// MRO returns the resolution order, c first.
func (c *Class) MRO() []*Class { return append([]*Class(nil), c.mro...) }

func (c *Class) Schema() *Schema { return c.schema }

func (c *Class) Options() *Options { return c.options }

// IsSubclassOf reports whether other appears in the resolution order of c.
// A class is a subclass of itself.
func (c *Class) IsSubclassOf(other *Class) bool {
	for _, k := range c.mro {
		if k == other {
			return true
		}
	}
	return false
}

// WirePath translates a dotted path of field names into wire names,
// descending into embedded documents and lists of them:
// "comments.author" -> "comments.user". Numeric segments pass through as
// list positions.
func (c *Class) WirePath(path string) (string, error) {
	parts := strings.Split(path, ".")
	out := make([]string, 0, len(parts))
	cur := c
	var prev Field
	for _, part := range parts {
		if prev != nil && isIndex(part) {
			if _, isList := prev.(*ListField); isList {
				out = append(out, part)
				continue
			}
		}
		if cur == nil {
			return "", fmt.Errorf("%w: %q has no subfield %q", ErrUnknownField, path, part)
		}
		f, ok := cur.schema.Field(part)
		if !ok {
			return "", fmt.Errorf("%w: %s has no field %q", ErrUnknownField, cur.name, part)
		}
		out = append(out, f.WireName())
		cur, prev = subclassOf(f), f
	}
	return strings.Join(out, "."), nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// subclassOf returns the embedded class a path can descend into through f.
func subclassOf(f Field) *Class {
	switch x := f.(type) {
	case *EmbeddedField:
		c, _ := x.class()
		return c
	case *ListField:
		return subclassOf(x.item)
	}
	return nil
}

// ClassRef points at a class either directly or by registered name. Name
// references resolve lazily, which allows forward and self references.
type ClassRef interface {
	resolve() (*Class, error)
	refName() string
}

func (c *Class) resolve() (*Class, error) { return c, nil }

func (c *Class) refName() string { return c.name }

type nameRef string

// ByName references a class by the name it is (or will be) registered under.
func ByName(name string) ClassRef { return nameRef(name) }

func (n nameRef) resolve() (*Class, error) {
	c, ok := Lookup(string(n))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, string(n))
	}
	return c, nil
}

func (n nameRef) refName() string { return string(n) }

type targetChecker interface {
	checkTarget(self *Class) error
}

// Registry maps class names to built classes. Registering a name again
// replaces the earlier class, and references by name resolve to the new one
// from then on.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

func (r *Registry) Register(c *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.classes[c.name]; ok && prev != c {
		logger.Warnf("odm: class %s registered again; references by name now resolve to the new class", c.name)
	}
	r.classes[c.name] = c
}

func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Names returns the registered class names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds c to the process-wide registry. Build does this for every
// class it builds.
func Register(c *Class) { defaultRegistry.Register(c) }

// Lookup finds a class in the process-wide registry.
func Lookup(name string) (*Class, bool) { return defaultRegistry.Lookup(name) }

// Classes returns the names of all registered classes, sorted.
func Classes() []string { return defaultRegistry.Names() }
