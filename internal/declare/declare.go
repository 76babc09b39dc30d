// Package declare builds document classes from YAML declarations.
//
//	classes:
//	  - name: Address
//	    kind: embedded
//	    fields:
//	      - {name: city, type: string}
//	  - name: User
//	    fields:
//	      - {name: name, type: string, max_length: 64}
//	      - {name: address, type: embedded, class: Address, required: false}
//	      - {name: created, type: datetime, default: $now}
//	    synonyms: {login: name}
//	    meta:
//	      collection_name: users
//	      default_sort: [-created]
package declare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"

	"github.com/gogotex/docmodel/pkg/logger"
	"github.com/gogotex/docmodel/pkg/odm"
)

// File is the top level of a declaration file.
type File struct {
	Classes []ClassSpec `yaml:"classes" validate:"required,min=1,dive"`
}

type ClassSpec struct {
	Name     string            `yaml:"name" validate:"required"`
	Kind     string            `yaml:"kind" validate:"omitempty,oneof=document embedded"`
	Extends  []string          `yaml:"extends"`
	Fields   []FieldSpec       `yaml:"fields" validate:"dive"`
	Synonyms map[string]string `yaml:"synonyms"`
	Meta     map[string]any    `yaml:"meta"`
}

// FieldSpec declares one field. Items describes the element of a list;
// Class names the target of an embedded or ref field.
type FieldSpec struct {
	Name       string     `yaml:"name" validate:"required"`
	Type       string     `yaml:"type" validate:"required,oneof=any string email url bool int float decimal datetime objectid uuid list embedded ref"`
	Required   *bool      `yaml:"required"`
	WireName   string     `yaml:"wire_name"`
	Default    any        `yaml:"default"`
	Choices    []any      `yaml:"choices"`
	AllowBlank *bool      `yaml:"allow_blank"`
	Pattern    string     `yaml:"pattern"`
	MinLength  *int       `yaml:"min_length" validate:"omitempty,min=0"`
	MaxLength  *int       `yaml:"max_length" validate:"omitempty,min=0"`
	Gt         *float64   `yaml:"gt"`
	Gte        *float64   `yaml:"gte"`
	Lt         *float64   `yaml:"lt"`
	Lte        *float64   `yaml:"lte"`
	Items      *FieldSpec `yaml:"items" validate:"-"`
	Class      string     `yaml:"class"`
}

var validate = validator.New()

// default factories usable as `default:` values
var factories = map[string]func() any{
	"$now":      func() any { return time.Now().UTC() },
	"$objectid": func() any { return primitive.NewObjectID() },
	"$uuid":     func() any { return uuid.New() },
}

// LoadFile reads and builds the declarations in path.
func LoadFile(path string) ([]*odm.Class, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	classes, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Infof("declare: loaded %d classes from %s", len(classes), path)
	return classes, nil
}

// Load decodes declarations and builds the classes in file order. A base
// named in extends must be declared earlier in the file or already
// registered.
func Load(r io.Reader) ([]*odm.Class, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("declare: empty document")
		}
		return nil, fmt.Errorf("declare: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("declare: %w", err)
	}
	out := make([]*odm.Class, 0, len(f.Classes))
	for _, cs := range f.Classes {
		c, err := cs.build()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (cs ClassSpec) build() (*odm.Class, error) {
	var d *odm.Decl
	if cs.Kind == "embedded" {
		d = odm.NewEmbedded(cs.Name)
	} else {
		d = odm.NewDocument(cs.Name)
	}
	bases := make([]*odm.Class, 0, len(cs.Extends))
	for _, name := range cs.Extends {
		b, ok := odm.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("declare %s: unknown base class %q", cs.Name, name)
		}
		bases = append(bases, b)
	}
	if len(bases) > 0 {
		d.Extends(bases...)
	}
	for _, fs := range cs.Fields {
		f, err := fs.field()
		if err != nil {
			return nil, fmt.Errorf("declare %s.%s: %w", cs.Name, fs.Name, err)
		}
		d.Field(fs.Name, f)
	}
	for _, name := range slices.Sorted(maps.Keys(cs.Synonyms)) {
		d.Synonym(name, cs.Synonyms[name])
	}
	if cs.Meta != nil {
		d.Meta(odm.Meta(cs.Meta))
	}
	return d.Build()
}

func (fs FieldSpec) options() []odm.Option {
	var opts []odm.Option
	if fs.Required != nil {
		if *fs.Required {
			opts = append(opts, odm.Required())
		} else {
			opts = append(opts, odm.Optional())
		}
	}
	if fs.WireName != "" {
		opts = append(opts, odm.WireName(fs.WireName))
	}
	if fs.Default != nil {
		if s, ok := fs.Default.(string); ok && factories[s] != nil {
			opts = append(opts, odm.DefaultFunc(factories[s]))
		} else {
			opts = append(opts, odm.Default(fs.Default))
		}
	}
	if len(fs.Choices) > 0 {
		opts = append(opts, odm.Choices(fs.Choices...))
	}
	if fs.AllowBlank != nil {
		opts = append(opts, odm.AllowBlank(*fs.AllowBlank))
	}
	if fs.Pattern != "" {
		opts = append(opts, odm.Pattern(fs.Pattern))
	}
	if fs.MinLength != nil {
		opts = append(opts, odm.MinLength(*fs.MinLength))
	}
	if fs.MaxLength != nil {
		opts = append(opts, odm.MaxLength(*fs.MaxLength))
	}
	if fs.Gt != nil {
		opts = append(opts, odm.Gt(*fs.Gt))
	}
	if fs.Gte != nil {
		opts = append(opts, odm.Gte(*fs.Gte))
	}
	if fs.Lt != nil {
		opts = append(opts, odm.Lt(*fs.Lt))
	}
	if fs.Lte != nil {
		opts = append(opts, odm.Lte(*fs.Lte))
	}
	return opts
}

func (fs FieldSpec) field() (odm.Field, error) {
	opts := fs.options()
	switch fs.Type {
	case "any":
		return odm.Any(opts...), nil
	case "string":
		return odm.String(opts...), nil
	case "email":
		return odm.Email(opts...), nil
	case "url":
		return odm.URL(opts...), nil
	case "bool":
		return odm.Bool(opts...), nil
	case "int":
		return odm.Int(opts...), nil
	case "float":
		return odm.Float(opts...), nil
	case "decimal":
		return odm.Decimal(opts...), nil
	case "datetime":
		return odm.DateTime(opts...), nil
	case "objectid":
		return odm.ObjectID(opts...), nil
	case "uuid":
		return odm.UUID(opts...), nil
	case "list":
		if fs.Items == nil {
			return nil, fmt.Errorf("list field needs items")
		}
		item, err := fs.Items.field()
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		return odm.List(item, opts...), nil
	case "embedded", "ref":
		if fs.Class == "" {
			return nil, fmt.Errorf("%s field needs class", fs.Type)
		}
		if fs.Type == "embedded" {
			return odm.Embedded(odm.ByName(fs.Class), opts...), nil
		}
		return odm.Ref(odm.ByName(fs.Class), opts...), nil
	}
	return nil, fmt.Errorf("unknown field type %q", fs.Type)
}
