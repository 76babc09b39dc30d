package odm

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Meta is the configuration block of a class declaration. Only the keys
// below are recognized; values may be typed driver values or the plain
// shapes produced by YAML/JSON decoding.
type Meta map[string]any

const (
	MetaCollectionName = "collection_name"
	MetaDefaultQuery   = "default_query"
	MetaDefaultSort    = "default_sort"
	MetaIndexes        = "indexes"
	MetaReadPreference = "read_preference"
	MetaReadConcern    = "read_concern"
	MetaWriteConcern   = "write_concern"
)

var metaKeys = map[string]bool{
	MetaCollectionName: true,
	MetaDefaultQuery:   true,
	MetaDefaultSort:    true,
	MetaIndexes:        true,
	MetaReadPreference: true,
	MetaReadConcern:    true,
	MetaWriteConcern:   true,
}

// Options is the resolved, read-only configuration of a class. Options are
// not inherited: each class resolves only its own Meta.
type Options struct {
	CollectionName string
	// DefaultQuery is AND-merged into every query when Scoped is set.
	DefaultQuery   bson.D
	DefaultSort    bson.D
	Indexes        []mongo.IndexModel
	ReadPreference *readpref.ReadPref
	ReadConcern    *readconcern.ReadConcern
	WriteConcern   *writeconcern.WriteConcern

	// IDField names the identifier field. Empty for embedded classes.
	IDField string
	// Scoped reports whether queries run through MergeQuery. Only document
	// classes are scoped.
	Scoped bool
}

// MergeQuery combines q with the default query: {$and: [default, q]}.
// q is returned unchanged when there is no default query.
func (o *Options) MergeQuery(q bson.D) bson.D {
	if !o.Scoped || len(o.DefaultQuery) == 0 {
		if q == nil {
			return bson.D{}
		}
		return q
	}
	if q == nil {
		q = bson.D{}
	}
	return bson.D{{Key: "$and", Value: bson.A{o.DefaultQuery, q}}}
}

// Sort returns s, or the default sort when s is empty.
func (o *Options) Sort(s bson.D) bson.D {
	if len(s) == 0 {
		return o.DefaultSort
	}
	return s
}

// Collection returns a handle on the class collection with the configured
// read preference and concerns. No I/O happens here.
func (o *Options) Collection(db *mongo.Database) *mongo.Collection {
	opts := options.Collection()
	if o.ReadPreference != nil {
		opts.SetReadPreference(o.ReadPreference)
	}
	if o.ReadConcern != nil {
		opts.SetReadConcern(o.ReadConcern)
	}
	if o.WriteConcern != nil {
		opts.SetWriteConcern(o.WriteConcern)
	}
	return db.Collection(o.CollectionName, opts)
}

func resolveOptions(class string, kind Kind, meta Meta) (*Options, error) {
	var unknown []string
	for k := range meta {
		if !metaKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ConfigError{
			Class: class,
			Msg:   "unrecognized meta options: " + strings.Join(unknown, ", "),
			Keys:  unknown,
		}
	}

	o := &Options{CollectionName: snakeCase(class)}
	if kind == KindDocument {
		o.IDField = IDField
		o.Scoped = true
	}

	var err error
	if v, ok := meta[MetaCollectionName]; ok {
		s, isStr := v.(string)
		if !isStr || s == "" {
			return nil, configErrorf(class, "%s must be a non-empty string", MetaCollectionName)
		}
		o.CollectionName = s
	}
	if v, ok := meta[MetaDefaultQuery]; ok {
		if o.DefaultQuery, err = queryOption(v); err != nil {
			return nil, configErrorf(class, "%s: %v", MetaDefaultQuery, err)
		}
	}
	if v, ok := meta[MetaDefaultSort]; ok {
		if o.DefaultSort, err = SortSpec(v); err != nil {
			return nil, configErrorf(class, "%s: %v", MetaDefaultSort, err)
		}
	}
	if v, ok := meta[MetaIndexes]; ok {
		if o.Indexes, err = indexesOption(v); err != nil {
			return nil, configErrorf(class, "%s: %v", MetaIndexes, err)
		}
	}
	if v, ok := meta[MetaReadPreference]; ok {
		if o.ReadPreference, err = readPrefOption(v); err != nil {
			return nil, configErrorf(class, "%s: %v", MetaReadPreference, err)
		}
	}
	if v, ok := meta[MetaReadConcern]; ok {
		switch rc := v.(type) {
		case *readconcern.ReadConcern:
			o.ReadConcern = rc
		case string:
			o.ReadConcern = &readconcern.ReadConcern{Level: rc}
		default:
			return nil, configErrorf(class, "%s: unsupported value %T", MetaReadConcern, v)
		}
	}
	if v, ok := meta[MetaWriteConcern]; ok {
		if o.WriteConcern, err = writeConcernOption(v); err != nil {
			return nil, configErrorf(class, "%s: %v", MetaWriteConcern, err)
		}
	}
	return o, nil
}

func queryOption(v any) (bson.D, error) {
	if d, ok := asRecord(v); ok {
		return d, nil
	}
	if m, ok := v.(map[any]any); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return sortedD(out), nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// SortSpec converts a sort expression into an ordered record. It accepts
// bson.D as is, or a list of field names where a leading '-' means
// descending: ["-created", "name"].
func SortSpec(v any) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	var items []any
	switch s := v.(type) {
	case string:
		items = []any{s}
	case []string:
		for _, x := range s {
			items = append(items, x)
		}
	default:
		var ok bool
		if items, ok = asSlice(v); !ok {
			return nil, fmt.Errorf("unsupported value %T", v)
		}
	}
	out := make(bson.D, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok || strings.TrimLeft(s, "+-") == "" {
			return nil, fmt.Errorf("invalid sort key %v", it)
		}
		switch s[0] {
		case '-':
			out = append(out, bson.E{Key: s[1:], Value: -1})
		case '+':
			out = append(out, bson.E{Key: s[1:], Value: 1})
		default:
			out = append(out, bson.E{Key: s, Value: 1})
		}
	}
	return out, nil
}

func indexesOption(v any) ([]mongo.IndexModel, error) {
	if models, ok := v.([]mongo.IndexModel); ok {
		return models, nil
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	out := make([]mongo.IndexModel, 0, len(items))
	for i, it := range items {
		if m, ok := it.(mongo.IndexModel); ok {
			out = append(out, m)
			continue
		}
		spec, ok := asData(it)
		if !ok {
			if mm, isAnyMap := it.(map[any]any); isAnyMap {
				spec = make(map[string]any, len(mm))
				for k, val := range mm {
					spec[fmt.Sprint(k)] = val
				}
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("index %d: unsupported value %T", i, it)
		}
		keys, err := SortSpec(spec["keys"])
		if err != nil || len(keys) == 0 {
			return nil, fmt.Errorf("index %d: keys must list at least one field", i)
		}
		opts := options.Index()
		if name, ok := spec["name"].(string); ok && name != "" {
			opts.SetName(name)
		}
		if unique, ok := spec["unique"].(bool); ok && unique {
			opts.SetUnique(true)
		}
		out = append(out, mongo.IndexModel{Keys: keys, Options: opts})
	}
	return out, nil
}

func readPrefOption(v any) (*readpref.ReadPref, error) {
	switch rp := v.(type) {
	case *readpref.ReadPref:
		return rp, nil
	case string:
		mode, err := readpref.ModeFromString(rp)
		if err != nil {
			return nil, err
		}
		return readpref.New(mode)
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func writeConcernOption(v any) (*writeconcern.WriteConcern, error) {
	switch wc := v.(type) {
	case *writeconcern.WriteConcern:
		return wc, nil
	case string:
		if wc == "majority" {
			return writeconcern.Majority(), nil
		}
		return &writeconcern.WriteConcern{W: wc}, nil
	}
	if n, ok := toInt64(v); ok && n >= 0 {
		return &writeconcern.WriteConcern{W: int(n)}, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}
