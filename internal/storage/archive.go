// Package storage archives wire records of documents as MongoDB Extended
// JSON objects in a MinIO bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gogotex/docmodel/pkg/metrics"
	"github.com/gogotex/docmodel/pkg/odm"
)

var ErrNotFound = errors.New("archived record not found")

const contentType = "application/json"

type objectStore interface {
	put(ctx context.Context, key string, data []byte, contentType string) error
	get(ctx context.Context, key string) ([]byte, error)
	presign(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Archive stores one object per document under "<collection>/<id>.json".
type Archive struct {
	store objectStore
}

// NewArchive connects to MinIO and ensures the bucket exists.
func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	s, err := newMinIOStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Archive{store: s}, nil
}

// Key returns the object key for the identifier wire value id.
func Key(c *odm.Class, id any) string {
	var s string
	switch v := id.(type) {
	case primitive.ObjectID:
		s = v.Hex()
	default:
		s = fmt.Sprint(v)
	}
	return c.Options().CollectionName + "/" + s + ".json"
}

func observe(op string, err error) error {
	metrics.ObserveStore("archive", op, err)
	return err
}

// Put writes rec as canonical Extended JSON so that types survive the
// round trip.
func (a *Archive) Put(ctx context.Context, c *odm.Class, rec bson.D) error {
	var id any
	for _, e := range rec {
		if e.Key == odm.IDField {
			id = e.Value
		}
	}
	if id == nil {
		return fmt.Errorf("archive %s: record has no %s", c.Name(), odm.IDField)
	}
	data, err := bson.MarshalExtJSON(rec, true, false)
	if err != nil {
		return fmt.Errorf("archive %s: %w", c.Name(), err)
	}
	return observe("put", a.store.put(ctx, Key(c, id), data, contentType))
}

// Get loads the archived record of the document with identifier id through
// the trusted wire path.
func (a *Archive) Get(ctx context.Context, c *odm.Class, id any) (*odm.Document, error) {
	key, err := a.key(c, id)
	if err != nil {
		return nil, err
	}
	data, err := a.store.get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observe("get", nil)
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, observe("get", err)
	}
	observe("get", nil)
	var rec bson.D
	if err := bson.UnmarshalExtJSON(data, true, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return c.FromWire(rec), nil
}

// PresignedURL returns a GET URL for the archived record, valid for
// expires.
func (a *Archive) PresignedURL(ctx context.Context, c *odm.Class, id any, expires time.Duration) (string, error) {
	key, err := a.key(c, id)
	if err != nil {
		return "", err
	}
	u, err := a.store.presign(ctx, key, expires)
	return u, observe("presign", err)
}

func (a *Archive) key(c *odm.Class, id any) (string, error) {
	q, err := c.IDQuery(id)
	if err != nil {
		return "", err
	}
	return Key(c, q[0].Value), nil
}
