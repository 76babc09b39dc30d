package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gogotex/docmodel/pkg/odm"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document id")
)

// Repository stores wire records of document classes. Filters, sorts and
// updates are wire level: keys are wire names, not field names. Callers are
// expected to have merged the class default query already.
type Repository interface {
	Insert(ctx context.Context, c *odm.Class, rec bson.D) error
	// Replace swaps the first record matching filter for rec. With upsert
	// set, rec is inserted when nothing matches.
	Replace(ctx context.Context, c *odm.Class, filter, rec bson.D, upsert bool) (matched int64, err error)
	FindOne(ctx context.Context, c *odm.Class, filter bson.D) (bson.D, error)
	Find(ctx context.Context, c *odm.Class, filter bson.D, opts FindOptions) ([]bson.D, error)
	Count(ctx context.Context, c *odm.Class, filter bson.D) (int64, error)
	// UpdateOne applies $set, $unset and $inc to the first matching record.
	UpdateOne(ctx context.Context, c *odm.Class, filter, update bson.D) (matched int64, err error)
	DeleteOne(ctx context.Context, c *odm.Class, filter bson.D) (deleted int64, err error)
}

// Indexer is implemented by repositories that can create the indexes
// declared in class options.
type Indexer interface {
	CreateIndexes(ctx context.Context, c *odm.Class) ([]string, error)
}

type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// idKey renders an identifier wire value as a string usable in keys.
func idKey(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return fmt.Sprintf("%v", v)
}

func recordID(rec bson.D) (any, bool) {
	for _, e := range rec {
		if e.Key == odm.IDField {
			return e.Value, true
		}
	}
	return nil, false
}
