package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/pkg/metrics"
	"github.com/gogotex/docmodel/pkg/odm"
)

// recordStore is the key/value layer under scanRepo: whole records per
// collection, addressed by identifier key.
type recordStore interface {
	all(ctx context.Context, collection string) ([]bson.D, error)
	// put stores rec under id. With create set it fails with ErrDuplicate
	// when id is taken.
	put(ctx context.Context, collection, id string, rec bson.D, create bool) error
	del(ctx context.Context, collection, id string) error
}

// scanRepo implements Repository for stores without a query engine by
// loading a collection and filtering it with match.
type scanRepo struct {
	backend string
	store   recordStore
}

// normalize round-trips rec through BSON so stored records have the same
// shape a database would return: nested bson.D and bson.A, no Go-only types.
func normalize(rec bson.D) (bson.D, error) {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out bson.D
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scanRepo) observe(op string, err error) error {
	metrics.ObserveStore(r.backend, op, err)
	return err
}

func (r *scanRepo) Insert(ctx context.Context, c *odm.Class, rec bson.D) error {
	return r.observe("insert", r.insert(ctx, c, rec))
}

func (r *scanRepo) insert(ctx context.Context, c *odm.Class, rec bson.D) error {
	id, ok := recordID(rec)
	if !ok {
		return fmt.Errorf("insert into %s: record has no %s", c.Options().CollectionName, odm.IDField)
	}
	norm, err := normalize(rec)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", c.Options().CollectionName, err)
	}
	return r.store.put(ctx, c.Options().CollectionName, idKey(id), norm, true)
}

func (r *scanRepo) find(ctx context.Context, c *odm.Class, filter bson.D) ([]bson.D, error) {
	recs, err := r.store.all(ctx, c.Options().CollectionName)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if match(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *scanRepo) first(ctx context.Context, c *odm.Class, filter bson.D) (bson.D, error) {
	recs, err := r.find(ctx, c, filter)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (r *scanRepo) Replace(ctx context.Context, c *odm.Class, filter, rec bson.D, upsert bool) (int64, error) {
	n, err := r.replace(ctx, c, filter, rec, upsert)
	return n, r.observe("replace", err)
}

func (r *scanRepo) replace(ctx context.Context, c *odm.Class, filter, rec bson.D, upsert bool) (int64, error) {
	coll := c.Options().CollectionName
	old, err := r.first(ctx, c, filter)
	if err == ErrNotFound {
		if !upsert {
			return 0, nil
		}
		return 0, r.insert(ctx, c, rec)
	}
	if err != nil {
		return 0, err
	}
	oldID, _ := recordID(old)
	newID, ok := recordID(rec)
	if !ok {
		rec = append(bson.D{{Key: odm.IDField, Value: oldID}}, rec...)
		newID = oldID
	}
	if idKey(newID) != idKey(oldID) {
		return 0, fmt.Errorf("replace in %s: the %s field cannot be modified", coll, odm.IDField)
	}
	norm, err := normalize(rec)
	if err != nil {
		return 0, fmt.Errorf("replace in %s: %w", coll, err)
	}
	return 1, r.store.put(ctx, coll, idKey(oldID), norm, false)
}

func (r *scanRepo) FindOne(ctx context.Context, c *odm.Class, filter bson.D) (bson.D, error) {
	rec, err := r.first(ctx, c, filter)
	if err == ErrNotFound {
		r.observe("find_one", nil)
		return nil, err
	}
	return rec, r.observe("find_one", err)
}

func (r *scanRepo) Find(ctx context.Context, c *odm.Class, filter bson.D, opts FindOptions) ([]bson.D, error) {
	recs, err := r.find(ctx, c, filter)
	if err != nil {
		return nil, r.observe("find", err)
	}
	sortRecords(recs, opts.Sort)
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(recs)) {
			recs = recs[:0]
		} else {
			recs = recs[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(recs)) {
		recs = recs[:opts.Limit]
	}
	r.observe("find", nil)
	return recs, nil
}

func (r *scanRepo) Count(ctx context.Context, c *odm.Class, filter bson.D) (int64, error) {
	recs, err := r.find(ctx, c, filter)
	if err != nil {
		return 0, r.observe("count", err)
	}
	r.observe("count", nil)
	return int64(len(recs)), nil
}

func (r *scanRepo) UpdateOne(ctx context.Context, c *odm.Class, filter, update bson.D) (int64, error) {
	n, err := r.updateOne(ctx, c, filter, update)
	return n, r.observe("update", err)
}

func (r *scanRepo) updateOne(ctx context.Context, c *odm.Class, filter, update bson.D) (int64, error) {
	coll := c.Options().CollectionName
	rec, err := r.first(ctx, c, filter)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	updated, err := applyUpdate(rec, update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", coll, err)
	}
	norm, err := normalize(updated)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", coll, err)
	}
	id, _ := recordID(rec)
	return 1, r.store.put(ctx, coll, idKey(id), norm, false)
}

func (r *scanRepo) DeleteOne(ctx context.Context, c *odm.Class, filter bson.D) (int64, error) {
	n, err := r.deleteOne(ctx, c, filter)
	return n, r.observe("delete", err)
}

func (r *scanRepo) deleteOne(ctx context.Context, c *odm.Class, filter bson.D) (int64, error) {
	rec, err := r.first(ctx, c, filter)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, _ := recordID(rec)
	return 1, r.store.del(ctx, c.Options().CollectionName, idKey(id))
}
