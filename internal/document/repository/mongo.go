package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gogotex/docmodel/pkg/metrics"
	"github.com/gogotex/docmodel/pkg/odm"
)

// MongoRepo implements Repository on a MongoDB database. Each class maps to
// the collection named in its options, opened with the class read
// preference and concerns.
type MongoRepo struct {
	db *mongo.Database
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{db: db}
}

func (m *MongoRepo) col(c *odm.Class) *mongo.Collection {
	return c.Options().Collection(m.db)
}

func observe(op string, err error) error {
	metrics.ObserveStore("mongo", op, err)
	return err
}

func (m *MongoRepo) Insert(ctx context.Context, c *odm.Class, rec bson.D) error {
	_, err := m.col(c).InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		err = ErrDuplicate
	}
	return observe("insert", err)
}

func (m *MongoRepo) Replace(ctx context.Context, c *odm.Class, filter, rec bson.D, upsert bool) (int64, error) {
	res, err := m.col(c).ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(upsert))
	if err != nil {
		return 0, observe("replace", err)
	}
	observe("replace", nil)
	return res.MatchedCount, nil
}

func (m *MongoRepo) FindOne(ctx context.Context, c *odm.Class, filter bson.D) (bson.D, error) {
	var rec bson.D
	err := m.col(c).FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			observe("find_one", nil)
			return nil, ErrNotFound
		}
		return nil, observe("find_one", err)
	}
	observe("find_one", nil)
	return rec, nil
}

func (m *MongoRepo) Find(ctx context.Context, c *odm.Class, filter bson.D, opts FindOptions) ([]bson.D, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	cur, err := m.col(c).Find(ctx, filter, fo)
	if err != nil {
		return nil, observe("find", err)
	}
	defer cur.Close(ctx)
	out := []bson.D{}
	for cur.Next(ctx) {
		var rec bson.D
		if err := cur.Decode(&rec); err != nil {
			return nil, observe("find", err)
		}
		out = append(out, rec)
	}
	return out, observe("find", cur.Err())
}

func (m *MongoRepo) Count(ctx context.Context, c *odm.Class, filter bson.D) (int64, error) {
	n, err := m.col(c).CountDocuments(ctx, filter)
	return n, observe("count", err)
}

func (m *MongoRepo) UpdateOne(ctx context.Context, c *odm.Class, filter, update bson.D) (int64, error) {
	res, err := m.col(c).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, observe("update", err)
	}
	observe("update", nil)
	return res.MatchedCount, nil
}

func (m *MongoRepo) DeleteOne(ctx context.Context, c *odm.Class, filter bson.D) (int64, error) {
	res, err := m.col(c).DeleteOne(ctx, filter)
	if err != nil {
		return 0, observe("delete", err)
	}
	observe("delete", nil)
	return res.DeletedCount, nil
}

// CreateIndexes creates the indexes declared in the class options.
func (m *MongoRepo) CreateIndexes(ctx context.Context, c *odm.Class) ([]string, error) {
	models := c.Options().Indexes
	if len(models) == 0 {
		return nil, nil
	}
	names, err := m.col(c).Indexes().CreateMany(ctx, models)
	return names, observe("create_indexes", err)
}

// Ping checks the database connection.
func (m *MongoRepo) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, nil)
}
