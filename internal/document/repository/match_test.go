package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMatch(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := bson.D{
		{Key: "_id", Value: "n1"},
		{Key: "name", Value: "Ann"},
		{Key: "age", Value: int32(30)},
		{Key: "score", Value: 4.5},
		{Key: "active", Value: true},
		{Key: "seen", Value: primitive.NewDateTimeFromTime(when)},
		{Key: "tags", Value: bson.A{"go", "db"}},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Oslo"}, {Key: "zip", Value: "0150"}}},
		{Key: "items", Value: bson.A{
			bson.D{{Key: "sku", Value: "a"}, {Key: "qty", Value: int32(1)}},
			bson.D{{Key: "sku", Value: "b"}, {Key: "qty", Value: int32(5)}},
		}},
	}

	cases := []struct {
		name   string
		filter bson.D
		want   bool
	}{
		{"empty", bson.D{}, true},
		{"equal", bson.D{{Key: "name", Value: "Ann"}}, true},
		{"equal across numeric types", bson.D{{Key: "age", Value: 30}}, true},
		{"not equal", bson.D{{Key: "name", Value: "Bob"}}, false},
		{"null matches missing", bson.D{{Key: "nickname", Value: nil}}, true},
		{"array membership", bson.D{{Key: "tags", Value: "db"}}, true},
		{"whole array", bson.D{{Key: "tags", Value: bson.A{"go", "db"}}}, true},
		{"dotted path", bson.D{{Key: "address.city", Value: "Oslo"}}, true},
		{"dotted path through array", bson.D{{Key: "items.sku", Value: "b"}}, true},
		{"array index", bson.D{{Key: "items.0.sku", Value: "b"}}, false},
		{"embedded document", bson.D{{Key: "address", Value: bson.D{{Key: "city", Value: "Oslo"}, {Key: "zip", Value: "0150"}}}}, true},
		{"gt", bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: 29}}}}, true},
		{"gte and lt", bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 30}, {Key: "$lt", Value: 30}}}}, false},
		{"lte float", bson.D{{Key: "score", Value: bson.D{{Key: "$lte", Value: 4.5}}}}, true},
		{"gt across array", bson.D{{Key: "items.qty", Value: bson.D{{Key: "$gt", Value: 4}}}}, true},
		{"string compare", bson.D{{Key: "name", Value: bson.D{{Key: "$lt", Value: "B"}}}}, true},
		{"time compare", bson.D{{Key: "seen", Value: bson.D{{Key: "$gt", Value: when.Add(-time.Hour)}}}}, true},
		{"mixed types never compare", bson.D{{Key: "name", Value: bson.D{{Key: "$gt", Value: 1}}}}, false},
		{"ne", bson.D{{Key: "name", Value: bson.D{{Key: "$ne", Value: "Bob"}}}}, true},
		{"in", bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"Bob", "Ann"}}}}}, true},
		{"nin", bson.D{{Key: "tags", Value: bson.D{{Key: "$nin", Value: bson.A{"db"}}}}}, false},
		{"exists", bson.D{{Key: "address.zip", Value: bson.D{{Key: "$exists", Value: true}}}}, true},
		{"not exists", bson.D{{Key: "nickname", Value: bson.D{{Key: "$exists", Value: false}}}}, true},
		{"and", bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "name", Value: "Ann"}},
			bson.D{{Key: "active", Value: true}},
		}}}, true},
		{"or", bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: "Bob"}},
			bson.D{{Key: "age", Value: 30}},
		}}}, true},
		{"nor", bson.D{{Key: "$nor", Value: bson.A{
			bson.D{{Key: "name", Value: "Bob"}},
			bson.D{{Key: "age", Value: 30}},
		}}}, false},
		{"logical with non list", bson.D{{Key: "$or", Value: "x"}}, false},
		{"map filter", bson.D{{Key: "age", Value: bson.M{"$gte": 18}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, match(r, tc.filter))
		})
	}
}

func TestSortRecords(t *testing.T) {
	recs := []bson.D{
		{{Key: "_id", Value: 1}, {Key: "k", Value: "b"}, {Key: "n", Value: 2}},
		{{Key: "_id", Value: 2}, {Key: "n", Value: 1}},
		{{Key: "_id", Value: 3}, {Key: "k", Value: "a"}, {Key: "n", Value: 2}},
	}
	sortRecords(recs, bson.D{{Key: "n", Value: -1}, {Key: "k", Value: 1}})
	assert.Equal(t, 3, recs[0][0].Value)
	assert.Equal(t, 1, recs[1][0].Value)
	assert.Equal(t, 2, recs[2][0].Value)

	// missing values sort first
	sortRecords(recs, bson.D{{Key: "k", Value: 1}})
	assert.Equal(t, 2, recs[0][0].Value)
}

func TestApplyUpdate(t *testing.T) {
	r := bson.D{
		{Key: "_id", Value: "x"},
		{Key: "count", Value: int32(2)},
		{Key: "ratio", Value: 0.5},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Oslo"}, {Key: "zip", Value: "0150"}}},
	}
	got, err := applyUpdate(r, bson.D{
		{Key: "$inc", Value: bson.D{{Key: "count", Value: 3}, {Key: "ratio", Value: 1}, {Key: "fresh", Value: 7}}},
		{Key: "$set", Value: bson.D{{Key: "address.city", Value: "Bergen"}, {Key: "meta.source", Value: "api"}}},
		{Key: "$unset", Value: bson.D{{Key: "address.zip", Value: ""}}},
	})
	require.NoError(t, err)
	want := bson.D{
		{Key: "_id", Value: "x"},
		{Key: "count", Value: int64(5)},
		{Key: "ratio", Value: 1.5},
		{Key: "address", Value: bson.D{{Key: "city", Value: "Bergen"}}},
		{Key: "fresh", Value: 7},
		{Key: "meta", Value: bson.D{{Key: "source", Value: "api"}}},
	}
	assert.Equal(t, want, got)
	// the input is left alone
	assert.Equal(t, int32(2), r[1].Value)

	for name, update := range map[string]bson.D{
		"empty":        {},
		"id":           {{Key: "$set", Value: bson.D{{Key: "_id", Value: "y"}}}},
		"operator":     {{Key: "$push", Value: bson.D{{Key: "tags", Value: "a"}}}},
		"not document": {{Key: "$set", Value: 1}},
		"inc string":   {{Key: "$inc", Value: bson.D{{Key: "count", Value: "1"}}}},
		"inc target":   {{Key: "$inc", Value: bson.D{{Key: "address", Value: 1}}}},
	} {
		_, err := applyUpdate(r, update)
		assert.Error(t, err, name)
	}
}
