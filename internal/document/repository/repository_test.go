package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gogotex/docmodel/pkg/odm"
)

var repoNote = odm.NewDocument("RepoNote").
	Field("_id", odm.String(odm.Required())).
	Field("title", odm.String()).
	Field("rank", odm.Int()).
	Field("tags", odm.List(odm.String())).
	MustBuild()

func rec(id, title string, rank int, tags ...string) bson.D {
	a := bson.A{}
	for _, t := range tags {
		a = append(a, t)
	}
	return bson.D{{Key: "_id", Value: id}, {Key: "title", Value: title}, {Key: "rank", Value: rank}, {Key: "tags", Value: a}}
}

func seed(t *testing.T, r Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, repoNote, rec("a", "alpha", 3, "x")))
	require.NoError(t, r.Insert(ctx, repoNote, rec("b", "beta", 1, "x", "y")))
	require.NoError(t, r.Insert(ctx, repoNote, rec("c", "gamma", 2)))
}

func ids(recs []bson.D) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		id, _ := recordID(r)
		out = append(out, id.(string))
	}
	return out
}

// exerciseRepository runs the behaviour shared by every scan based backend.
func exerciseRepository(t *testing.T, r Repository) {
	ctx := context.Background()
	seed(t, r)

	err := r.Insert(ctx, repoNote, rec("a", "again", 0))
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := r.FindOne(ctx, repoNote, bson.D{{Key: "title", Value: "beta"}})
	require.NoError(t, err)
	id, _ := recordID(got)
	require.Equal(t, "b", id)
	// stored records come back with int32 from the BSON round trip
	require.Equal(t, int32(1), got[2].Value)

	_, err = r.FindOne(ctx, repoNote, bson.D{{Key: "title", Value: "delta"}})
	require.ErrorIs(t, err, ErrNotFound)

	all, err := r.Find(ctx, repoNote, bson.D{}, FindOptions{Sort: bson.D{{Key: "rank", Value: 1}}})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "a"}, ids(all))

	page, err := r.Find(ctx, repoNote, bson.D{}, FindOptions{Sort: bson.D{{Key: "rank", Value: -1}}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, ids(page))

	n, err := r.Count(ctx, repoNote, bson.D{{Key: "tags", Value: "x"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	matched, err := r.UpdateOne(ctx, repoNote, bson.D{{Key: "_id", Value: "c"}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "rank", Value: 10}}}})
	require.NoError(t, err)
	require.EqualValues(t, 1, matched)
	got, err = r.FindOne(ctx, repoNote, bson.D{{Key: "_id", Value: "c"}})
	require.NoError(t, err)
	require.EqualValues(t, 12, got[2].Value)

	matched, err = r.UpdateOne(ctx, repoNote, bson.D{{Key: "_id", Value: "zzz"}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "rank", Value: 1}}}})
	require.NoError(t, err)
	require.EqualValues(t, 0, matched)

	matched, err = r.Replace(ctx, repoNote, bson.D{{Key: "_id", Value: "a"}}, rec("a", "ALPHA", 3), false)
	require.NoError(t, err)
	require.EqualValues(t, 1, matched)
	got, err = r.FindOne(ctx, repoNote, bson.D{{Key: "_id", Value: "a"}})
	require.NoError(t, err)
	require.Equal(t, "ALPHA", got[1].Value)

	_, err = r.Replace(ctx, repoNote, bson.D{{Key: "_id", Value: "a"}}, rec("other", "x", 0), false)
	require.Error(t, err)

	matched, err = r.Replace(ctx, repoNote, bson.D{{Key: "_id", Value: "d"}}, rec("d", "delta", 4), false)
	require.NoError(t, err)
	require.EqualValues(t, 0, matched)
	_, err = r.FindOne(ctx, repoNote, bson.D{{Key: "_id", Value: "d"}})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.Replace(ctx, repoNote, bson.D{{Key: "_id", Value: "d"}}, rec("d", "delta", 4), true)
	require.NoError(t, err)
	n, err = r.Count(ctx, repoNote, bson.D{})
	require.NoError(t, err)
	require.EqualValues(t, 4, n)

	deleted, err := r.DeleteOne(ctx, repoNote, bson.D{{Key: "_id", Value: "b"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	deleted, err = r.DeleteOne(ctx, repoNote, bson.D{{Key: "_id", Value: "b"}})
	require.NoError(t, err)
	require.EqualValues(t, 0, deleted)
	n, err = r.Count(ctx, repoNote, bson.D{})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestMemoryRepo(t *testing.T) {
	exerciseRepository(t, NewMemoryRepo())
}

func TestMemoryRepo_KeepsInsertionOrder(t *testing.T) {
	r := NewMemoryRepo()
	seed(t, r)
	all, err := r.Find(context.Background(), repoNote, nil, FindOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids(all))
}

func TestInsert_RequiresID(t *testing.T) {
	r := NewMemoryRepo()
	err := r.Insert(context.Background(), repoNote, bson.D{{Key: "title", Value: "x"}})
	require.Error(t, err)
}

func TestIDKey(t *testing.T) {
	oid := primitive.NewObjectID()
	require.Equal(t, oid.Hex(), idKey(oid))
	require.Equal(t, "abc", idKey("abc"))
	require.Equal(t, "42", idKey(int32(42)))
}
