package document

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/pkg/odm"
)

func TestCatalog(t *testing.T) {
	article := odm.NewDocument("CatalogArticle").Field("title", odm.String()).MustBuild()
	emb := odm.NewEmbedded("CatalogEmb").Field("x", odm.Int()).MustBuild()

	c, err := NewCatalog(article)
	require.NoError(t, err)
	require.NoError(t, c.Add(article))
	require.Error(t, c.Add(emb))

	got, err := c.Class("catalog_article")
	require.NoError(t, err)
	require.Same(t, article, got)

	_, err = c.Class("nope")
	require.ErrorIs(t, err, ErrUnknownCollection)
	require.Equal(t, []string{"catalog_article"}, c.Routes())
}

var catalogUser = odm.NewDocument("CatalogUser").
	Field("name", odm.String()).
	Field("active", odm.Bool(odm.Default(true))).
	Meta(odm.Meta{odm.MetaCollectionName: "users"}).
	MustBuild()

var catalogActiveUser = odm.NewDocument("CatalogActiveUser").
	Extends(catalogUser).
	Meta(odm.Meta{
		odm.MetaCollectionName: "users",
		odm.MetaDefaultQuery:   bson.D{{Key: "active", Value: true}},
	}).
	MustBuild()

func TestCatalog_SharedCollection(t *testing.T) {
	for name, order := range map[string][]*odm.Class{
		"base first":     {catalogUser, catalogActiveUser},
		"subclass first": {catalogActiveUser, catalogUser},
	} {
		t.Run(name, func(t *testing.T) {
			c, err := NewCatalog(order...)
			require.NoError(t, err)
			require.Equal(t, []string{"CatalogActiveUser", "users"}, c.Routes())

			got, err := c.Class("users")
			require.NoError(t, err)
			require.Same(t, catalogUser, got)
			got, err = c.Class("CatalogActiveUser")
			require.NoError(t, err)
			require.Same(t, catalogActiveUser, got)
		})
	}
}

func TestCatalog_UnrelatedClassOnSameCollection(t *testing.T) {
	other := odm.NewDocument("CatalogOther").
		Meta(odm.Meta{odm.MetaCollectionName: "users"}).
		MustBuild()
	c, err := NewCatalog(catalogUser, other)
	require.NoError(t, err)
	require.Equal(t, []string{"CatalogOther", "users"}, c.Routes())

	// a second class with the same name cannot take the route
	clash := odm.NewDocument("CatalogClash").
		Meta(odm.Meta{odm.MetaCollectionName: "users"}).
		MustBuild()
	require.NoError(t, c.Add(clash))
	dup := odm.NewDocument("CatalogClash").
		Meta(odm.Meta{odm.MetaCollectionName: "users"}).
		MustBuild()
	require.Error(t, c.Add(dup))
}
