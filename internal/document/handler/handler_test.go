package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/internal/document"
	"github.com/gogotex/docmodel/internal/document/repository"
	"github.com/gogotex/docmodel/internal/document/service"
	"github.com/gogotex/docmodel/pkg/odm"
)

var apiAuthor = odm.NewEmbedded("APIAuthor").
	Field("name", odm.String(odm.Required())).
	Field("email", odm.Email(odm.Optional())).
	MustBuild()

var apiPost = odm.NewDocument("APIPost").
	Field("title", odm.String(odm.Required(), odm.MaxLength(20))).
	Field("rank", odm.Int(odm.Gte(0), odm.Default(0))).
	Field("author", odm.Embedded(apiAuthor, odm.Optional())).
	Field("tags", odm.List(odm.String(), odm.Optional())).
	Synonym("headline", "title").
	Meta(odm.Meta{odm.MetaCollectionName: "posts"}).
	MustBuild()

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := document.NewCatalog(apiPost)
	require.NoError(t, err)
	g := gin.New()
	RegisterDocumentRoutes(g, cat, service.New(repository.NewMemoryRepo()))
	RegisterSwagger(g, cat)
	return g
}

func do(g http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestDocumentHandler_CRUD(t *testing.T) {
	g := newTestRouter(t)

	// create, using the synonym for the title
	w := do(g, http.MethodPost, "/api/posts", `{"headline":"hello","rank":3,"author":{"name":"ann"},"tags":["a","b"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id, _ := created["_id"].(string)
	require.Len(t, id, 24)
	assert.Equal(t, "hello", created["title"])
	assert.EqualValues(t, 3, created["rank"])

	// get
	w = do(g, http.MethodGet, "/api/posts/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ann", decode(t, w)["author"].(map[string]any)["name"])

	// patch
	w = do(g, http.MethodPatch, "/api/posts/"+id, `{"rank":4,"tags":null}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	patched := decode(t, w)
	assert.EqualValues(t, 4, patched["rank"])
	assert.NotContains(t, patched, "tags")
	assert.Equal(t, "hello", patched["title"])

	// list
	w = do(g, http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["count"])
	require.Len(t, list["items"], 1)

	// delete
	w = do(g, http.MethodDelete, "/api/posts/"+id, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(g, http.MethodGet, "/api/posts/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_ValidationErrors(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/posts", `{"rank":-1,"author":{"email":"nope"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]any{
		"title": "field is required",
		"rank":  "value is less than 0",
		"author": map[string]any{
			"name":  "field is required",
			"email": "value is not a valid email address",
		},
	}, body["errors"])

	w = do(g, http.MethodPost, "/api/posts", `{"title":"ok"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["_id"].(string)

	w = do(g, http.MethodPatch, "/api/posts/"+id, `{"title":"this title is far too long"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(g, http.MethodPatch, "/api/posts/"+id, `{"_id":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = do(g, http.MethodPatch, "/api/posts/"+id, `{"bogus":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = do(g, http.MethodPost, "/api/posts", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Lookups(t *testing.T) {
	g := newTestRouter(t)

	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/nothing", "").Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/posts/not-an-id", "").Code)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/posts/5f1d7f8e9a1b2c3d4e5f6a7b", "").Code)
}

func TestDocumentHandler_ListQuery(t *testing.T) {
	g := newTestRouter(t)
	for _, body := range []string{`{"title":"a","rank":1}`, `{"title":"b","rank":5}`, `{"title":"c","rank":3}`} {
		require.Equal(t, http.StatusCreated, do(g, http.MethodPost, "/api/posts", body).Code)
	}

	q := url.Values{}
	q.Set("filter", `{"rank":{"$gte":3}}`)
	q.Set("sort", "-rank")
	w := do(g, http.MethodGet, "/api/posts?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode(t, w)
	assert.EqualValues(t, 2, list["count"])
	items := list["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].(map[string]any)["title"])
	assert.Equal(t, "c", items[1].(map[string]any)["title"])

	w = do(g, http.MethodGet, "/api/posts?sort=rank&skip=1&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	items = decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].(map[string]any)["title"])

	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/posts?filter=%7Bbad", "").Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/posts?limit=-2", "").Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/posts?sort=-", "").Code)
}

func TestCollectionsAndSwagger(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodGet, "/api/collections", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cols []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cols))
	require.Len(t, cols, 1)
	assert.Equal(t, "posts", cols[0]["collection"])
	fields := cols[0]["fields"].([]any)
	require.Len(t, fields, 5)
	assert.Equal(t, "title", fields[0].(map[string]any)["name"])
	assert.Equal(t, "_id", fields[4].(map[string]any)["name"])
	assert.Equal(t, "objectid", fields[4].(map[string]any)["type"])

	w = do(g, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode(t, w)
	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/posts")
	assert.Contains(t, paths, "/api/posts/{id}")
	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	require.Contains(t, schemas, "APIPost")
	require.Contains(t, schemas, "APIAuthor")
	post := schemas["APIPost"].(map[string]any)
	assert.Equal(t, []any{"title", "rank", "_id"}, post["required"])
	props := post["properties"].(map[string]any)
	assert.Equal(t, "#/components/schemas/APIAuthor", props["author"].(map[string]any)["$ref"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])

	w = do(g, http.MethodGet, "/swagger/index.html", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}

var apiUser = odm.NewDocument("APIUser").
	Field("name", odm.String()).
	Field("active", odm.Bool(odm.Default(true))).
	Meta(odm.Meta{odm.MetaCollectionName: "users"}).
	MustBuild()

var apiActiveUser = odm.NewDocument("APIActiveUser").
	Extends(apiUser).
	Meta(odm.Meta{
		odm.MetaCollectionName: "users",
		odm.MetaDefaultQuery:   bson.D{{Key: "active", Value: true}},
	}).
	MustBuild()

func TestSharedCollectionRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cat, err := document.NewCatalog(apiUser, apiActiveUser)
	require.NoError(t, err)
	g := gin.New()
	RegisterDocumentRoutes(g, cat, service.New(repository.NewMemoryRepo()))

	require.Equal(t, http.StatusCreated, do(g, http.MethodPost, "/api/users", `{"name":"ann"}`).Code)
	w := do(g, http.MethodPost, "/api/users", `{"name":"bob","active":false}`)
	require.Equal(t, http.StatusCreated, w.Code)
	bob := decode(t, w)["_id"].(string)

	all := decode(t, do(g, http.MethodGet, "/api/users", ""))
	assert.EqualValues(t, 2, all["count"])

	active := decode(t, do(g, http.MethodGet, "/api/APIActiveUser", ""))
	assert.EqualValues(t, 1, active["count"])
	items := active["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "ann", items[0].(map[string]any)["name"])

	// the scoped class does not see inactive users
	assert.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/APIActiveUser/"+bob, "").Code)
	assert.Equal(t, http.StatusOK, do(g, http.MethodGet, "/api/users/"+bob, "").Code)

	var cols []map[string]any
	require.NoError(t, json.Unmarshal(do(g, http.MethodGet, "/api/collections", "").Body.Bytes(), &cols))
	require.Len(t, cols, 2)
	assert.Equal(t, "APIActiveUser", cols[0]["route"])
	assert.Equal(t, "users", cols[0]["collection"])
	assert.Equal(t, "users", cols[1]["route"])
	assert.Equal(t, "APIUser", cols[1]["class"])
}
