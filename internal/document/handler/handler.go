package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docmodel/internal/document"
	"github.com/gogotex/docmodel/internal/document/repository"
	"github.com/gogotex/docmodel/internal/document/service"
	"github.com/gogotex/docmodel/pkg/odm"
)

const maxLimit = 1000

// RegisterDocumentRoutes mounts the collection API under /api. The write
// middlewares run in front of every route; they decide themselves which
// requests to act on.
func RegisterDocumentRoutes(r gin.IRouter, cat *document.Catalog, svc *service.Service, mw ...gin.HandlerFunc) {
	h := &handler{cat: cat, svc: svc}
	api := r.Group("/api", mw...)
	api.GET("/collections", h.collections)
	api.POST("/:collection", h.create)
	api.GET("/:collection", h.list)
	api.GET("/:collection/:id", h.get)
	api.PATCH("/:collection/:id", h.patch)
	api.DELETE("/:collection/:id", h.delete)
}

type handler struct {
	cat *document.Catalog
	svc *service.Service
}

// class resolves the :collection parameter, answering 404 itself.
func (h *handler) class(c *gin.Context) (*odm.Class, bool) {
	cl, err := h.cat.Class(c.Param("collection"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return cl, true
}

// load resolves :collection and :id to a stored document.
func (h *handler) load(c *gin.Context) (*odm.Document, bool) {
	cl, ok := h.class(c)
	if !ok {
		return nil, false
	}
	id, err := cl.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	doc, err := h.svc.Get(c.Request.Context(), cl, id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return doc, true
}

// writeError maps service and validation errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *odm.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": verr.AsMap()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// bindData decodes a JSON object body keeping numbers as json.Number so
// that integer fields see integers.
func bindData(c *gin.Context) (map[string]any, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil || data == nil {
		msg := "request body must be a JSON object"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return nil, false
	}
	return data, true
}

func (h *handler) collections(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, name := range h.cat.Routes() {
		cl, err := h.cat.Class(name)
		if err != nil {
			continue
		}
		fields := make([]gin.H, 0, cl.Schema().Len())
		for fname, f := range cl.Schema().All() {
			fields = append(fields, gin.H{"name": fname, "wire_name": f.WireName(), "type": fieldType(f), "required": f.Required()})
		}
		out = append(out, gin.H{"route": name, "collection": cl.Options().CollectionName, "class": cl.Name(), "fields": fields})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) create(c *gin.Context) {
	cl, ok := h.class(c)
	if !ok {
		return
	}
	data, ok := bindData(c)
	if !ok {
		return
	}
	doc, err := h.svc.Create(c.Request.Context(), cl, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// list answers GET /api/:collection. Query parameters: filter (a wire level
// query as MongoDB Extended JSON), sort ("-rank,name"), skip and limit.
func (h *handler) list(c *gin.Context) {
	cl, ok := h.class(c)
	if !ok {
		return
	}
	var filter bson.D
	if raw := c.Query("filter"); raw != "" {
		if err := bson.UnmarshalExtJSON([]byte(raw), false, &filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("filter: %v", err)})
			return
		}
	}
	var opts service.FindOptions
	if raw := c.Query("sort"); raw != "" {
		s, err := odm.SortSpec(strings.Split(raw, ","))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("sort: %v", err)})
			return
		}
		opts.Sort = s
	}
	for name, dst := range map[string]*int64{"skip": &opts.Skip, "limit": &opts.Limit} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
			return
		}
		*dst = n
	}
	if opts.Limit == 0 || opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}
	ctx := c.Request.Context()
	docs, err := h.svc.Find(ctx, cl, filter, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.svc.Count(ctx, cl, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs, "count": total})
}

func (h *handler) get(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// patch merges the body into the stored document and validates the result
// as a whole. A null value unsets the field. The identifier cannot change.
func (h *handler) patch(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	patch, ok := bindData(c)
	if !ok {
		return
	}
	cl := doc.Class()
	data := make(map[string]any)
	for _, name := range doc.Fields() {
		data[name] = doc.Value(name)
	}
	for k, v := range patch {
		name, known := cl.Schema().Canonical(k)
		if !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown field %q", k)})
			return
		}
		if name == odm.IDField {
			c.JSON(http.StatusBadRequest, gin.H{"error": "the _id field cannot be modified"})
			return
		}
		if v == nil {
			delete(data, name)
			continue
		}
		data[name] = v
	}
	updated, err := cl.FromData(data)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.Save(c.Request.Context(), updated, false); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handler) delete(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	if _, err := h.svc.Delete(c.Request.Context(), doc); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
