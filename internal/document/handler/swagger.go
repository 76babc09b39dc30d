package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gogotex/docmodel/internal/document"
	"github.com/gogotex/docmodel/pkg/odm"
)

// RegisterSwagger registers Swagger/OpenAPI endpoints describing the
// collection API of the catalog.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(r gin.IRouter, cat *document.Catalog) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, OpenAPI(cat))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docmodel - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// typer is implemented by every built-in field through FieldBase.
type typer interface{ Type() string }

func fieldType(f odm.Field) string {
	if t, ok := f.(typer); ok {
		return t.Type()
	}
	return "any"
}

// fieldSchema renders f as an OpenAPI schema. Embedded classes become
// component references.
func fieldSchema(f odm.Field) gin.H {
	switch ff := f.(type) {
	case *odm.ListField:
		return gin.H{"type": "array", "items": fieldSchema(ff.Item())}
	case *odm.EmbeddedField:
		if cl, err := ff.Class(); err == nil {
			return gin.H{"$ref": "#/components/schemas/" + cl.Name()}
		}
		return gin.H{"type": "object"}
	case *odm.RefField:
		if cl, err := ff.Class(); err == nil {
			if id, ok := cl.Schema().Field(odm.IDField); ok {
				s := fieldSchema(id)
				s["description"] = "identifier of " + cl.Name()
				return s
			}
		}
		return gin.H{}
	}
	switch fieldType(f) {
	case "string":
		return gin.H{"type": "string"}
	case "email":
		return gin.H{"type": "string", "format": "email"}
	case "url":
		return gin.H{"type": "string", "format": "uri"}
	case "bool":
		return gin.H{"type": "boolean"}
	case "int":
		return gin.H{"type": "integer", "format": "int64"}
	case "float":
		return gin.H{"type": "number", "format": "double"}
	case "decimal":
		return gin.H{"type": "string", "format": "decimal"}
	case "datetime":
		return gin.H{"type": "string", "format": "date-time"}
	case "objectid":
		return gin.H{"type": "string", "pattern": "^[0-9a-f]{24}$"}
	case "uuid":
		return gin.H{"type": "string", "format": "uuid"}
	}
	return gin.H{}
}

func classSchema(cl *odm.Class, schemas gin.H) {
	if _, done := schemas[cl.Name()]; done {
		return
	}
	props := gin.H{}
	required := []string{}
	schemas[cl.Name()] = gin.H{"type": "object", "properties": props}
	for name, f := range cl.Schema().All() {
		props[name] = fieldSchema(f)
		if f.Required() {
			required = append(required, name)
		}
		for _, sub := range embeddedClasses(f) {
			classSchema(sub, schemas)
		}
	}
	if len(required) > 0 {
		schemas[cl.Name()].(gin.H)["required"] = required
	}
}

func embeddedClasses(f odm.Field) []*odm.Class {
	switch ff := f.(type) {
	case *odm.ListField:
		return embeddedClasses(ff.Item())
	case *odm.EmbeddedField:
		if cl, err := ff.Class(); err == nil {
			return []*odm.Class{cl}
		}
	}
	return nil
}

// OpenAPI builds the OpenAPI 3 document for the collections in cat.
func OpenAPI(cat *document.Catalog) gin.H {
	schemas := gin.H{}
	paths := gin.H{
		"/api/collections": gin.H{"get": gin.H{"summary": "List collections and their fields", "responses": gin.H{"200": gin.H{"description": "collections"}}}},
		"/health":          gin.H{"get": gin.H{"summary": "Liveness check", "responses": gin.H{"200": gin.H{"description": "healthy"}}}},
		"/ready":           gin.H{"get": gin.H{"summary": "Readiness check", "responses": gin.H{"200": gin.H{"description": "ready"}, "503": gin.H{"description": "not ready"}}}},
	}
	invalid := gin.H{"description": "validation failed; errors holds messages keyed by field"}
	for _, name := range cat.Routes() {
		cl, err := cat.Class(name)
		if err != nil {
			continue
		}
		classSchema(cl, schemas)
		ref := gin.H{"$ref": "#/components/schemas/" + cl.Name()}
		body := gin.H{"content": gin.H{"application/json": gin.H{"schema": ref}}}
		paths["/api/"+name] = gin.H{
			"get": gin.H{
				"summary": "Find " + cl.Name() + " documents",
				"parameters": []gin.H{
					{"name": "filter", "in": "query", "schema": gin.H{"type": "string"}, "description": "Extended JSON query on wire names"},
					{"name": "sort", "in": "query", "schema": gin.H{"type": "string"}, "description": "comma separated keys, '-' for descending"},
					{"name": "skip", "in": "query", "schema": gin.H{"type": "integer"}},
					{"name": "limit", "in": "query", "schema": gin.H{"type": "integer"}},
				},
				"responses": gin.H{"200": gin.H{"description": "items and total count"}},
			},
			"post": gin.H{
				"summary":     "Create a " + cl.Name(),
				"requestBody": body,
				"responses":   gin.H{"201": gin.H{"description": "created", "content": body["content"]}, "409": gin.H{"description": "duplicate identifier"}, "422": invalid},
			},
		}
		idParam := []gin.H{{"name": "id", "in": "path", "required": true, "schema": gin.H{"type": "string"}}}
		paths["/api/"+name+"/{id}"] = gin.H{
			"get":    gin.H{"summary": "Get a " + cl.Name(), "parameters": idParam, "responses": gin.H{"200": gin.H{"description": "document", "content": body["content"]}, "404": gin.H{"description": "not found"}}},
			"patch":  gin.H{"summary": "Change fields of a " + cl.Name(), "parameters": idParam, "requestBody": gin.H{"content": gin.H{"application/json": gin.H{"schema": gin.H{"type": "object"}}}}, "responses": gin.H{"200": gin.H{"description": "updated document"}, "404": gin.H{"description": "not found"}, "422": invalid}},
			"delete": gin.H{"summary": "Delete a " + cl.Name(), "parameters": idParam, "responses": gin.H{"204": gin.H{"description": "deleted"}, "404": gin.H{"description": "not found"}}},
		}
	}
	return gin.H{
		"openapi":    "3.0.0",
		"info":       gin.H{"title": "docmodel", "version": "v0.1.0"},
		"paths":      paths,
		"components": gin.H{"schemas": schemas},
	}
}
