// Package openapi builds an OpenAPI 3.0 document from the registered HTTP
// routes, deriving request and response schemas from the Go models.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
)

const schemaPrefix = "#/components/schemas/"

var durationType = reflect.TypeOf(time.Duration(0))

// =============================================================================
// Generator
// =============================================================================

// Info describes the API in the document header.
type Info struct {
	Title       string
	Version     string
	Description string
	Servers     []string
}

// Route describes one endpoint.
type Route struct {
	Method   string // GET, POST, DELETE
	Path     string // chi-style, e.g. /api/v1/runs/{id}
	Summary  string
	Tag      string
	Request  any // request body model, nil for none
	Response any // success body model, nil for none
	Status   int // success status, 200 when zero
}

// Generator accumulates routes and renders them as one document. The
// rendered document is cached until another route is registered.
type Generator struct {
	info   Info
	routes []Route

	mu     sync.RWMutex
	cached *openapi3.T
}

// NewGenerator creates a generator. Empty Title and Version get defaults.
func NewGenerator(info Info) *Generator {
	if info.Title == "" {
		info.Title = "deploysmith API"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	return &Generator{info: info}
}

// RegisterRoute adds a route to the document.
func (g *Generator) RegisterRoute(route Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, route)
	g.cached = nil
}

// Generate returns the document for every registered route.
func (g *Generator) Generate() (*openapi3.T, error) {
	g.mu.RLock()
	doc := g.cached
	g.mu.RUnlock()
	if doc != nil {
		return doc, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached != nil {
		return g.cached, nil
	}

	doc = &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.info.Title,
			Version:     g.info.Version,
			Description: g.info.Description,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{"Error": errorSchema()}},
	}
	for _, url := range g.info.Servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: url})
	}

	for _, route := range g.routes {
		if err := addOperation(doc, route); err != nil {
			return nil, fmt.Errorf("%s %s: %w", route.Method, route.Path, err)
		}
	}

	g.cached = doc
	return doc, nil
}

// Handler serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := g.Generate()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(doc)
	}
}

// =============================================================================
// Operations
// =============================================================================

func addOperation(doc *openapi3.T, route Route) error {
	op := &openapi3.Operation{
		OperationID: operationID(route),
		Summary:     route.Summary,
		Responses:   openapi3.NewResponses(),
	}
	if route.Tag != "" {
		op.Tags = []string{route.Tag}
	}

	for _, name := range pathParams(route.Path) {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}

	if route.Request != nil {
		ref, err := componentRef(doc, route.Request)
		if err != nil {
			return err
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if route.Response != nil {
		ref, err := componentRef(doc, route.Response)
		if err != nil {
			return err
		}
		success.WithJSONSchemaRef(ref)
	}
	op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: success})

	failure := openapi3.NewResponse().WithDescription("Error").
		WithJSONSchemaRef(openapi3.NewSchemaRef(schemaPrefix+"Error", nil))
	op.Responses.Set("default", &openapi3.ResponseRef{Value: failure})

	item := doc.Paths.Value(route.Path)
	if item == nil {
		item = &openapi3.PathItem{}
		doc.Paths.Set(route.Path, item)
	}
	item.SetOperation(strings.ToUpper(route.Method), op)
	return nil
}

// componentRef generates the model's schema, stores it under the type name
// and returns a reference. Unnamed types are returned inline.
func componentRef(doc *openapi3.T, model any) (*openapi3.SchemaRef, error) {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name != "" {
		if _, ok := doc.Components.Schemas[name]; ok {
			return openapi3.NewSchemaRef(schemaPrefix+name, nil), nil
		}
	}

	ref, err := openapi3gen.NewSchemaRefForValue(model, nil, openapi3gen.SchemaCustomizer(describeDurations))
	if err != nil {
		return nil, err
	}
	if name == "" {
		return ref, nil
	}
	doc.Components.Schemas[name] = ref
	return openapi3.NewSchemaRef(schemaPrefix+name, nil), nil
}

// describeDurations documents the unit of time.Duration fields, which encode
// as integer nanoseconds.
func describeDurations(_ string, t reflect.Type, _ reflect.StructTag, schema *openapi3.Schema) error {
	if t == durationType {
		schema.Description = "nanoseconds"
	}
	return nil
}

func errorSchema() *openapi3.SchemaRef {
	schema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("field", openapi3.NewStringSchema())
	schema.Required = []string{"error", "code"}
	return openapi3.NewSchemaRef("", schema)
}

// =============================================================================
// Helpers
// =============================================================================

// pathParams returns the {name} segments of a chi path in order.
func pathParams(path string) []string {
	var names []string
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			names = append(names, strings.Trim(segment, "{}"))
		}
	}
	return names
}

// operationID derives a stable identifier such as getApiV1RunsById.
func operationID(route Route) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(route.Method))
	for _, segment := range strings.Split(route.Path, "/") {
		if segment == "" {
			continue
		}
		if strings.HasPrefix(segment, "{") {
			b.WriteString("By")
			segment = strings.Trim(segment, "{}")
		}
		for _, word := range strings.FieldsFunc(segment, func(r rune) bool { return r == '-' || r == '_' || r == '.' }) {
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}
