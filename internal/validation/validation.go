// Package validation checks request bodies against embedded JSON schemas and
// decodes them into the input types of package models.
//
// Every schema is compiled twice: as written for creates, and without its
// root "required" list for partial updates.
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	Testimonial    = "testimonial"
	Post           = "post"
	Initiative     = "initiative"
	ReportChannel  = "report_channel"
	NaoSeCale      = "nao_se_cale"
	PorqueAderimos = "porque_aderimos"
	Report         = "report"
	BannerConfirm  = "banner_confirm"
	BannerUpdate   = "banner_update"
	UserCreate     = "user_create"
	Promote        = "promote"
	SignedURL      = "signed_url"
	AuthToken      = "auth_token"

	sectionPrefix = "section_"
)

// Mode selects the create or update variant of a schema.
type Mode int

const (
	Create Mode = iota
	Update
)

// BodyField names errors that concern the request body as a whole.
const BodyField = "(body)"

const rootContext = "(root)"

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the failures of one validation.
type Result struct {
	Errors []FieldError
}

// Valid reports whether no failure was recorded.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

func (r Result) Error() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (r Result) Has(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (r *Result) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

type compiled struct {
	create *gojsonschema.Schema
	update *gojsonschema.Schema
}

// Validator holds the compiled schemas.
type Validator struct {
	schemas map[string]compiled
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	v := &Validator{schemas: make(map[string]compiled, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(entry)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry, err)
		}
		name := strings.TrimSuffix(path.Base(entry), ".json")
		schema, err := compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// MustNew is New for package initialisation; the schemas are embedded, so a
// failure is a build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

func compile(raw []byte) (compiled, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return compiled{}, err
	}
	create, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return compiled{}, err
	}
	partial := make(map[string]any, len(doc))
	for key, value := range doc {
		if key != "required" {
			partial[key] = value
		}
	}
	update, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(partial))
	if err != nil {
		return compiled{}, err
	}
	return compiled{create: create, update: update}, nil
}

// Check validates raw against the named schema.
func (v *Validator) Check(name string, mode Mode, raw []byte) Result {
	var result Result
	schema, ok := v.schemas[name]
	if !ok {
		panic(fmt.Sprintf("validation: unknown schema %q", name))
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}
	target := schema.create
	if mode == Update {
		target = schema.update
	}
	outcome, err := target.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		result.add(BodyField, "request body must be a JSON object")
		return result
	}
	for _, desc := range outcome.Errors() {
		result.add(fieldName(desc), desc.Description())
	}
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Field < result.Errors[j].Field
	})
	return result
}

func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() == "required" {
		if property, ok := desc.Details()["property"].(string); ok {
			if field == rootContext {
				return property
			}
			return field + "." + property
		}
	}
	if field == rootContext {
		return BodyField
	}
	return field
}

// Decode validates raw against the named schema and decodes it into T.
func Decode[T any](v *Validator, name string, mode Mode, raw []byte) (T, Result) {
	var out T
	result := v.Check(name, mode, raw)
	if !result.Valid() {
		return out, result
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return out, result
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		result.add(BodyField, "request body does not match the expected shape")
	}
	return out, result
}
