package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/service"
)

// CollectionSpec holds the inputs needed to describe one collection.
type CollectionSpec struct {
	Collection model.Collection
	Columns    []model.Column
}

// GenerateCollectionSpec generates an OpenAPI 3.1 document for the document
// endpoints of a single collection. Field types are resolved through types;
// columns of an unknown type are described as plain strings.
func GenerateCollectionSpec(tenant, baseURL string, spec CollectionSpec, types *fieldtype.Registry) *openapi3.T {
	doc := newDocument(
		fmt.Sprintf("%s API", capitalize(spec.Collection.Name)),
		fmt.Sprintf("Auto-generated REST API for the %q collection of tenant %q by Basin.", spec.Collection.Name, tenant),
		baseURL,
	)
	itemRef := addCollectionPaths(doc, tenant, spec, types)
	addDocumentPaths(doc, tenant, itemRef)
	return doc
}

// GenerateTenantSpec combines the collections of a tenant into a single
// document. The shared /documents paths are described with a generic item.
func GenerateTenantSpec(tenant, baseURL string, specs []CollectionSpec, types *fieldtype.Registry) *openapi3.T {
	doc := newDocument(
		fmt.Sprintf("%s API", capitalize(tenant)),
		fmt.Sprintf("Combined REST API for all collections of tenant %q managed by Basin.", tenant),
		baseURL,
	)
	for _, spec := range specs {
		if spec.Collection.Name == "" {
			continue
		}
		addCollectionPaths(doc, tenant, spec, types)
	}
	addDocumentPaths(doc, tenant, "")
	return doc
}

func newDocument(title, description, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       title,
			Description: description,
			Version:     "1.0.0",
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Security = openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	// Every failed call answers with an envelope whose data is empty.
	doc.Components.Schemas["ErrorResponse"] = envelopeSchema(&openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: &openapi3.SchemaRef{Value: &openapi3.Schema{}}},
	})
	return doc
}

// addCollectionPaths registers the component schemas and the list/create
// path of one collection and returns the reference of its item schema.
func addCollectionPaths(doc *openapi3.T, tenant string, spec CollectionSpec, types *fieldtype.Registry) string {
	name := spec.Collection.Name
	documentsPath := fmt.Sprintf("/api/v1/%s/collections/%s/documents", tenant, name)
	docPath := fmt.Sprintf("/api/v1/%s/collections/%s/_doc", tenant, name)
	tag := name

	schemaName := sanitizeSchemaName(tenant, name)
	doc.Components.Schemas[schemaName] = columnsToSchema(spec.Columns, types)
	doc.Components.Schemas[schemaName+"Create"] = columnsToCreateSchema(spec.Columns, types)
	doc.Components.Schemas[schemaName+"Update"] = columnsToUpdateSchema(spec.Columns, types)

	schemaRef := fmt.Sprintf("#/components/schemas/%s", schemaName)
	createRef := fmt.Sprintf("#/components/schemas/%sCreate", schemaName)

	viewSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"collection": objectSchema("The collection record."),
				"columns": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: objectSchema("A column definition."),
					},
				},
				"documents": arrayOf(schemaRef),
			},
		},
	}

	pathItem := &openapi3.PathItem{
		Get:  listOperation(tag, name, listQueryParameters(), pagedEnvelopeSchema(viewSchema)),
		Post: createOperation(tag, name, createRef, schemaRef),
	}
	if spec.Collection.Type == model.CollectionSingle {
		pathItem.Post.Description += " A single collection holds at most one document."
	}
	doc.Paths.Set(documentsPath, pathItem)

	doc.Paths.Set(docPath, &openapi3.PathItem{
		Get: schemaOperation(tag, name),
	})
	return schemaRef
}

// addDocumentPaths registers the id-addressed document paths. An empty
// itemRef describes documents as free-form objects.
func addDocumentPaths(doc *openapi3.T, tenant, itemRef string) {
	tag := "documents"
	item := objectSchema("A flattened document.")
	update := objectSchema("Fields to merge into the document.")
	if itemRef != "" {
		item = openapi3.NewSchemaRef(itemRef, nil)
		update = openapi3.NewSchemaRef(itemRef+"Update", nil)
	}

	doc.Paths.Set(fmt.Sprintf("/api/v1/%s/documents/{id}", tenant), &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").
				WithDescription("Document id.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"})},
		},
		Get:   getOperation(tag, item),
		Patch: updateOperation(tag, update, item),
	})
	doc.Paths.Set(fmt.Sprintf("/api/v1/%s/documents", tenant), &openapi3.PathItem{
		Delete: deleteOperation(tag),
	})
}

// ─── Schema Builders ────────────────────────────────────────────────────────

// columnsToSchema converts columns to the schema of a flattened document:
// the column fields plus the read-only system fields.
func columnsToSchema(columns []model.Column, types *fieldtype.Registry) *openapi3.SchemaRef {
	props := systemProperties()
	for _, col := range columns {
		d, _ := lookup(types, col.Type)
		s := columnSchema(col, d)
		if d.Private {
			s.Description = strings.TrimSpace(s.Description + " Masked as " + service.MaskedValue + " in responses.")
		}
		props[col.FieldID] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
		},
	}
}

// columnsToCreateSchema generates the schema of a document payload on
// insert. System columns are excluded; columns whose rules say required are
// required.
func columnsToCreateSchema(columns []model.Column, types *fieldtype.Registry) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	var required []string

	for _, col := range columns {
		d, _ := lookup(types, col.Type)
		if d.System {
			continue
		}
		s := columnSchema(col, d)
		s.WriteOnly = d.Private
		props[col.FieldID] = &openapi3.SchemaRef{Value: s}

		if rules, err := fieldtype.ParseRules(col.Validation, col.FieldOptions); err == nil && rules.Required {
			required = append(required, col.FieldID)
		}
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			Properties:           props,
			Required:             required,
			AdditionalProperties: openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)},
		},
	}
}

// columnsToUpdateSchema generates the schema of a partial update.
// All fields are optional since only the supplied keys are merged.
func columnsToUpdateSchema(columns []model.Column, types *fieldtype.Registry) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, col := range columns {
		d, _ := lookup(types, col.Type)
		if d.System {
			continue
		}
		s := columnSchema(col, d)
		s.WriteOnly = d.Private
		props[col.FieldID] = &openapi3.SchemaRef{Value: s}
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			Properties:           props,
			AdditionalProperties: openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)},
		},
	}
}

func lookup(types *fieldtype.Registry, key string) (fieldtype.Descriptor, bool) {
	if types != nil {
		if d, ok := types.Lookup(key); ok {
			return d, true
		}
	}
	return fieldtype.Descriptor{Key: key}, false
}

// columnSchema describes one column, carrying its stored validation rules
// as schema constraints.
func columnSchema(col model.Column, d fieldtype.Descriptor) *openapi3.Schema {
	s := columnTypeSchema(MapFieldType(d))
	s.Title = col.ColumnName
	s.Description = col.HelpText
	if d.System {
		s.ReadOnly = true
	}

	rules, err := fieldtype.ParseRules(col.Validation, col.FieldOptions)
	if err != nil {
		return s
	}
	if s.Type.Is("string") {
		if rules.MinLength > 0 {
			s.MinLength = uint64(rules.MinLength)
		}
		if rules.MaxLength > 0 {
			ml := uint64(rules.MaxLength)
			s.MaxLength = &ml
		}
		s.Pattern = rules.Pattern
	}
	if s.Type.Is("number") {
		s.Min = rules.Min
		s.Max = rules.Max
	}
	for _, item := range rules.Items {
		s.Enum = append(s.Enum, item)
	}
	if !rules.Required && !s.Type.Is("string") {
		s.Nullable = true
	}
	return s
}

// columnTypeSchema creates a basic Schema for the given type mapping.
func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type: &openapi3.Types{m.Type},
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}

// systemProperties returns the fields every flattened document carries.
func systemProperties() openapi3.Schemas {
	readOnly := func(typ, format string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}, Format: format, ReadOnly: true}}
	}
	return openapi3.Schemas{
		"id":        readOnly("integer", "int64"),
		"createdAt": readOnly("string", "date-time"),
		"createdBy": readOnly("string", ""),
		"updatedAt": readOnly("string", "date-time"),
		"updatedBy": readOnly("string", ""),
	}
}

func objectSchema(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}, Description: description}}
}

func arrayOf(ref string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef(ref, nil),
		},
	}
}

// envelopeSchema wraps data in the {data, error} envelope.
func envelopeSchema(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"data":  data,
				"error": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Empty on success."}},
			},
			Required: []string{"data", "error"},
		},
	}
}

// pagedEnvelopeSchema adds the paging totals to the envelope.
func pagedEnvelopeSchema(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	env := envelopeSchema(data)
	env.Value.Properties["total"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: "Total number of documents."},
	}
	env.Value.Properties["totalPages"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: "Number of pages for the requested limit."},
	}
	return env
}

// ─── Operation Builders ─────────────────────────────────────────────────────

// listOperation generates a GET operation for the documents view.
func listOperation(tag, name string, params openapi3.Parameters, responseSchema *openapi3.SchemaRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("List %s documents", name),
		Description: fmt.Sprintf("Retrieve the collection %s, its columns and one page of its documents.", name),
		OperationID: fmt.Sprintf("get_%s", name),
		Parameters:  params,
		Responses: newResponses(
			"200", fmt.Sprintf("Documents view of %s", name), responseSchema,
		),
	}
}

// createOperation generates a POST operation for inserting documents.
func createOperation(tag, name, createRef, schemaRef string) *openapi3.Operation {
	reqBody := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: fmt.Sprintf("Document(s) to insert into %s", name),
			Required:    true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{
						Value: &openapi3.Schema{
							OneOf: openapi3.SchemaRefs{
								openapi3.NewSchemaRef(createRef, nil),
								arrayOf(createRef),
								{
									Value: &openapi3.Schema{
										Type: &openapi3.Types{"object"},
										Properties: openapi3.Schemas{
											"documents": arrayOf(createRef),
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Create %s document(s)", name),
		Description: fmt.Sprintf("Insert one or more documents into %s. Send a single object, an array or {\"documents\": [...]}.", name),
		OperationID: fmt.Sprintf("create_%s", name),
		RequestBody: reqBody,
		Parameters:  fieldsParameters(),
		Responses: newResponses(
			"201", fmt.Sprintf("Created %s document(s)", name), envelopeSchema(arrayOf(schemaRef)),
		),
	}
}

// getOperation generates a GET operation for one document.
func getOperation(tag string, item *openapi3.SchemaRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     "Get a document",
		Description: "Retrieve one flattened document. An unknown id yields empty data.",
		OperationID: "get_document",
		Responses: newResponses(
			"200", "The document", envelopeSchema(&openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: item},
			}),
		),
	}
}

// updateOperation generates a PATCH operation for merging into a document.
func updateOperation(tag string, update, item *openapi3.SchemaRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     "Update a document",
		Description: "Merge the supplied fields into the document payload. Only provided fields are changed.",
		OperationID: "update_document",
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Fields to update",
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchemaRef(update),
			},
		},
		Parameters: fieldsParameters(),
		Responses: newResponses(
			"200", "Updated document", envelopeSchema(&openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: item},
			}),
		),
	}
}

// deleteOperation generates a DELETE operation for removing documents.
func deleteOperation(tag string) *openapi3.Operation {
	idsParam := openapi3.NewQueryParameter("ids").
		WithDescription("Comma-separated list of document ids to delete.").
		WithSchema(openapi3.NewStringSchema())

	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     "Delete documents",
		Description: "Delete documents by id. Ids may also be sent as {\"ids\": [...]}.",
		OperationID: "delete_documents",
		Parameters: append(openapi3.Parameters{
			&openapi3.ParameterRef{Value: idsParam},
		}, fieldsParameters()...),
		Responses: newResponses(
			"200", "Deleted documents", envelopeSchema(&openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: objectSchema(""),
				},
			}),
		),
	}
}

// schemaOperation generates the GET operation returning this document.
func schemaOperation(tag, name string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Get %s OpenAPI document", name),
		Description: fmt.Sprintf("Retrieve the OpenAPI document generated from the columns of %s.", name),
		OperationID: fmt.Sprintf("doc_%s", name),
		Responses: newResponses(
			"200", fmt.Sprintf("OpenAPI document for %s", name), objectSchema(""),
		),
	}
}

// ─── Query Parameter Builders ───────────────────────────────────────────────

// listQueryParameters returns the query parameters of the documents view.
func listQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("page").
				WithDescription("1-based page number.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Default: 1}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of documents per page.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Default: 10}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("order").
				WithDescription("Sort order: a fieldId or system field, then asc|desc and optionally nulls first|last (e.g. \"title desc\").").
				WithSchema(openapi3.NewStringSchema()),
		},
	}
}

// fieldsParameters returns the projection parameter of write operations.
func fieldsParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("fields").
				WithDescription("Comma-separated list of fields to return after the operation.").
				WithSchema(openapi3.NewStringSchema()),
		},
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, e := range []struct{ code, desc string }{
		{"400", "Bad request"},
		{"401", "Unauthorized"},
		{"403", "Forbidden"},
		{"404", "Not found"},
		{"409", "Duplicate"},
		{"500", "Internal server error"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

// sanitizeSchemaName creates a valid OpenAPI component schema name from tenant + collection names.
func sanitizeSchemaName(tenant, collection string) string {
	s := capitalize(tenant) + "_" + capitalize(collection)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
