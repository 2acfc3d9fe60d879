package mcp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/store"
)

// registerTools registers all Basin MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("basin_list_collections",
			mcp.WithDescription(
				"List the collections of a tenant with their type, column order and "+
					"publication state. Use this first to discover what content exists.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			tenantArg(),
			mcp.WithString("order",
				mcp.Description("Order clause (e.g. \"name ASC\" or \"createdAt DESC\")"),
			),
			pageArg(),
			limitArg(),
		),
		s.handleListCollections,
	)

	srv.AddTool(
		mcp.NewTool("basin_describe_collection",
			mcp.WithDescription(
				"Describe a collection: its settings and every column with fieldId, "+
					"field type, validation rules and options. Use this before inserting "+
					"or updating documents so values match the column types.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			tenantArg(),
			collectionArg(),
		),
		s.handleDescribeCollection,
	)

	// ----- Document tools -----

	srv.AddTool(
		mcp.NewTool("basin_get_documents",
			mcp.WithDescription(
				"Read documents of a collection one page at a time, or a single "+
					"document by id. Documents are flat objects keyed by column fieldId "+
					"plus id, createdAt, createdBy, updatedAt and updatedBy. Private "+
					"fields are masked.\n\n"+
					"Order syntax: 'fieldId ASC' or 'createdAt DESC'",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			tenantArg(),
			mcp.WithString("collection",
				mcp.Description("Collection name or numeric id. Required unless id is given."),
			),
			mcp.WithNumber("id",
				mcp.Description("Document id. When set, only that document is returned."),
			),
			mcp.WithString("order",
				mcp.Description("Order clause on a fieldId or a system field"),
			),
			pageArg(),
			limitArg(),
		),
		s.handleGetDocuments,
	)

	srv.AddTool(
		mcp.NewTool("basin_insert_documents",
			mcp.WithDescription(
				"Insert one or more documents into a collection. Each document maps "+
					"column fieldIds to values; unknown keys are rejected and missing "+
					"fields take their column defaults. A single collection holds at "+
					"most one document.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			tenantArg(),
			collectionArg(),
			mcp.WithArray("documents",
				mcp.Required(),
				mcp.Description("Array of document objects (e.g. [{\"title\": \"Hello\"}])"),
			),
		),
		s.handleInsertDocuments,
	)

	srv.AddTool(
		mcp.NewTool("basin_update_document",
			mcp.WithDescription(
				"Update one document by id. The given fields are merged into the "+
					"stored document; fields not mentioned keep their values.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			tenantArg(),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Id of the document to update"),
			),
			mcp.WithObject("data",
				mcp.Required(),
				mcp.Description("Fields to set, keyed by column fieldId"),
			),
		),
		s.handleUpdateDocument,
	)

	srv.AddTool(
		mcp.NewTool("basin_delete_documents",
			mcp.WithDescription(
				"Delete documents by id. Returns the deleted documents.",
			),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			tenantArg(),
			mcp.WithArray("ids",
				mcp.Required(),
				mcp.Description("Ids of the documents to delete"),
				mcp.Items(map[string]interface{}{"type": "integer"}),
			),
		),
		s.handleDeleteDocuments,
	)
}

func tenantArg() mcp.ToolOption {
	return mcp.WithString("tenant",
		mcp.Required(),
		mcp.Description("Tenant namespace that owns the content"),
	)
}

func collectionArg() mcp.ToolOption {
	return mcp.WithString("collection",
		mcp.Required(),
		mcp.Description("Collection name or numeric id"),
	)
}

func pageArg() mcp.ToolOption {
	return mcp.WithNumber("page",
		mcp.Description("Page number, starting at 1"),
	)
}

func limitArg() mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Page size (default 10, max 1000)"),
	)
}

// collectionWhere addresses a collection by numeric id or by name.
func collectionWhere(ref string) store.Where {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return store.Where{"id": id}
	}
	return store.Where{"name": ref}
}

// pageArgs reads page and limit, falling back to the defaults.
func pageArgs(request mcp.CallToolRequest) (int, int) {
	page := optionalInt(request, "page", query.DefaultPage)
	if page < 1 {
		page = query.DefaultPage
	}
	limit := clamp(optionalInt(request, "limit", query.DefaultLimit), 1, query.MaxLimit)
	return page, limit
}

// tenantArgs extracts the tenant and resolves the acting user.
func (s *MCPServer) tenantArgs(ctx context.Context, request mcp.CallToolRequest) (tenant, user string, errResult *mcp.CallToolResult) {
	tenant, err := requireString(request, "tenant")
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}
	user, allowed := s.caller(ctx, tenant)
	if !allowed {
		return "", "", mcp.NewToolResultError(fmt.Sprintf("Access to tenant %q is not allowed", tenant))
	}
	return tenant, user, nil
}

// collectionView resolves a collection with its columns.
func (s *MCPServer) collectionView(ctx context.Context, tenant, ref string) (model.DocumentsView, *mcp.CallToolResult) {
	env := s.svc.DocumentsView(ctx, tenant, collectionWhere(ref), store.ViewOptions{Page: 1, Limit: 1})
	if !env.OK() {
		return model.DocumentsView{}, mcp.NewToolResultError(env.Error)
	}
	if !env.Data.Found() {
		return model.DocumentsView{}, s.collectionNotFound(ctx, tenant, ref)
	}
	return env.Data, nil
}

// collectionNotFound lists the available collections to help the LLM
// self-correct.
func (s *MCPServer) collectionNotFound(ctx context.Context, tenant, ref string) *mcp.CallToolResult {
	env := s.svc.ListCollections(ctx, tenant, store.ListOptions{Page: 1, Limit: query.MaxLimit, Fields: []string{"name"}})
	names := make([]string, 0, len(env.Data))
	for _, c := range env.Data {
		names = append(names, c.Name)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Collection %q not found in tenant %q. Available collections: %v", ref, tenant, names))
}

// handleListCollections returns one page of a tenant's collections.
func (s *MCPServer) handleListCollections(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, _, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	order, err := query.ParseOrderClause(optionalString(request, "order"))
	if err != nil {
		return toolError("Invalid order: %v", err)
	}
	page, limit := pageArgs(request)

	return pagedResult(s.svc.ListCollections(ctx, tenant, store.ListOptions{
		Page:  page,
		Limit: limit,
		Order: order,
	}))
}

// handleDescribeCollection returns a collection and its columns.
func (s *MCPServer) handleDescribeCollection(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, _, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	ref, err := requireString(request, "collection")
	if err != nil {
		return toolError("%v", err)
	}

	view, errResult := s.collectionView(ctx, tenant, ref)
	if errResult != nil {
		return errResult, nil
	}

	type columnInfo struct {
		model.Column
		Private bool `json:"private,omitempty"`
	}
	cols := make([]columnInfo, len(view.Columns))
	for i, c := range view.Columns {
		d, _ := s.svc.FieldTypes().Lookup(c.Type)
		cols[i] = columnInfo{Column: c, Private: d.Private}
	}

	return successJSON(map[string]interface{}{
		"collection": view.Collection,
		"columns":    cols,
	})
}

// handleGetDocuments reads a page of documents or a single document.
func (s *MCPServer) handleGetDocuments(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, _, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	if id := optionalInt(request, "id", 0); id > 0 {
		env := s.svc.GetDocument(ctx, tenant, int64(id))
		if !env.OK() {
			return toolError("%s", env.Error)
		}
		if len(env.Data) == 0 {
			return toolError("Document %d not found in tenant %q", id, tenant)
		}
		return successJSON(env.Data[0])
	}

	ref := optionalString(request, "collection")
	if ref == "" {
		return toolError("either collection or id is required")
	}
	order, err := query.ParseOrderClause(optionalString(request, "order"))
	if err != nil {
		return toolError("Invalid order: %v", err)
	}
	page, limit := pageArgs(request)

	env := s.svc.DocumentsView(ctx, tenant, collectionWhere(ref), store.ViewOptions{
		Page:  page,
		Limit: limit,
		Order: order,
	})
	if env.OK() && !env.Data.Found() {
		return s.collectionNotFound(ctx, tenant, ref), nil
	}
	return pagedResult(env)
}

// handleInsertDocuments inserts documents into a collection.
func (s *MCPServer) handleInsertDocuments(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, user, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	ref, err := requireString(request, "collection")
	if err != nil {
		return toolError("%v", err)
	}
	docs := getObjectSliceArg(request, "documents")
	if len(docs) == 0 {
		return toolError("documents must be a non-empty array of objects")
	}

	view, errResult := s.collectionView(ctx, tenant, ref)
	if errResult != nil {
		return errResult, nil
	}

	return envelopeResult(s.svc.InsertDocuments(ctx, tenant, view.Collection.ID, docs, user, nil))
}

// handleUpdateDocument merges fields into one document.
func (s *MCPServer) handleUpdateDocument(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, user, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	id := optionalInt(request, "id", 0)
	if id <= 0 {
		return toolError("id must be a positive integer")
	}
	data := getObjectArg(request, "data")
	if data == nil {
		return toolError("data must be an object")
	}

	env := s.svc.UpdateDocument(ctx, tenant, int64(id), data, user, nil)
	if env.OK() && len(env.Data) == 0 {
		return toolError("Document %d not found in tenant %q", id, tenant)
	}
	return envelopeResult(env)
}

// handleDeleteDocuments deletes documents by id.
func (s *MCPServer) handleDeleteDocuments(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	tenant, _, errResult := s.tenantArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	raw := getAnySliceArg(request, "ids")
	if len(raw) == 0 {
		return toolError("ids must be a non-empty array")
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, ok := toID(v)
		if !ok {
			return toolError("invalid id %v", v)
		}
		ids = append(ids, id)
	}

	return envelopeResult(s.svc.RemoveDocuments(ctx, tenant, ids, nil))
}
