package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/basin/internal/openapi"
)

const (
	tenantsURI    = "basin://tenants"
	openAPIPrefix = "basin://openapi/"
)

// registerResources adds read-only resources LLM clients can load into
// their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// basin://tenants
	srv.AddResource(
		mcp.NewResource(
			tenantsURI,
			"Tenants",
			mcp.WithResourceDescription("Namespaces provisioned in this Basin instance."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTenantsResource,
	)

	// basin://openapi/{tenant}/{collection}
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			openAPIPrefix+"{tenant}/{collection}",
			"Collection OpenAPI document",
			mcp.WithTemplateDescription(
				"OpenAPI 3.1 description of a collection's document endpoints, "+
					"with request and response schemas derived from its columns.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleOpenAPIResource,
	)
}

// handleTenantsResource returns the tenants visible to the caller.
func (s *MCPServer) handleTenantsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	env := s.svc.ListTenants(ctx)
	if !env.OK() {
		return nil, fmt.Errorf("failed to list tenants: %s", env.Error)
	}
	tenants := make([]string, 0, len(env.Data))
	for _, t := range env.Data {
		if _, allowed := s.caller(ctx, t); allowed {
			tenants = append(tenants, t)
		}
	}
	return jsonContents(tenantsURI, tenants)
}

// handleOpenAPIResource renders the OpenAPI document of one collection.
func (s *MCPServer) handleOpenAPIResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	tenant, ref, ok := strings.Cut(strings.TrimPrefix(uri, openAPIPrefix), "/")
	if !ok || tenant == "" || ref == "" || !strings.HasPrefix(uri, openAPIPrefix) {
		return nil, fmt.Errorf("invalid URI %q: expected %s{tenant}/{collection}", uri, openAPIPrefix)
	}
	if _, allowed := s.caller(ctx, tenant); !allowed {
		return nil, fmt.Errorf("access to tenant %q is not allowed", tenant)
	}

	view, errResult := s.collectionView(ctx, tenant, ref)
	if errResult != nil {
		return nil, fmt.Errorf("collection %q not found in tenant %q", ref, tenant)
	}

	doc := openapi.GenerateCollectionSpec(tenant, "", openapi.CollectionSpec{
		Collection: *view.Collection,
		Columns:    view.Columns,
	}, s.svc.FieldTypes())
	return jsonContents(uri, doc)
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
