package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/basin/internal/openapi"
	"github.com/faucetdb/basin/internal/query"
	"github.com/faucetdb/basin/internal/service"
	"github.com/faucetdb/basin/internal/store"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi <tenant>",
		Short: "Generate OpenAPI specification",
		Long: `Generate an OpenAPI 3.1 specification covering the document endpoints of every
collection of a tenant, with schemas derived from the collection columns.`,
		Example: `  basin openapi acme                 # spec to stdout
  basin openapi acme -o acme.json     # write to file
  basin openapi acme --base-url https://cms.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(cmd.Context(), args[0], baseURL, outputFile, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL written into the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(ctx context.Context, tenant, baseURL, outputFile string, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, svc, err := openContent(cfg, newLogger(cfg.Logging, io.Discard, false))
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	specs, err := collectionSpecs(ctx, svc, tenant)
	if err != nil {
		return err
	}

	doc := openapi.GenerateTenantSpec(tenant, baseURL, specs, svc.FieldTypes())
	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, jsonBytes, 0644); err != nil {
			return fmt.Errorf("write spec: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote OpenAPI spec for %d collections to %s\n", len(specs), outputFile)
		return nil
	}
	_, err = fmt.Fprintln(out, string(jsonBytes))
	return err
}

// collectionSpecs loads every collection of a tenant with its columns.
func collectionSpecs(ctx context.Context, svc *service.ContentService, tenant string) ([]openapi.CollectionSpec, error) {
	var specs []openapi.CollectionSpec
	for page := 1; ; page++ {
		env := svc.ListCollections(ctx, tenant, store.ListOptions{Page: page, Limit: query.MaxLimit})
		if !env.OK() {
			return nil, fmt.Errorf("list collections: %s", env.Error)
		}
		for _, c := range env.Data {
			cols := svc.ListColumns(ctx, tenant, c.ID, nil)
			if !cols.OK() {
				return nil, fmt.Errorf("list columns of %s: %s", c.Name, cols.Error)
			}
			specs = append(specs, openapi.CollectionSpec{Collection: c, Columns: cols.Data})
		}
		if int64(page) >= env.TotalPages {
			return specs, nil
		}
	}
}
