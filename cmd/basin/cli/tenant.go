package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tenant",
		Aliases: []string{"tenants", "ns"},
		Short:   "Manage tenant namespaces",
		Long:    "Provision and list the tenant namespaces of the content store.",
	}

	cmd.AddCommand(newTenantCreateCmd())
	cmd.AddCommand(newTenantListCmd())

	return cmd
}

// ---------- tenant create ----------

func newTenantCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Provision a tenant namespace",
		Long: `Create the namespace of a tenant with its collections, columns and documents
tables. Provisioning an existing tenant is a no-op.`,
		Example: `  basin tenant create acme`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantCreate(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runTenantCreate(ctx context.Context, out io.Writer, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, io.Discard, false)
	conn, svc, err := openContent(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	env := svc.ProvisionTenant(ctx, name)
	if !env.OK() {
		return fmt.Errorf("provision tenant: %s", env.Error)
	}
	fmt.Fprintf(out, "Tenant %q is ready.\n", name)
	return nil
}

// ---------- tenant list ----------

func newTenantListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tenant namespaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTenantList(cmd.Context(), cmd.OutOrStdout(), jsonOutput || !isTerminal(os.Stdout))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTenantList(ctx context.Context, out io.Writer, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, io.Discard, false)
	conn, svc, err := openContent(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	env := svc.ListTenants(ctx)
	if !env.OK() {
		return fmt.Errorf("list tenants: %s", env.Error)
	}

	if jsonOutput {
		return printJSON(out, env.Data)
	}
	if len(env.Data) == 0 {
		fmt.Fprintln(out, "No tenants provisioned. Use 'basin tenant create <name>' to create one.")
		return nil
	}
	fmt.Fprintf(out, "%-32s\n", "TENANT")
	fmt.Fprintf(out, "%-32s\n", "------")
	for _, t := range env.Data {
		fmt.Fprintf(out, "%-32s\n", t)
	}
	return nil
}
