package store

import (
	"context"
	"fmt"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/query"
)

// Provision creates the namespace and its tables if they do not exist yet.
// It is idempotent.
func Provision(ctx context.Context, conn connector.Connector, namespace string) error {
	if err := query.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := conn.Provision(ctx, namespace); err != nil {
		return err
	}
	return nil
}

// Namespaces lists the provisioned tenant namespaces.
func Namespaces(ctx context.Context, conn connector.Connector) ([]string, error) {
	return conn.Namespaces(ctx)
}
