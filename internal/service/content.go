package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/store"
)

// DuplicateMessage is the envelope error of every unique-constraint violation.
const DuplicateMessage = "Duplicate, already exists"

// ContentService wraps the store DAOs of every tenant with presence checks,
// schema validation and error normalization. Its methods never return Go
// errors: every outcome is an envelope.
type ContentService struct {
	conn     connector.Connector
	types    *fieldtype.Registry
	validate *validator.Validate
	logger   *slog.Logger
}

// NewContentService creates a ContentService over an open connection.
func NewContentService(conn connector.Connector, types *fieldtype.Registry, logger *slog.Logger) *ContentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{
		conn:     conn,
		types:    types,
		validate: newValidator(),
		logger:   logger,
	}
}

// FieldTypes returns the registry the service validates documents with.
func (s *ContentService) FieldTypes() *fieldtype.Registry {
	return s.types
}

// failure is an envelope error before it is copied into an envelope.
type failure struct {
	kind model.ErrorKind
	msg  string
}

func invalid(format string, args ...any) *failure {
	return &failure{kind: model.KindInvalid, msg: fmt.Sprintf(format, args...)}
}

// required returns the argument error of a missing argument.
func required(op, arg string) *failure {
	return invalid("%s: %s is required", op, arg)
}

// storeFailure normalizes a store error. Unique violations become the fixed
// duplicate message; anything unexpected is logged.
func (s *ContentService) storeFailure(op, tenant string, err error) *failure {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return &failure{kind: model.KindDuplicate, msg: DuplicateMessage}
	case errors.Is(err, store.ErrInvalidArgument):
		return &failure{kind: model.KindInvalid, msg: prefixed(op, err)}
	case errors.Is(err, store.ErrNotFound):
		return &failure{kind: model.KindNotFound, msg: prefixed(op, err)}
	}
	s.logger.Error("storage operation failed", "op", op, "tenant", tenant, "error", err)
	return &failure{kind: model.KindInternal, msg: prefixed(op, err)}
}

// prefixed names op in front of err unless the store already did.
func prefixed(op string, err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, op+": ") {
		return msg
	}
	return op + ": " + msg
}

func fail[T any](f *failure, empty T) model.Envelope[T] {
	return model.Envelope[T]{Data: empty, Error: f.msg, Kind: f.kind}
}

func failPaged[T any](f *failure, empty T) model.PagedEnvelope[T] {
	return model.PagedEnvelope[T]{Data: empty, Error: f.msg, Kind: f.kind}
}

func ok[T any](data T) model.Envelope[T] {
	return model.Envelope[T]{Data: data}
}

// tenant opens the store of a namespace.
func (s *ContentService) tenant(op, ns string) (*store.Store, *failure) {
	if ns == "" {
		return nil, required(op, "tenant")
	}
	st, err := store.New(s.conn, ns)
	if err != nil {
		return nil, invalid("%s: %v", op, err)
	}
	return st, nil
}

// ProvisionTenant creates the namespace and its tables if they do not exist.
func (s *ContentService) ProvisionTenant(ctx context.Context, ns string) model.Envelope[[]string] {
	const op = "provision tenant"
	if _, f := s.tenant(op, ns); f != nil {
		return fail(f, []string{})
	}
	if err := store.Provision(ctx, s.conn, ns); err != nil {
		return fail(s.storeFailure(op, ns, err), []string{})
	}
	s.logger.Info("tenant provisioned", "tenant", ns)
	return ok([]string{ns})
}

// ListTenants returns every provisioned namespace.
func (s *ContentService) ListTenants(ctx context.Context) model.Envelope[[]string] {
	names, err := store.Namespaces(ctx, s.conn)
	if err != nil {
		return fail(s.storeFailure("list tenants", "", err), []string{})
	}
	if names == nil {
		names = []string{}
	}
	return ok(names)
}
