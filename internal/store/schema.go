package store

import "github.com/faucetdb/basin/internal/connector"

var auditFields = []connector.Field{
	{Key: "createdAt", Column: "created_at", Kind: connector.KindTime},
	{Key: "createdBy", Column: "created_by"},
	{Key: "updatedAt", Column: "updated_at", Kind: connector.KindTime},
	{Key: "updatedBy", Column: "updated_by"},
}

func withAudit(fields ...connector.Field) []connector.Field {
	return append(fields, auditFields...)
}

// CollectionFields are the selectable fields of a collection row.
var CollectionFields = withAudit(
	connector.Field{Key: "id", Column: "id"},
	connector.Field{Key: "userId", Column: "user_id"},
	connector.Field{Key: "name", Column: "name"},
	connector.Field{Key: "type", Column: "type"},
	connector.Field{Key: "roles", Column: "roles", Kind: connector.KindJSON},
	connector.Field{Key: "columnOrder", Column: "column_order", Kind: connector.KindJSON},
	connector.Field{Key: "published", Column: "published", Kind: connector.KindBool},
)

// ColumnFields are the selectable fields of a column row.
var ColumnFields = withAudit(
	connector.Field{Key: "id", Column: "id"},
	connector.Field{Key: "collectionId", Column: "collection_id"},
	connector.Field{Key: "columnName", Column: "column_name"},
	connector.Field{Key: "fieldId", Column: "field_id"},
	connector.Field{Key: "type", Column: "type"},
	connector.Field{Key: "fieldOptions", Column: "field_options", Kind: connector.KindJSON},
	connector.Field{Key: "validation", Column: "validation", Kind: connector.KindJSON},
	connector.Field{Key: "helpText", Column: "help_text"},
	connector.Field{Key: "enableDelete", Column: "enable_delete", Kind: connector.KindBool},
	connector.Field{Key: "enableSort", Column: "enable_sort", Kind: connector.KindBool},
	connector.Field{Key: "enableHide", Column: "enable_hide", Kind: connector.KindBool},
	connector.Field{Key: "enableFilter", Column: "enable_filter", Kind: connector.KindBool},
	connector.Field{Key: "sortBy", Column: "sort_by"},
	connector.Field{Key: "isVisible", Column: "is_visible", Kind: connector.KindBool},
	connector.Field{Key: "index", Column: "index_spec", Kind: connector.KindJSON},
)

// DocumentFields are the selectable fields of a document row.
var DocumentFields = withAudit(
	connector.Field{Key: "id", Column: "id"},
	connector.Field{Key: "collectionId", Column: "collection_id"},
	connector.Field{Key: "data", Column: "data", Kind: connector.KindJSON},
)

// viewDocumentFields omit the collection id, which the view already carries.
var viewDocumentFields = withAudit(
	connector.Field{Key: "id", Column: "id"},
	connector.Field{Key: "data", Column: "data", Kind: connector.KindJSON},
)

// sortableAuditColumns maps the audit fields a documents view may sort on
// to their relational columns.
var sortableAuditColumns = map[string]string{
	"id":         "id",
	"createdAt":  "created_at",
	"created_at": "created_at",
	"updatedAt":  "updated_at",
	"updated_at": "updated_at",
	"createdBy":  "created_by",
	"created_by": "created_by",
	"updatedBy":  "updated_by",
	"updated_by": "updated_by",
}
