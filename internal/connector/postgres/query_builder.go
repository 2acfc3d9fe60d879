package postgres

import (
	"fmt"
	"strings"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/query"
)

// JSONObject renders a jsonb_build_object over the given fields. jsonb,
// boolean and timestamptz columns nest natively.
func (c *PostgresConnector) JSONObject(alias string, fields []connector.Field) string {
	return "jsonb_build_object(" + connector.ObjectPairs(fields, func(f connector.Field) string {
		return connector.Qualify(alias, c.QuoteIdentifier(f.Column))
	}) + ")"
}

// JSONRemoveKey deletes a top-level key from a jsonb value.
func (c *PostgresConnector) JSONRemoveKey(expr, keyParam string) string {
	return "(" + expr + " - " + keyParam + "::text)"
}

// JSONHasKey tests for a top-level key of a jsonb value.
func (c *PostgresConnector) JSONHasKey(expr, keyParam string) string {
	return "jsonb_exists(" + expr + ", " + keyParam + "::text)"
}

// JSONKeyArg binds a payload key as plain text.
func (c *PostgresConnector) JSONKeyArg(key string) interface{} { return key }

// OrderExpr renders one ORDER BY term. Payload keys sort on the text value
// extracted with ->>.
func (c *PostgresConnector) OrderExpr(alias string, term connector.OrderTerm, p *query.Params) string {
	var expr string
	if term.JSONKey != "" {
		expr = "(" + connector.Qualify(alias, c.QuoteIdentifier("data")) + " ->> " + p.Add(term.JSONKey) + "::text)"
	} else {
		expr = connector.Qualify(alias, c.QuoteIdentifier(term.Column))
	}
	return expr + " " + query.OrderClause{Direction: term.Direction, Nulls: term.Nulls}.Suffix()
}

func (c *PostgresConnector) orderBy(alias string, terms []connector.OrderTerm, p *query.Params) string {
	parts := make([]string, 0, len(terms)+1)
	sortsByID := false
	for _, t := range terms {
		parts = append(parts, c.OrderExpr(alias, t, p))
		if t.Column == "id" {
			sortsByID = true
		}
	}
	if !sortsByID {
		parts = append(parts, connector.Qualify(alias, c.QuoteIdentifier("id"))+" ASC")
	}
	return strings.Join(parts, ", ")
}

// BuildDocumentsView renders the single statement returning the collection,
// its columns and one ordered page of its documents as three JSON values.
// Each aggregate is left-joined on the collection id, so an unknown
// collection yields no row at all.
func (c *PostgresConnector) BuildDocumentsView(req connector.ViewRequest) (string, []interface{}, error) {
	if err := query.ValidateNamespace(req.Namespace); err != nil {
		return "", nil, err
	}
	if req.CollectionID <= 0 {
		return "", nil, fmt.Errorf("collection id is required")
	}
	if len(req.CollectionFields) == 0 || len(req.ColumnFields) == 0 || len(req.DocumentFields) == 0 {
		return "", nil, fmt.Errorf("documents view: field lists are required")
	}

	p := c.NewParams()
	id := p.Add(req.CollectionID)
	order := c.orderBy("d", req.Order, p)
	limit := p.Add(req.Limit)
	offset := p.Add(req.Offset)

	var b strings.Builder
	b.WriteString(`SELECT c."collection" AS "collection", cols."columns" AS "columns", docs."documents" AS "documents"`)
	b.WriteString("\nFROM (SELECT x.\"id\", ")
	b.WriteString(c.JSONObject("x", req.CollectionFields))
	b.WriteString(` AS "collection" FROM `)
	b.WriteString(c.Table(req.Namespace, connector.TableCollections))
	b.WriteString(` x WHERE x."id" = ` + id + `) AS c`)

	b.WriteString("\nLEFT JOIN (SELECT cc.\"collection_id\", jsonb_agg(")
	b.WriteString(c.JSONObject("cc", req.ColumnFields))
	b.WriteString(` ORDER BY cc."id") AS "columns" FROM `)
	b.WriteString(c.Table(req.Namespace, connector.TableColumns))
	b.WriteString(` cc WHERE cc."collection_id" = ` + id + ` GROUP BY cc."collection_id") AS cols ON cols."collection_id" = c."id"`)

	b.WriteString("\nLEFT JOIN (SELECT p.\"collection_id\", jsonb_agg(p.\"document\" ORDER BY p.\"position\") AS \"documents\" FROM (")
	b.WriteString(`SELECT d."collection_id", `)
	b.WriteString(c.JSONObject("d", req.DocumentFields))
	b.WriteString(` AS "document", row_number() OVER (ORDER BY ` + order + `) AS "position" FROM `)
	b.WriteString(c.Table(req.Namespace, connector.TableDocuments))
	b.WriteString(` d WHERE d."collection_id" = ` + id)
	b.WriteString(` ORDER BY ` + order + ` LIMIT ` + limit + ` OFFSET ` + offset)
	b.WriteString(`) AS p GROUP BY p."collection_id") AS docs ON docs."collection_id" = c."id"`)

	return b.String(), p.Args(), nil
}
