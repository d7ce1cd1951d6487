package db

import (
	"context"
	"fmt"
	"strings"
)

// QuoteIdent quotes a SQL identifier the way the tool's postgres adapter
// does: double quotes, embedded quotes doubled.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes a schema-qualified relation name.
func QuoteQualified(schema, relation string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(relation)
}

// CreateSchema drops any leftover schema of the same name and creates a
// fresh one. Dropping first keeps reruns of a crashed test deterministic.
func CreateSchema(ctx context.Context, q Querier, name string) error {
	if err := DropSchema(ctx, q, name); err != nil {
		return err
	}
	if _, err := q.Exec(ctx, fmt.Sprintf("create schema %s", QuoteIdent(name))); err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	return nil
}

// DropSchema removes a schema and everything in it. Missing schemas are
// not an error.
func DropSchema(ctx context.Context, q Querier, name string) error {
	if _, err := q.Exec(ctx, fmt.Sprintf("drop schema if exists %s cascade", QuoteIdent(name))); err != nil {
		return fmt.Errorf("drop schema %s: %w", name, err)
	}
	return nil
}

// WithSchema creates a schema, runs fn inside it, and drops the schema
// afterwards regardless of fn's outcome.
func WithSchema(ctx context.Context, q Querier, name string, fn func(ctx context.Context) error) error {
	if err := CreateSchema(ctx, q, name); err != nil {
		return err
	}
	fnErr := fn(ctx)
	if err := DropSchema(ctx, q, name); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// ListSchemas returns all schema names in the database, sorted.
func ListSchemas(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.Query(ctx,
		"select schema_name from information_schema.schemata order by schema_name")
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return names, nil
}
