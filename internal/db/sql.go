package db

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Render substitutes the {schema} and {database} placeholders the fixture
// SQL files use, so the same statements work against any test schema.
func Render(sql, schema, database string) string {
	return strings.NewReplacer(
		"{schema}", QuoteIdent(schema),
		"{database}", QuoteIdent(database),
	).Replace(sql)
}

// RunSQL executes a single statement after placeholder substitution.
// Blank statements are ignored so callers can feed it split fragments.
func RunSQL(ctx context.Context, q Querier, sql, schema, database string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	rendered := Render(sql, schema, database)
	if _, err := q.Exec(ctx, rendered); err != nil {
		return fmt.Errorf("execute %q: %w", firstLine(rendered), err)
	}
	return nil
}

// RunSQLFile executes every ;-separated statement in a file against the
// given schema.
func RunSQLFile(ctx context.Context, q Querier, path, schema, database string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sql file: %w", err)
	}
	for _, stmt := range strings.Split(string(data), ";") {
		if err := RunSQL(ctx, q, stmt, schema, database); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// FetchOne runs a query and scans its single row into dest.
func FetchOne(ctx context.Context, q Querier, sql, schema, database string, dest ...any) error {
	rendered := Render(sql, schema, database)
	if err := q.QueryRow(ctx, rendered).Scan(dest...); err != nil {
		return fmt.Errorf("fetch one %q: %w", firstLine(rendered), err)
	}
	return nil
}

// FetchAll runs a query and returns every row as a positional value slice.
func FetchAll(ctx context.Context, q Querier, sql, schema, database string) ([][]any, error) {
	rendered := Render(sql, schema, database)
	rows, err := q.Query(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("fetch all %q: %w", firstLine(rendered), err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func firstLine(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexByte(sql, '\n'); i >= 0 {
		sql = sql[:i] + " ..."
	}
	return sql
}
