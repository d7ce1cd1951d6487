package db

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TableRowCount returns the number of rows in schema.table.
func TableRowCount(ctx context.Context, q Querier, schema, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("select count(*) from %s", QuoteQualified(schema, table))
	if err := q.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", schema, table, err)
	}
	return n, nil
}

// TableExists reports whether schema.table exists as a table or view.
func TableExists(ctx context.Context, q Querier, schema, table string) (bool, error) {
	var n int64
	err := q.QueryRow(ctx,
		"select count(*) from information_schema.tables where table_schema = $1 and table_name = $2",
		schema, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}

// TablesInSchema returns the table and view names in a schema, sorted.
func TablesInSchema(ctx context.Context, q Querier, schema string) ([]string, error) {
	rows, err := q.Query(ctx,
		"select table_name from information_schema.tables where table_schema = $1 order by table_name",
		schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// TablesMatch verifies that two relations hold identical row sets by
// counting the symmetric difference. A mismatch is returned as an error
// naming both relations and the stray row count, which reads better in
// test failures than a bare boolean.
func TablesMatch(ctx context.Context, q Querier, schemaA, tableA, schemaB, tableB string) error {
	query := fmt.Sprintf(
		"select count(*) from ((select * from %s except select * from %s) union all (select * from %s except select * from %s)) diff",
		QuoteQualified(schemaA, tableA), QuoteQualified(schemaB, tableB),
		QuoteQualified(schemaB, tableB), QuoteQualified(schemaA, tableA),
	)
	var diff int64
	if err := q.QueryRow(ctx, query).Scan(&diff); err != nil {
		return fmt.Errorf("compare %s.%s with %s.%s: %w", schemaA, tableA, schemaB, tableB, err)
	}
	if diff != 0 {
		return fmt.Errorf("%s.%s and %s.%s differ by %d rows", schemaA, tableA, schemaB, tableB, diff)
	}
	return nil
}

// ManyTablesMatch verifies that every named relation in a schema holds the
// same row set as the first one. Comparisons run concurrently.
func ManyTablesMatch(ctx context.Context, q Querier, schema string, tables ...string) error {
	if len(tables) < 2 {
		return fmt.Errorf("need at least two tables to compare, got %d", len(tables))
	}
	base := tables[0]

	g, gctx := errgroup.WithContext(ctx)
	for _, table := range tables[1:] {
		g.Go(func() error {
			return TablesMatch(gctx, q, schema, base, schema, table)
		})
	}
	return g.Wait()
}
