package sources

import (
	"context"
	"fmt"
	"testing"

	"github.com/loom-data/loomtest/internal/db"
	"github.com/loom-data/loomtest/internal/fixture"
	"github.com/loom-data/loomtest/tests/testutil"
)

// schemaNameEnvVar tells the project fixtures which var carries the run
// schema, exercising env_var() indirection inside schema.yml.
const schemaNameEnvVar = "LOOM_SCHEMA_NAME_VARIABLE"

const sourcesSchemaYML = `version: 2
models:
  - name: descendant_model
    columns:
      - name: favorite_color
        tests:
          - relationships:
              to: source('test_source', 'test_table')
              field: favorite_color
      - name: id
        tests:
          - unique
sources:
  - name: test_source
    loader: custom
    schema: "{{ var(env_var('LOOM_SCHEMA_NAME_VARIABLE')) }}"
    quoting:
      identifier: true
    tags:
      - my_test_source_tag
    tables:
      - name: test_table
        identifier: source
        loaded_at_field: "{{ var('test_loaded_at') }}"
        freshness:
          warn_after: {count: 10, period: hour}
          error_after: {count: 18, period: hour}
        tags:
          - my_test_source_table_tag
        columns:
          - name: id
            tags:
              - id_column
            tests:
              - unique
              - not_null
      - name: other_test_table
        identifier: other_table
        columns:
          - name: id
            tags:
              - id_column
            tests:
              - unique
              - not_null
  - name: other_source
    schema: "{{ var('test_run_schema') }}"
    quoting:
      identifier: true
    tables:
      - name: test_table
        identifier: other_source_table
`

const descendantModelSQL = `select * from {{ source('test_source', 'test_table') }}
`

const multiSourceModelSQL = `select * from {{ source('test_source', 'other_test_table') }}
join {{ source('other_source', 'test_table') }} using (id)
`

const nonsourceDescendantSQL = `select * from "{{ var('test_run_schema') }}"."source"
`

const viewModelSQL = `{{ config(materialized='view') }}
select id, updated_at from "{{ var('test_run_schema') }}".other_table
`

const expectedMultiSourceCSV = `id,updated_at,letter
1,2016-09-19 14:45:51,a
2,2016-09-19 14:45:51,b
`

const vacuumSourceMacro = `{% macro vacuum_source(source_name, table_name) %}
  {% call statement('stmt', auto_begin=false, fetch_result=false) %}
    vacuum {{ source(source_name, table_name) }}
  {% endcall %}
{% endmacro %}
`

func sourcesModels() fixture.FileTree {
	return fixture.FileTree{
		"schema.yml":               sourcesSchemaYML,
		"descendant_model.sql":     descendantModelSQL,
		"multi_source_model.sql":   multiSourceModelSQL,
		"nonsource_descendant.sql": nonsourceDescendantSQL,
		"view_model.sql":           viewModelSQL,
	}
}

func sourcesConfig() map[string]any {
	return map[string]any{
		"seed-paths": []string{"seeds"},
		"quoting":    map[string]any{"database": true, "schema": true, "identifier": true},
		"seeds":      map[string]any{"quote_columns": true},
	}
}

// fixtureTreeWithSchema builds a models dir holding only a schema.yml,
// which is all the freshness-variant suites need.
func fixtureTreeWithSchema(schemaYML string) fixture.FileTree {
	return fixture.FileTree{"schema.yml": schemaYML}
}

func fixtureOpts(models fixture.FileTree) fixture.Opts {
	return fixture.Opts{Models: models, ConfigUpdate: sourcesConfig()}
}

// setupSources scaffolds the sources project, seeds the raw tables the
// source definitions point at, and loads the expected seed.
func setupSources(t *testing.T, models fixture.FileTree, config map[string]any) *testutil.Harness {
	t.Helper()

	t.Setenv(schemaNameEnvVar, "test_run_schema")

	h := testutil.Setup(t, fixture.Opts{
		Models:       models,
		Macros:       fixture.FileTree{"vacuum.sql": vacuumSourceMacro},
		Seeds:        fixture.FileTree{"expected_multi_source.csv": expectedMultiSourceCSV},
		ConfigUpdate: config,
	})
	h.SeedSourceTables()
	h.Run("seed")
	return h
}

// setupSourcesWithAlt additionally creates the secondary schema with an
// external view over the project schema, so catalog-facing commands see
// relations the project does not own.
func setupSourcesWithAlt(t *testing.T) *testutil.Harness {
	t.Helper()

	h := setupSources(t, sourcesModels(), sourcesConfig())
	alt := h.CreateAltSchema()
	h.Runner.Vars["test_run_alt_schema"] = alt

	h.ExecSQL("create table {schema}.dummy_table (id int)")
	view := fmt.Sprintf("create view %s as (select * from %s)",
		db.QuoteQualified(alt, "external_view"),
		db.QuoteQualified(h.Project.Schema, "dummy_table"))
	if _, err := h.DB.Pool.Exec(context.Background(), view); err != nil {
		t.Fatalf("create external view: %v", err)
	}
	return h
}
