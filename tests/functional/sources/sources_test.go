package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicSourceDef(t *testing.T) {
	h := setupSourcesWithAlt(t)

	assert.Equal(t, 4, h.RunCounted("run"))
	h.AssertManyTablesMatch("source", "descendant_model", "nonsource_descendant")
	h.AssertTablesMatch("expected_multi_source", "multi_source_model")

	assert.Equal(t, 6, h.RunCounted("test"))
}

func TestSourceSelector(t *testing.T) {
	h := setupSourcesWithAlt(t)

	// Only one model explicitly depends on the source table.
	assert.Equal(t, 1, h.RunCounted("run", "--models", "source:test_source.test_table+"))
	h.AssertTablesMatch("source", "descendant_model")
	h.AssertTableNotExists("nonsource_descendant")
	h.AssertTableNotExists("multi_source_model")

	// Same selection through the table's tag.
	assert.Equal(t, 1, h.RunCounted("run", "--models", "tag:my_test_source_table_tag+"))

	assert.Equal(t, 4, h.RunCounted("test", "--models", "source:test_source.test_table+"))
	assert.Equal(t, 4, h.RunCounted("test", "--models", "tag:my_test_source_table_tag+"))

	// The source-level tag covers both tables and their descendants.
	assert.Equal(t, 6, h.RunCounted("test", "--models", "tag:my_test_source_tag+"))

	// All four id column tests across both source tables.
	assert.Equal(t, 4, h.RunCounted("test", "--models", "tag:id_column"))
}

func TestEmptySourceDef(t *testing.T) {
	h := setupSourcesWithAlt(t)

	// Sources themselves can never be selected, so nothing runs.
	n := h.RunCounted("run", "--models", "source:test_source.test_table")
	assert.Equal(t, 0, n)
	h.AssertTableNotExists("nonsource_descendant")
	h.AssertTableNotExists("multi_source_model")
	h.AssertTableNotExists("descendant_model")
}

func TestSourceOnlyDef(t *testing.T) {
	h := setupSourcesWithAlt(t)

	assert.Equal(t, 1, h.RunCounted("run", "--models", "source:other_source+"))
	h.AssertTablesMatch("expected_multi_source", "multi_source_model")
	h.AssertTableNotExists("nonsource_descendant")
	h.AssertTableNotExists("descendant_model")

	assert.Equal(t, 2, h.RunCounted("run", "--models", "source:test_source+"))
	h.AssertTablesMatch("source", "descendant_model")
	h.AssertTablesMatch("expected_multi_source", "multi_source_model")
	h.AssertTableNotExists("nonsource_descendant")
}

func TestSourceChildrensParents(t *testing.T) {
	h := setupSourcesWithAlt(t)

	assert.Equal(t, 2, h.RunCounted("run", "--models", "@source:test_source"))
	h.AssertTablesMatch("source", "descendant_model")
	h.AssertTablesMatch("expected_multi_source", "multi_source_model")
	h.AssertTableNotExists("nonsource_descendant")
}

func TestRunOperationSource(t *testing.T) {
	h := setupSourcesWithAlt(t)

	args := `{"source_name": "test_source", "table_name": "test_table"}`
	h.Run("run-operation", "vacuum_source", "--args", args)
}

func TestUnquotedSources(t *testing.T) {
	cfg := sourcesConfig()
	cfg["quoting"] = map[string]any{"database": false, "schema": false, "identifier": false}
	h := setupSources(t, sourcesModels(), cfg)

	h.Run("run")
	h.Run("docs", "generate")
}
