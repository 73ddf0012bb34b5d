package delayq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaRendersTableNameWithPrefix(t *testing.T) {
	for _, adapter := range []AdapterName{AdapterPostgres, AdapterMySQL, AdapterMSSQL, AdapterTeradata, AdapterGeneric} {
		ddl := Schema("acme_", adapter)
		assert.Contains(t, ddl, "acme_delayed_jobs")
	}
}

func TestSchemaPostgresIncludesIndices(t *testing.T) {
	ddl := Schema("", AdapterPostgres)
	assert.Contains(t, ddl, "delayed_jobs_priority_run_at_idx")
	assert.Contains(t, ddl, "delayed_jobs_singleton_idx")
}

func TestSchemaMySQLUsesAutoIncrement(t *testing.T) {
	ddl := Schema("", AdapterMySQL)
	assert.Contains(t, ddl, "AUTO_INCREMENT")
}

func TestSchemaMSSQLUsesIdentity(t *testing.T) {
	ddl := Schema("", AdapterMSSQL)
	assert.Contains(t, ddl, "IDENTITY(1,1)")
}
