package delayq

import "fmt"

// Schema renders the CREATE TABLE statement for the given adapter and table
// prefix, including indices on the columns Reserve filters and sorts by.
// Applications are free to manage their own migrations instead — this
// exists so the CLI exerciser and tests can stand up a table without an
// external migration tool.
func Schema(prefix string, adapter AdapterName) string {
	table := tableNameFor(prefix)

	switch adapter {
	case AdapterPostgres:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	priority INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	handler BYTEA NOT NULL,
	last_error TEXT,
	run_at TIMESTAMPTZ NOT NULL,
	locked_at TIMESTAMPTZ,
	locked_by TEXT,
	failed_at TIMESTAMPTZ,
	queue TEXT,
	singleton TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_priority_run_at_idx ON %[1]s (priority, run_at);
CREATE INDEX IF NOT EXISTS %[1]s_locked_by_idx ON %[1]s (locked_by);
CREATE INDEX IF NOT EXISTS %[1]s_singleton_idx ON %[1]s (singleton);
CREATE INDEX IF NOT EXISTS %[1]s_failed_at_idx ON %[1]s (failed_at);
`, table)

	case AdapterMySQL:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	priority INT NOT NULL DEFAULT 0,
	attempts INT NOT NULL DEFAULT 0,
	handler LONGBLOB NOT NULL,
	last_error TEXT,
	run_at DATETIME NOT NULL,
	locked_at DATETIME,
	locked_by VARCHAR(255),
	failed_at DATETIME,
	queue VARCHAR(255),
	singleton VARCHAR(255),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	KEY %[1]s_priority_run_at_idx (priority, run_at),
	KEY %[1]s_locked_by_idx (locked_by),
	KEY %[1]s_singleton_idx (singleton),
	KEY %[1]s_failed_at_idx (failed_at)
);`, table)

	case AdapterMSSQL, AdapterTeradata:
		return fmt.Sprintf(`CREATE TABLE %s (
	id BIGINT IDENTITY(1,1) PRIMARY KEY,
	priority INT NOT NULL DEFAULT 0,
	attempts INT NOT NULL DEFAULT 0,
	handler VARBINARY(MAX) NOT NULL,
	last_error NVARCHAR(MAX),
	run_at DATETIME2 NOT NULL,
	locked_at DATETIME2,
	locked_by NVARCHAR(255),
	failed_at DATETIME2,
	queue NVARCHAR(255),
	singleton NVARCHAR(255),
	created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
	updated_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
);
CREATE INDEX %[1]s_priority_run_at_idx ON %[1]s (priority, run_at);
CREATE INDEX %[1]s_locked_by_idx ON %[1]s (locked_by);
CREATE INDEX %[1]s_singleton_idx ON %[1]s (singleton);
CREATE INDEX %[1]s_failed_at_idx ON %[1]s (failed_at);
`, table)

	default:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	priority INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	handler BLOB NOT NULL,
	last_error TEXT,
	run_at DATETIME NOT NULL,
	locked_at DATETIME,
	locked_by TEXT,
	failed_at DATETIME,
	queue TEXT,
	singleton TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_priority_run_at_idx ON %[1]s (priority, run_at);
CREATE INDEX IF NOT EXISTS %[1]s_locked_by_idx ON %[1]s (locked_by);
CREATE INDEX IF NOT EXISTS %[1]s_singleton_idx ON %[1]s (singleton);
CREATE INDEX IF NOT EXISTS %[1]s_failed_at_idx ON %[1]s (failed_at);
`, table)
	}
}
