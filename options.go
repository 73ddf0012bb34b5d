package delayq

// StoreOption configures a PostgresStore or SQLStore at construction.
type StoreOption struct {
	applyPostgres func(*PostgresStore)
	applySQL      func(*SQLStore)
}

// WithTablePrefix sets the initial "<prefix>delayed_jobs" table prefix.
func WithTablePrefix(prefix string) StoreOption {
	return StoreOption{
		applyPostgres: func(s *PostgresStore) { s.tablePrefix = prefix },
		applySQL:      func(s *SQLStore) { s.tablePrefix = prefix },
	}
}

// WithClock overrides the default UTC Clock.
func WithClock(c Clock) StoreOption {
	return StoreOption{
		applyPostgres: func(s *PostgresStore) { s.clock = c },
		applySQL:      func(s *SQLStore) { s.clock = c },
	}
}

// WithSerializer overrides the default JSONSerializer.
func WithSerializer(ser Serializer) StoreOption {
	return StoreOption{
		applyPostgres: func(s *PostgresStore) { s.serializer = ser },
		applySQL:      func(s *SQLStore) { s.serializer = ser },
	}
}

// WithLogger attaches a TaggedLogger for diagnostic logging.
func WithLogger(l TaggedLogger) StoreOption {
	return StoreOption{
		applyPostgres: func(s *PostgresStore) { s.logger = l },
		applySQL:      func(s *SQLStore) { s.logger = l },
	}
}

// WithMetrics attaches a Metrics collector.
func WithMetrics(m *Metrics) StoreOption {
	return StoreOption{
		applyPostgres: func(s *PostgresStore) { s.metrics = m },
		applySQL:      func(s *SQLStore) { s.metrics = m },
	}
}
