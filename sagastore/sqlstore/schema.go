// Package sqlstore is a database/sql-backed sagastore.Store, realized
// over modernc.org/sqlite with a minimal sql.Open wrapper: no ORM,
// hand-written SQL, driver registered by blank import at the call
// site.
package sqlstore

const schema = `
CREATE TABLE IF NOT EXISTS sagas (
	saga_id        TEXT PRIMARY KEY,
	saga_type      TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	current_state  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	completed_at   TEXT,
	error_message  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sagas_state ON sagas(current_state);
CREATE INDEX IF NOT EXISTS idx_sagas_type ON sagas(saga_type);
CREATE INDEX IF NOT EXISTS idx_sagas_created_at ON sagas(created_at);

CREATE TABLE IF NOT EXISTS saga_steps (
	saga_id               TEXT NOT NULL REFERENCES sagas(saga_id) ON DELETE CASCADE,
	step_id               TEXT NOT NULL,
	step_name             TEXT NOT NULL,
	participant_service   TEXT NOT NULL,
	status                TEXT NOT NULL,
	started_at            TEXT,
	completed_at          TEXT,
	error_message         TEXT NOT NULL DEFAULT '',
	compensation_required INTEGER NOT NULL DEFAULT 0,
	compensated_at        TEXT,
	result_data           TEXT,
	PRIMARY KEY (saga_id, step_name)
);

CREATE TABLE IF NOT EXISTS saga_transitions (
	transition_id TEXT PRIMARY KEY,
	saga_id       TEXT NOT NULL REFERENCES sagas(saga_id) ON DELETE CASCADE,
	from_state    TEXT NOT NULL,
	to_state      TEXT NOT NULL,
	timestamp     TEXT NOT NULL,
	service_name  TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL DEFAULT '',
	event_kind    TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	data          TEXT
);

CREATE INDEX IF NOT EXISTS idx_transitions_saga ON saga_transitions(saga_id, timestamp);
`
