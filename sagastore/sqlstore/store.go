package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/logichill/sagaforge/errors"
	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/saga"
)

// Store is a sagastore.Store backed by database/sql. Callers must blank
// import the driver they intend to use (e.g. `_ "modernc.org/sqlite"`)
// before calling Open, matching storage/database/basic's convention of
// leaving driver registration to the application layer.
type Store struct {
	db     *sql.DB
	logger logging.ILogger
}

// Config configures Open.
type Config struct {
	Driver string // default "sqlite"
	DSN    string
	Logger logging.ILogger
}

// Open opens the database, applies the schema, and returns a ready Store.
func Open(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeServiceUnavailable, "open saga store database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.ErrCodeServiceUnavailable, "ping saga store database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "apply saga store schema")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.ComponentLogger("sagastore.sql")
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateSaga(ctx context.Context, sg *saga.Saga) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sagas (saga_id, saga_type, correlation_id, current_state, created_at, updated_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.SagaID, sg.SagaType, sg.CorrelationID, string(sg.CurrentState),
		sg.CreatedAt.Format(time.RFC3339Nano), sg.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(sg.CompletedAt), sg.ErrorMessage,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return saga.ErrAlreadyExists(sg.SagaID)
		}
		return errors.WrapError(err, errors.ErrCodeInternal, "insert saga")
	}
	for _, step := range sg.Steps {
		if err := s.RecordStepResult(ctx, sg.SagaID, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdateSagaState(ctx context.Context, sagaID string, expectedCurrentState saga.State, transition *saga.SagaTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "begin update saga state tx")
	}
	defer func() { _ = tx.Rollback() }()

	var completedAt any
	if transition.ToState.IsTerminal() {
		completedAt = transition.Timestamp.Format(time.RFC3339Nano)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE sagas SET current_state = ?, updated_at = ?, completed_at = COALESCE(completed_at, ?)
		WHERE saga_id = ? AND current_state = ?`,
		string(transition.ToState), transition.Timestamp.Format(time.RFC3339Nano), completedAt,
		sagaID, string(expectedCurrentState),
	)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "update saga current_state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "read rows affected")
	}
	if n == 0 {
		// Either the saga does not exist, or another writer already
		// advanced current_state past expectedCurrentState.
		var exists bool
		_ = tx.QueryRowContext(ctx, `SELECT 1 FROM sagas WHERE saga_id = ?`, sagaID).Scan(&exists)
		if !exists {
			return saga.ErrNotFound(sagaID)
		}
		return saga.ErrConcurrentUpdate(sagaID)
	}

	data, err := marshalData(transition.Data)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "marshal transition data")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO saga_transitions (transition_id, saga_id, from_state, to_state, timestamp, service_name, action, event_kind, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transition.TransitionID, sagaID, string(transition.FromState), string(transition.ToState),
		transition.Timestamp.Format(time.RFC3339Nano), transition.ServiceName, transition.Action,
		string(transition.EventKind), transition.Message, data,
	); err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "insert transition")
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "commit update saga state tx")
	}
	return nil
}

func (s *Store) RecordStepResult(ctx context.Context, sagaID string, step *saga.SagaStep) error {
	data, err := marshalData(step.ResultData)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "marshal step result data")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saga_steps (saga_id, step_id, step_name, participant_service, status, started_at, completed_at, error_message, compensation_required, compensated_at, result_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(saga_id, step_name) DO UPDATE SET
			step_id = excluded.step_id,
			participant_service = excluded.participant_service,
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error_message = excluded.error_message,
			compensation_required = excluded.compensation_required,
			compensated_at = excluded.compensated_at,
			result_data = excluded.result_data`,
		sagaID, step.StepID, step.StepName, step.ParticipantService, string(step.Status),
		nullableTime(step.StartedAt), nullableTime(step.CompletedAt), step.ErrorMessage,
		boolToInt(step.CompensationRequired), nullableTime(step.CompensatedAt), data,
	)
	if err != nil {
		return errors.WrapError(err, errors.ErrCodeInternal, "upsert saga step")
	}
	return nil
}

func (s *Store) ReadSaga(ctx context.Context, sagaID string) (*saga.Saga, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT saga_id, saga_type, correlation_id, current_state, created_at, updated_at, completed_at, error_message
		FROM sagas WHERE saga_id = ?`, sagaID)
	sg, err := scanSaga(row)
	if err == sql.ErrNoRows {
		return nil, saga.ErrNotFound(sagaID)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "read saga")
	}
	if sg.Steps, err = s.loadSteps(ctx, sagaID); err != nil {
		return nil, err
	}
	if sg.Transitions, err = s.loadTransitions(ctx, sagaID); err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *Store) ListByState(ctx context.Context, state saga.State) ([]*saga.Saga, error) {
	return s.listWhere(ctx, `current_state = ?`, string(state))
}

func (s *Store) ListByType(ctx context.Context, sagaType string) ([]*saga.Saga, error) {
	return s.listWhere(ctx, `saga_type = ?`, sagaType)
}

func (s *Store) ListByDateRange(ctx context.Context, from, to time.Time) ([]*saga.Saga, error) {
	return s.listWhere(ctx, `created_at BETWEEN ? AND ?`, from.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano))
}

func (s *Store) ReplayIncomplete(ctx context.Context) ([]*saga.Saga, error) {
	return s.listWhere(ctx, `current_state NOT IN (?, ?, ?)`,
		string(saga.StateCompleted), string(saga.StateFailed), string(saga.StateCompensated))
}

// Sweep deletes terminal sagas completed before the retention cutoff,
// together with their steps and transitions. The child rows are deleted
// explicitly: Open does not enable SQLite foreign keys, so the schema's
// ON DELETE CASCADE does not fire by itself.
func (s *Store) Sweep(ctx context.Context, completedBefore time.Time) (int, error) {
	cutoff := completedBefore.Format(time.RFC3339Nano)
	for _, table := range []string{"saga_steps", "saga_transitions"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE saga_id IN
			(SELECT saga_id FROM sagas WHERE completed_at IS NOT NULL AND completed_at < ?)`, cutoff); err != nil {
			return 0, errors.WrapError(err, errors.ErrCodeInternal, "sweep terminal saga "+table)
		}
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sagas WHERE completed_at IS NOT NULL AND completed_at < ?`, cutoff)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrCodeInternal, "sweep terminal sagas")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrCodeInternal, "read rows affected")
	}
	return int(n), nil
}

func (s *Store) listWhere(ctx context.Context, where string, args ...any) ([]*saga.Saga, error) {
	query := fmt.Sprintf(`
		SELECT saga_id, saga_type, correlation_id, current_state, created_at, updated_at, completed_at, error_message
		FROM sagas WHERE %s ORDER BY created_at`, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "list sagas")
	}
	defer rows.Close()

	var out []*saga.Saga
	var ids []string
	for rows.Next() {
		sg, err := scanSagaRow(rows)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "scan saga row")
		}
		out = append(out, sg)
		ids = append(ids, sg.SagaID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "iterate sagas")
	}

	// N+1 is acceptable here: list/aggregate queries are explicitly
	// eventually-consistent, lower-volume admin paths, not the
	// per-saga hot path ReadSaga serves.
	for i, sg := range out {
		steps, err := s.loadSteps(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		transitions, err := s.loadTransitions(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		sg.Steps = steps
		sg.Transitions = transitions
	}
	return out, nil
}

func (s *Store) loadSteps(ctx context.Context, sagaID string) ([]*saga.SagaStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, step_name, participant_service, status, started_at, completed_at, error_message, compensation_required, compensated_at, result_data
		FROM saga_steps WHERE saga_id = ? ORDER BY rowid`, sagaID)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "load saga steps")
	}
	defer rows.Close()

	steps := make([]*saga.SagaStep, 0, 4)
	for rows.Next() {
		var step saga.SagaStep
		var started, completed, compensated sql.NullString
		var compReq int
		var resultData sql.NullString
		if err := rows.Scan(&step.StepID, &step.StepName, &step.ParticipantService, &step.Status,
			&started, &completed, &step.ErrorMessage, &compReq, &compensated, &resultData); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "scan saga step")
		}
		step.StartedAt = parseNullableTime(started)
		step.CompletedAt = parseNullableTime(completed)
		step.CompensatedAt = parseNullableTime(compensated)
		step.CompensationRequired = compReq != 0
		if resultData.Valid && resultData.String != "" {
			if err := json.Unmarshal([]byte(resultData.String), &step.ResultData); err != nil {
				return nil, errors.WrapError(err, errors.ErrCodeInternal, "unmarshal step result data")
			}
		}
		steps = append(steps, &step)
	}
	return steps, rows.Err()
}

func (s *Store) loadTransitions(ctx context.Context, sagaID string) ([]*saga.SagaTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transition_id, from_state, to_state, timestamp, service_name, action, event_kind, message, data
		FROM saga_transitions WHERE saga_id = ? ORDER BY timestamp, rowid`, sagaID)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "load saga transitions")
	}
	defer rows.Close()

	transitions := make([]*saga.SagaTransition, 0, 8)
	for rows.Next() {
		var t saga.SagaTransition
		var ts string
		var data sql.NullString
		if err := rows.Scan(&t.TransitionID, &t.FromState, &t.ToState, &ts, &t.ServiceName, &t.Action, &t.EventKind, &t.Message, &data); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "scan saga transition")
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "parse transition timestamp")
		}
		t.SagaID = sagaID
		t.Timestamp = parsed
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &t.Data); err != nil {
				return nil, errors.WrapError(err, errors.ErrCodeInternal, "unmarshal transition data")
			}
		}
		transitions = append(transitions, &t)
	}
	return transitions, rows.Err()
}

type scannableRow interface {
	Scan(dest ...any) error
}

func scanSaga(row scannableRow) (*saga.Saga, error) {
	var sg saga.Saga
	var createdAt, updatedAt string
	var completedAt sql.NullString
	if err := row.Scan(&sg.SagaID, &sg.SagaType, &sg.CorrelationID, &sg.CurrentState,
		&createdAt, &updatedAt, &completedAt, &sg.ErrorMessage); err != nil {
		return nil, err
	}
	var err error
	if sg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if sg.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	sg.CompletedAt = parseNullableTime(completedAt)
	return &sg, nil
}

func scanSagaRow(rows *sql.Rows) (*saga.Saga, error) { return scanSaga(rows) }

func marshalData(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation matches modernc.org/sqlite's error text for a
// primary-key/unique constraint violation. The driver does not export a
// typed sentinel, so this is the same string-match a sql.DB-backed
// storage layer typically falls back to for driver-specific error
// classification.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
