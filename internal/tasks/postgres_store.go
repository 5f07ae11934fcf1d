package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresConfig holds connection pool tuning, mirrored from the teacher's
// CockroachConfig (internal/tasks/cockroach.go).
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sane pool defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore implements Store against Postgres/CockroachDB via
// database/sql using the pgx/v5 stdlib driver, grounded on the teacher's
// internal/tasks/cockroach.go (database/sql + driver-of-choice, JSON-
// marshalled auxiliary columns, scanTask row helper) adapted from the
// cron-execution schema to the task-graph schema, with row locking
// ("SELECT ... FOR UPDATE") on the Transition/UpdateTask/SpawnSubtasks
// paths in the spirit of internal/jobs's lease-acquisition pattern (§5).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDSN opens a connection pool and verifies connectivity.
func NewPostgresStoreFromDSN(dsn string, cfg *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("tasks: dsn is required")
	}
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("tasks: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("tasks: ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const taskColumns = `id, parent_id, workflow_id, principal, conversation_id, title, description,
	kind, priority, status, execution_mode, condition, dependencies, tolerate_failures,
	input, output, error, waiting_for_input, input_prompt, retry_count, max_retries,
	estimated_duration_ns, actual_duration_ns, created_at, started_at, completed_at`

func (s *PostgresStore) CreateTask(ctx context.Context, t *Task) error {
	if t == nil {
		return fmt.Errorf("tasks: task is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tasks: begin: %w", err)
	}
	defer tx.Rollback()

	if t.ParentID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id=$1)`, t.ParentID).Scan(&exists); err != nil {
			return fmt.Errorf("tasks: check parent: %w", err)
		}
		if !exists {
			return ErrMissingParent
		}
	}
	if err := checkDepsExistTx(ctx, tx, t.Dependencies); err != nil {
		return err
	}
	if err := checkNoCycleTx(ctx, tx, t.ID, t.Dependencies); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if err := insertTaskTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tasks: get: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter ListFilter) ([]*Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	n := 0
	next := func() int { n++; return n }

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", next())
			args = append(args, string(st))
		}
		q += " AND status IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		q += fmt.Sprintf(" AND parent_id = $%d", next())
	}
	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		q += fmt.Sprintf(" AND workflow_id = $%d", next())
	}
	if filter.Principal != "" {
		args = append(args, filter.Principal)
		q += fmt.Sprintf(" AND principal = $%d", next())
	}
	q += " ORDER BY priority DESC, created_at ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", next())
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", next())
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id string, patch Patch) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrTerminalUpdate
	}
	if patch.Dependencies != nil {
		if err := checkDepsExistTx(ctx, tx, *patch.Dependencies); err != nil {
			return nil, err
		}
		if err := checkNoCycleTx(ctx, tx, id, *patch.Dependencies); err != nil {
			return nil, err
		}
	}
	applyPatch(t, patch)
	if err := updateTaskRowTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tasks: commit: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id string, to Status, fields Patch) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrTerminalUpdate
	}
	from := t.Status
	if !validTransition(from, to) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	switch to {
	case StatusRunning:
		t.StartedAt = &now
		t.CompletedAt = nil
	case StatusWaitingInput:
		t.WaitingInput = true
	case StatusCompleted, StatusFailed, StatusCancelled:
		t.CompletedAt = &now
		if t.StartedAt != nil {
			t.ActualDuration = now.Sub(*t.StartedAt)
		}
	case StatusPending:
		t.WaitingInput = false
	}
	t.Status = to
	applyPatch(t, fields)
	if err := updateTaskRowTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tasks: commit: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) AddDependency(ctx context.Context, id, dep string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tasks: begin: %w", err)
	}
	defer tx.Rollback()

	if err := checkDepsExistTx(ctx, tx, []string{dep}); err != nil {
		return err
	}
	if err := checkNoCycleTx(ctx, tx, id, []string{dep}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET dependencies = array_append(dependencies, $2)
		WHERE id = $1 AND NOT ($2 = ANY(dependencies))`, id, dep); err != nil {
		return fmt.Errorf("tasks: add dependency: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) SpawnSubtasks(ctx context.Context, parentID string, specs []*Task, mode ExecutionMode) ([]*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks: begin: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, parentID)
	parent, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMissingParent
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Task, 0, len(specs))
	for _, spec := range specs {
		spec.ParentID = parentID
		spec.Principal = parent.Principal
		spec.ConversationID = parent.ConversationID
		if spec.Status == "" {
			spec.Status = StatusPending
		}
		if spec.CreatedAt.IsZero() {
			spec.CreatedAt = time.Now()
		}
		if spec.ExecutionMode == "" {
			spec.ExecutionMode = mode
		}
		if err := insertTaskTx(ctx, tx, spec); err != nil {
			return nil, fmt.Errorf("tasks: spawn subtask: %w", err)
		}
		out = append(out, spec)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET execution_mode=$2 WHERE id=$1`, parentID, string(mode)); err != nil {
		return nil, fmt.Errorf("tasks: update parent mode: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tasks: commit: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Children(ctx context.Context, parentID string) ([]*Task, error) {
	return s.ListTasks(ctx, ListFilter{ParentID: parentID})
}

// sqlTx is the subset of *sql.Tx used by the helpers below, letting tests
// exercise them against sqlmock-backed transactions.
type sqlTx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func checkDepsExistTx(ctx context.Context, tx sqlTx, deps []string) error {
	for _, dep := range deps {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id=$1)`, dep).Scan(&exists); err != nil {
			return fmt.Errorf("tasks: check dependency: %w", err)
		}
		if !exists {
			return ErrMissingDep
		}
	}
	return nil
}

// checkNoCycleTx walks the persisted dependency graph to ensure adding
// `from depends on deps...` introduces no cycle.
func checkNoCycleTx(ctx context.Context, tx sqlTx, from string, deps []string) error {
	depsOf := func(id string) []string {
		var raw []byte
		if err := tx.QueryRowContext(ctx, `SELECT dependencies FROM tasks WHERE id=$1`, id).Scan(&raw); err != nil {
			return nil
		}
		var out []string
		_ = json.Unmarshal(raw, &out)
		return out
	}
	for _, dep := range deps {
		if wouldCycle(from, dep, depsOf) {
			return ErrCycle
		}
	}
	return nil
}

func insertTaskTx(ctx context.Context, tx sqlTx, t *Task) error {
	cond, err := marshalCondition(t.Condition)
	if err != nil {
		return err
	}
	errJSON, err := marshalError(t.Error)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`,
		t.ID, nullableString(t.ParentID), nullableString(t.WorkflowID), t.Principal,
		nullableString(t.ConversationID), t.Title, nullableString(t.Description),
		string(t.Kind), t.Priority, string(t.Status), string(t.ExecutionMode),
		cond, depsJSON(t.Dependencies), t.TolerateFail,
		[]byte(t.Input), []byte(t.Output), errJSON, t.WaitingInput, nullableString(t.InputPrompt),
		t.RetryCount, t.MaxRetries, t.EstimatedDuration.Nanoseconds(), t.ActualDuration.Nanoseconds(),
		t.CreatedAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("tasks: insert: %w", err)
	}
	return nil
}

func updateTaskRowTx(ctx context.Context, tx sqlTx, t *Task) error {
	cond, err := marshalCondition(t.Condition)
	if err != nil {
		return err
	}
	errJSON, err := marshalError(t.Error)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET
			status=$2, condition=$3, dependencies=$4, tolerate_failures=$5,
			input=$6, output=$7, error=$8, waiting_for_input=$9, input_prompt=$10,
			retry_count=$11, priority=$12, started_at=$13, completed_at=$14,
			actual_duration_ns=$15
		WHERE id=$1
	`, t.ID, string(t.Status), cond, depsJSON(t.Dependencies), t.TolerateFail,
		[]byte(t.Input), []byte(t.Output), errJSON, t.WaitingInput, nullableString(t.InputPrompt),
		t.RetryCount, t.Priority, t.StartedAt, t.CompletedAt, t.ActualDuration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("tasks: update: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var parentID, workflowID, conversationID, description, inputPrompt *string
	var condJSON, errJSON, depsRaw []byte
	var estNS, actNS int64
	var kind, status, mode string
	if err := row.Scan(
		&t.ID, &parentID, &workflowID, &t.Principal, &conversationID, &t.Title, &description,
		&kind, &t.Priority, &status, &mode, &condJSON, &depsRaw, &t.TolerateFail,
		&t.Input, &t.Output, &errJSON, &t.WaitingInput, &inputPrompt,
		&t.RetryCount, &t.MaxRetries, &estNS, &actNS,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	); err != nil {
		return nil, err
	}
	t.ParentID = derefString(parentID)
	t.WorkflowID = derefString(workflowID)
	t.ConversationID = derefString(conversationID)
	t.Description = derefString(description)
	t.InputPrompt = derefString(inputPrompt)
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.ExecutionMode = ExecutionMode(mode)
	t.EstimatedDuration = time.Duration(estNS)
	t.ActualDuration = time.Duration(actNS)
	if len(depsRaw) > 0 {
		_ = json.Unmarshal(depsRaw, &t.Dependencies)
	}
	if len(condJSON) > 0 {
		var c Condition
		if err := json.Unmarshal(condJSON, &c); err == nil {
			t.Condition = &c
		}
	}
	if len(errJSON) > 0 {
		var e Error
		if err := json.Unmarshal(errJSON, &e); err == nil {
			t.Error = &e
		}
	}
	return &t, nil
}

func marshalCondition(c *Condition) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func marshalError(e *Error) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func depsJSON(deps []string) []byte {
	if deps == nil {
		deps = []string{}
	}
	b, _ := json.Marshal(deps)
	return b
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
