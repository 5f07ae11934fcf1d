package tasks

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, &PostgresStore{db: db}
}

func TestPostgresStore_CreateTask(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tasks").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.CreateTask(context.Background(), &Task{
		ID:        "t-1",
		Principal: "user:alice",
		Title:     "Summarize report",
		Kind:      KindSynthesis,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateTask_MissingParent(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs("ghost-parent").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.CreateTask(context.Background(), &Task{ID: "t-1", ParentID: "ghost-parent", Principal: "user:alice"})
	require.ErrorIs(t, err, ErrMissingParent)
	require.NoError(t, mock.ExpectationsWereMet())
}

var taskRowColumns = []string{
	"id", "parent_id", "workflow_id", "principal", "conversation_id", "title", "description",
	"kind", "priority", "status", "execution_mode", "condition", "dependencies", "tolerate_failures",
	"input", "output", "error", "waiting_for_input", "input_prompt", "retry_count", "max_retries",
	"estimated_duration_ns", "actual_duration_ns", "created_at", "started_at", "completed_at",
}

func taskRow(id string, status Status) *sqlmock.Rows {
	return sqlmock.NewRows(taskRowColumns).AddRow(
		id, nil, nil, "user:alice", nil, "Task "+id, nil,
		string(KindAction), 5, string(status), string(ModeSequential), nil, []byte(`[]`), false,
		[]byte(`{}`), []byte(`{}`), nil, false, nil,
		0, 3, int64(0), int64(0),
		fixedNow, nil, nil,
	)
}

func TestPostgresStore_GetTask_NotFound(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transition_RejectsTerminal(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	rows := sqlmock.NewRows(taskRowColumns).AddRow(
		"t-1", nil, nil, "user:alice", nil, "Task t-1", nil,
		string(KindAction), 5, string(StatusCompleted), string(ModeSequential), nil, []byte(`[]`), false,
		[]byte(`{}`), []byte(`{}`), nil, false, nil,
		0, 3, int64(0), int64(0),
		fixedNow, nil, nil,
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := store.Transition(context.Background(), "t-1", StatusRunning, Patch{})
	require.ErrorIs(t, err, ErrTerminalUpdate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddDependency_Cycle(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT dependencies").WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"dependencies"}).AddRow([]byte(`["a"]`)))
	mock.ExpectRollback()

	err := store.AddDependency(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrCycle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SpawnSubtasks_MissingParent(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.SpawnSubtasks(context.Background(), "ghost", []*Task{{ID: "c1"}}, ModeParallel)
	require.ErrorIs(t, err, ErrMissingParent)
	require.NoError(t, mock.ExpectationsWereMet())
}
