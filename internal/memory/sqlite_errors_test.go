package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// newMockStore builds a store over a mocked database so driver-level
// failures can be injected; a real SQLite file cannot produce them.
func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &SQLiteStore{db: db}, mock
}

func TestSQLiteStorePutPropagatesDriverErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT OR REPLACE INTO memories").
		WillReturnError(errors.New("disk I/O error"))

	err := store.Put(context.Background(), "user_a:memories", "target_os", "Ubuntu")
	if err == nil || !strings.Contains(err.Error(), "failed to store memory") {
		t.Errorf("Put() error = %v, want wrapped driver error", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLiteStoreGetRejectsCorruptRows(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"namespace", "key", "value", "updated_at"}).
		AddRow("user_a:memories", "target_os", "Ubuntu", "not-a-timestamp")
	mock.ExpectQuery("SELECT namespace, key, value, updated_at FROM memories").
		WillReturnRows(rows)

	_, err := store.Get(context.Background(), "user_a:memories", "target_os")
	if err == nil {
		t.Fatal("Get() should fail on a corrupt timestamp column")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("scan failure must not be reported as ErrNotFound")
	}
}

func TestSQLiteStoreSearchPropagatesQueryErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT namespace, key, value, updated_at FROM memories").
		WillReturnError(errors.New("database is locked"))

	_, err := store.Search(context.Background(), "user_a:memories", "ssh", 10)
	if err == nil || !strings.Contains(err.Error(), "failed to search memories") {
		t.Errorf("Search() error = %v, want wrapped driver error", err)
	}
}

func TestSQLiteStoreListSurfacesIterationErrors(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"namespace", "key", "value", "updated_at"}).
		AddRow("user_a:memories", "target_os", "Ubuntu", int64(1)).
		RowError(0, errors.New("connection reset"))
	mock.ExpectQuery("SELECT namespace, key, value, updated_at FROM memories").
		WillReturnRows(rows)

	_, err := store.List(context.Background(), "user_a:memories")
	if err == nil {
		t.Error("List() should surface row iteration errors")
	}
}

func TestSQLiteStoreDeletePropagatesDriverErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM memories").
		WillReturnError(errors.New("readonly database"))

	err := store.Delete(context.Background(), "user_a:memories", "target_os")
	if err == nil || !strings.Contains(err.Error(), "failed to delete memory") {
		t.Errorf("Delete() error = %v, want wrapped driver error", err)
	}
}
