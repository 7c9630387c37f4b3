package queue

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	upsertQ = `(?s)^INSERT\s+INTO\s+queue_entries\s*\(actor_id,\s*goal,\s*score,\s*joined_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(actor_id\)\s*DO\s+UPDATE\s+SET\s+goal\s*=\s*EXCLUDED\.goal,\s*score\s*=\s*EXCLUDED\.score,\s*joined_at\s*=\s*EXCLUDED\.joined_at\s*$`
	oldestQ = `(?s)^SELECT\s+q\.actor_id,\s*q\.goal,\s*q\.score,\s*q\.joined_at\s+FROM\s+queue_entries\s+q\s+WHERE\s+q\.actor_id\s*<>\s*\$1\s+AND\s+NOT\s+EXISTS\s*\(\s*SELECT\s+1\s+FROM\s+ephemeral_sessions\s+s\s+WHERE\s+s\.status\s*<>\s*'ended'.*\)\s+ORDER\s+BY\s+q\.joined_at\s+ASC,\s*q\.actor_id\s+ASC\s+LIMIT\s+1\s+FOR\s+UPDATE\s+OF\s+q\s+SKIP\s+LOCKED\s*$`
	deleteQ = `(?s)^DELETE\s+FROM\s+queue_entries\s+WHERE\s+actor_id\s*=\s*\$1$`
)

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(upsertQ).
		WithArgs("alice", "smalltalk", 42, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.QueueEntry{ActorID: "alice", Goal: "smalltalk", Score: 42, JoinedAt: now})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.QueueEntry{ActorID: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestLockOldestOther_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	joined := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"actor_id", "goal", "score", "joined_at"}).
		AddRow("bob", "travel", 7, joined)
	mock.ExpectQuery(oldestQ).WithArgs("alice").WillReturnRows(rows)

	e, err := repo.LockOldestOther(context.Background(), "alice")
	if err != nil {
		t.Fatalf("LockOldestOther error: %v", err)
	}
	if e.ActorID != "bob" || e.Goal != "travel" || e.Score != 7 || !e.JoinedAt.Equal(joined) {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestLockOldestOther_EmptyPool(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(oldestQ).WithArgs("alice").WillReturnError(sql.ErrNoRows)

	_, err := repo.LockOldestOther(context.Background(), "alice")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestDelete_ReportsWhetherRowExisted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("first Delete = %v, %v; want true, nil", ok, err)
	}
	ok, err = repo.Delete(context.Background(), "alice")
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v; want false, nil", ok, err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).WithArgs("alice").WillReturnError(errors.New("boom"))

	if _, err := repo.Delete(context.Background(), "alice"); err == nil {
		t.Fatal("expected error")
	}
}
