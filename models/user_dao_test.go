package models

import (
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqldb, SkipInitializeWithVersion: true}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		_ = sqldb.Close()
		t.Fatalf("gorm.Open: %v", err)
	}

	return db, mock, sqldb
}

func TestUserDAO_AcceptedFriendIDs_BothDirections(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	dao := NewUserDAO(db)

	// 关系双向对称：user=1 作为发起方和接收方都要算进去
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, friend_id FROM `sym_friend` WHERE (user_id = ? OR friend_id = ?) AND status = ?")).
		WithArgs(uint64(1), uint64(1), FriendStatusAccepted).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "friend_id"}).
			AddRow(uint64(1), uint64(2)).
			AddRow(uint64(3), uint64(1)))

	ids, err := dao.AcceptedFriendIDs(1)
	if err != nil {
		t.Fatalf("AcceptedFriendIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("expected [2 3], got %v", ids)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestUserDAO_FindByAccount(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	dao := NewUserDAO(db)

	cols := []string{"id", "uid", "username", "email", "nickname"}

	// 不带 @ 走 username
	mock.ExpectQuery("SELECT .* FROM `sym_user` WHERE username = \\?").
		WithArgs("alice", 1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(1), "u1", "alice", "alice@t.local", "Alice"))

	u, err := dao.FindByAccount("alice")
	if err != nil {
		t.Fatalf("FindByAccount username: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("expected user 1, got %d", u.ID)
	}

	// 带 @ 走 email，且转小写
	mock.ExpectQuery("SELECT .* FROM `sym_user` WHERE email = \\?").
		WithArgs("alice@t.local", 1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(1), "u1", "alice", "alice@t.local", "Alice"))

	u, err = dao.FindByAccount("Alice@T.Local")
	if err != nil {
		t.Fatalf("FindByAccount email: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("expected alice, got %s", u.Username)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
