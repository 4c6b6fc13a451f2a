package service

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/symposium-im/im-sdk/models"
)

func TestFriendService_SendRequest_SelfRejected(t *testing.T) {
	fs := NewFriendService(&Service{})

	if err := fs.SendRequest(1, 1); err == nil {
		t.Fatalf("expected error for self request")
	}
	if err := fs.SendRequest(1, 0); err == nil {
		t.Fatalf("expected error for missing target")
	}
}

func TestFriendService_AcceptRequest(t *testing.T) {
	gormDB, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	fs := NewFriendService(&Service{DB: gormDB})

	friendCols := []string{"id", "user_id", "friend_id", "status"}

	// 只能接受发给自己的 pending 申请
	mock.ExpectQuery("SELECT .* FROM `sym_friend` WHERE id = \\? AND friend_id = \\? AND status = \\?").
		WithArgs(uint64(5), uint64(2), models.FriendStatusPending, 1).
		WillReturnRows(sqlmock.NewRows(friendCols).AddRow(uint64(5), uint64(7), uint64(2), models.FriendStatusPending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `sym_friend` SET `status`=?,`updated_at`=? WHERE id = ?")).
		WithArgs(models.FriendStatusAccepted, sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := fs.AcceptRequest(5, 2); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}

	// 不是收件人或已处理：查不到记录，直接报错
	mock.ExpectQuery("SELECT .* FROM `sym_friend` WHERE id = \\? AND friend_id = \\? AND status = \\?").
		WithArgs(uint64(5), uint64(9), models.FriendStatusPending, 1).
		WillReturnRows(sqlmock.NewRows(friendCols))

	if err := fs.AcceptRequest(5, 9); err == nil {
		t.Fatalf("expected error when no pending request addressed to user")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
