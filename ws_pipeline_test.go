package im_sdk

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/symposium-im/im-sdk/cons"
	"github.com/symposium-im/im-sdk/message"
	"github.com/symposium-im/im-sdk/service"
	"gorm.io/gorm"
)

type stubCompleter struct {
	reply      string
	err        error
	gotSystem  string
	gotHistory []service.ChatTurn
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt string, history []service.ChatTurn) (string, error) {
	s.gotSystem = systemPrompt
	s.gotHistory = history
	return s.reply, s.err
}

// newTestEngine 手工组装 Engine，跳过 AutoMigrate 和 worker 启动。
// orchestrator 不 Start：入队结果直接从队列断言。
func newTestEngine(t *testing.T, db *gorm.DB, cp service.Completer) *Engine {
	t.Helper()
	e := &Engine{config: &Config{TablePrefix: "sym_"}}
	e.WsServer = NewWsServer()

	base := &service.Service{
		DB:            db,
		WsNotifier:    e.WsServer.SendToUser,
		RoomPublisher: func(conversationID uint64, msg []byte) { e.WsServer.Publish(conversationID, msg, nil) },
	}
	e.UserService = service.NewUserService(base)
	e.FriendService = service.NewFriendService(base)
	e.ConversationService = service.NewConversationService(base)
	e.MsgService = service.NewMessageService(base)
	if cp == nil {
		cp = &stubCompleter{}
	}
	e.Orchestrator = NewAIOrchestrator(cp, base, 1, 8)

	e.bindWsHandlersOnMessage()
	go e.WsServer.Run()
	return e
}

func expectIsMember(mock sqlmock.Sqlmock, convID, userID uint64, count int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `sym_conversation_member` WHERE conversation_id = ? AND user_id = ?")).
		WithArgs(convID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestPipeline_SendMessageFanOut(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 2, 1)
	sender.Username = "alice"
	sender.Nickname = "Alice"
	receiver := newTestClient(e.WsServer, 3, 1)
	e.WsServer.register <- sender
	e.WsServer.register <- receiver
	waitOnline(t, e.WsServer, 3, true)

	expectIsMember(mock, 1, 2, 1)
	mock.ExpectExec("INSERT INTO `sym_message`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	// 会话里没有 AI 成员
	mock.ExpectQuery("SELECT .* FROM `sym_user` JOIN sym_conversation_member").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "avatar", "is_ai", "ai_prompt"}))

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventSendMessage,
		"conversation_id": 1,
		"content":         "hi there",
	})
	e.WsServer.handleMessage(sender, raw)

	// 发送者设备和接收者都恰好收到一条 new_message
	for _, c := range []*Client{sender, receiver} {
		var ev message.NewMessageEvent
		if err := json.Unmarshal(recvOne(t, c), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != cons.EventNewMessage {
			t.Fatalf("expected new_message, got %s", ev.Type)
		}
		if ev.ID != 10 || ev.SenderID != 2 || ev.Content != "hi there" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.SenderNickname != "Alice" {
			t.Fatalf("expected sender nickname, got %q", ev.SenderNickname)
		}
		assertNoMessage(t, c)
	}

	if len(e.Orchestrator.tasks) != 0 {
		t.Fatalf("expected no AI tasks")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPipeline_SendMessageNonMember(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 9, 1)
	bystander := newTestClient(e.WsServer, 3, 1)
	e.WsServer.register <- sender
	e.WsServer.register <- bystander
	waitOnline(t, e.WsServer, 3, true)

	expectIsMember(mock, 1, 9, 0)

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventSendMessage,
		"conversation_id": 1,
		"content":         "should not land",
	})
	e.WsServer.handleMessage(sender, raw)

	// 只有发送者那条连接收到 error，别人毫无感知
	var ev message.ErrorEvent
	if err := json.Unmarshal(recvOne(t, sender), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventError || ev.Message == "" {
		t.Fatalf("expected error event, got %+v", ev)
	}
	assertNoMessage(t, bystander)

	// 没有 INSERT 期望：消息未落库
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPipeline_SendMessageEnqueuesAITurn(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 2, 1)
	e.WsServer.register <- sender
	waitOnline(t, e.WsServer, 2, true)

	expectIsMember(mock, 1, 2, 1)
	mock.ExpectExec("INSERT INTO `sym_message`").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery("SELECT .* FROM `sym_user` JOIN sym_conversation_member").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "nickname", "avatar", "is_ai", "ai_prompt"}).
			AddRow(uint64(5), "ai_assistant", "AI 助手", "", true, "你是助手").
			AddRow(uint64(6), "ai_translator", "翻译官", "", true, "你是翻译"))

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventSendMessage,
		"conversation_id": 1,
		"content":         "问个问题",
	})
	e.WsServer.handleMessage(sender, raw)

	// 每个 AI 成员独立入队一条任务
	wantPrompts := map[uint64]string{5: "你是助手", 6: "你是翻译"}
	for i := 0; i < 2; i++ {
		select {
		case task := <-e.Orchestrator.tasks:
			want, ok := wantPrompts[task.AIUserID]
			if !ok || task.ConversationID != 1 {
				t.Fatalf("unexpected task: %+v", task)
			}
			if task.Prompt != want {
				t.Fatalf("expected prompt snapshot %q, got %q", want, task.Prompt)
			}
			delete(wantPrompts, task.AIUserID)
		case <-time.After(time.Second):
			t.Fatalf("expected AI task enqueued")
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPipeline_TypingExcludesEmitter(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 2, 1)
	sender.Username = "alice"
	senderOther := newTestClient(e.WsServer, 2, 1) // 同用户另一台设备
	peer := newTestClient(e.WsServer, 3, 1)
	e.WsServer.register <- sender
	e.WsServer.register <- senderOther
	e.WsServer.register <- peer
	waitOnline(t, e.WsServer, 3, true)

	expectIsMember(mock, 1, 2, 1)

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventTyping,
		"conversation_id": 1,
	})
	e.WsServer.handleMessage(sender, raw)

	// 发出的那条连接不收，同用户其他设备和对端都收
	var ev message.TypingEvent
	if err := json.Unmarshal(recvOne(t, peer), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventTyping || ev.UserID != 2 {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	if ev.Username != "alice" {
		t.Fatalf("expected username alice, got %q", ev.Username)
	}
	if got := recvOne(t, senderOther); len(got) == 0 {
		t.Fatalf("expected typing on other device")
	}
	assertNoMessage(t, sender)
}

func TestPipeline_TypingNonMember(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	outsider := newTestClient(e.WsServer, 9)
	member := newTestClient(e.WsServer, 3, 1)
	e.WsServer.register <- outsider
	e.WsServer.register <- member
	waitOnline(t, e.WsServer, 9, true)

	expectIsMember(mock, 1, 9, 0)

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventTyping,
		"conversation_id": 1,
	})
	e.WsServer.handleMessage(outsider, raw)

	// 非成员：仅发出方收到错误事件，房间成员无感知
	var ev message.ErrorEvent
	if err := json.Unmarshal(recvOne(t, outsider), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
	assertNoMessage(t, member)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPipeline_ReadMessageNonMember(t *testing.T) {
	db, mock, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	outsider := newTestClient(e.WsServer, 9)
	member := newTestClient(e.WsServer, 3, 1)
	e.WsServer.register <- outsider
	e.WsServer.register <- member
	waitOnline(t, e.WsServer, 9, true)

	// 只有成员校验，没有 UPDATE 期望：非成员一行已读标记都改不了
	expectIsMember(mock, 1, 9, 0)

	raw, _ := json.Marshal(map[string]any{
		"type":            cons.EventReadMessage,
		"conversation_id": 1,
	})
	e.WsServer.handleMessage(outsider, raw)

	var ev message.ErrorEvent
	if err := json.Unmarshal(recvOne(t, outsider), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}
	assertNoMessage(t, member)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestPipeline_UnknownEventType(t *testing.T) {
	db, _, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 2)
	e.WsServer.register <- sender
	waitOnline(t, e.WsServer, 2, true)

	e.WsServer.handleMessage(sender, []byte(`{"type":"dance"}`))

	var ev message.ErrorEvent
	if err := json.Unmarshal(recvOne(t, sender), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventError {
		t.Fatalf("expected error, got %+v", ev)
	}
}

func TestPipeline_MalformedPayload(t *testing.T) {
	db, _, sqlDB := newMockDB(t)
	defer func() { _ = sqlDB.Close() }()

	e := newTestEngine(t, db, nil)

	sender := newTestClient(e.WsServer, 2)
	e.WsServer.register <- sender
	waitOnline(t, e.WsServer, 2, true)

	e.WsServer.handleMessage(sender, []byte(`not json at all`))

	var ev message.ErrorEvent
	if err := json.Unmarshal(recvOne(t, sender), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != cons.EventError {
		t.Fatalf("expected error, got %+v", ev)
	}
}
