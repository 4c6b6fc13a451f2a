package im_sdk

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/symposium-im/im-sdk/cons"
	"github.com/symposium-im/im-sdk/message"
	"github.com/symposium-im/im-sdk/models"
	"github.com/symposium-im/im-sdk/service"
)

const (
	// aiContextWindow 取最近多少条消息作为补全上下文
	aiContextWindow = 10

	// aiTaskTimeout 单个回合任务的最长耗时，略大于 HTTP 客户端超时
	aiTaskTimeout = 35 * time.Second

	defaultAIWorkers   = 2
	defaultAIQueueSize = 64
)

// aiFallbackReply 补全失败时落库并广播的兜底回复。
// 失败不重试：用户看到兜底文案后自己决定是否再问一次。
const aiFallbackReply = "抱歉，AI 服务暂时不可用。请稍后再试。"

// aiTask 一次 AI 回合：某个会话里的某个 AI 角色产出一条回复。
// 角色资料在入队时快照，执行时不再读用户表。
type aiTask struct {
	ConversationID uint64
	AIUserID       uint64
	AIUsername     string
	AINickname     string
	AIAvatar       string
	Prompt         string
}

// AIOrchestrator AI 回合编排器。
// 入站消息管道把任务排进有界队列，固定数量的 worker 协程顺序消费，
// 补全耗时长也不会阻塞 WS 读循环。
type AIOrchestrator struct {
	completer  service.Completer
	msgService *service.MessageService
	messageDAO *models.MessageDAO
	publish    func(conversationID uint64, msg []byte)

	tasks   chan aiTask
	workers int

	quit    chan struct{}
	wg      sync.WaitGroup
	startMu sync.Mutex
	started bool
}

func NewAIOrchestrator(completer service.Completer, base *service.Service, workers, queueSize int) *AIOrchestrator {
	if workers <= 0 {
		workers = defaultAIWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultAIQueueSize
	}
	o := &AIOrchestrator{
		completer:  completer,
		msgService: service.NewMessageService(base),
		publish: func(conversationID uint64, msg []byte) {
			if base.RoomPublisher != nil {
				base.RoomPublisher(conversationID, msg)
			}
		},
		tasks:   make(chan aiTask, queueSize),
		workers: workers,
		quit:    make(chan struct{}),
	}
	if base.DB != nil {
		o.messageDAO = models.NewMessageDAO(base.DB)
	}
	return o
}

// Start 启动 worker 协程。重复调用无效果。
func (o *AIOrchestrator) Start() {
	o.startMu.Lock()
	defer o.startMu.Unlock()
	if o.started {
		return
	}
	o.started = true
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.workerLoop()
	}
}

// Stop 停止消费并等待在途任务完成。队列里未开始的任务直接丢弃。
func (o *AIOrchestrator) Stop() {
	o.startMu.Lock()
	defer o.startMu.Unlock()
	if !o.started {
		return
	}
	o.started = false
	close(o.quit)
	o.wg.Wait()
	o.quit = make(chan struct{})
}

// Enqueue 排入一个回合任务。队列满时丢弃并记日志，不阻塞调用方（WS 管道）。
func (o *AIOrchestrator) Enqueue(conversationID uint64, ai *models.User) {
	task := aiTask{
		ConversationID: conversationID,
		AIUserID:       ai.ID,
		AIUsername:     ai.Username,
		AINickname:     ai.Nickname,
		AIAvatar:       ai.Avatar,
		Prompt:         ai.AIPrompt,
	}
	select {
	case o.tasks <- task:
	default:
		log.Printf("AI 任务队列已满，丢弃 conv=%d ai=%d", conversationID, ai.ID)
	}
}

func (o *AIOrchestrator) workerLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.quit:
			return
		case task := <-o.tasks:
			o.runTask(task)
		}
	}
}

// runTask 执行一个回合：取上下文 -> 补全 -> 落库 -> 广播。
// 补全失败时回复兜底文案，流程仍然走完落库和广播。
func (o *AIOrchestrator) runTask(task aiTask) {
	ctx, cancel := context.WithTimeout(context.Background(), aiTaskTimeout)
	defer cancel()

	reply := aiFallbackReply
	history, err := o.buildHistory(task.ConversationID, task.AIUserID)
	if err != nil {
		log.Printf("AI 上下文加载失败 conv=%d: %v", task.ConversationID, err)
	} else {
		content, err := o.completer.Complete(ctx, task.Prompt, history)
		if err != nil {
			log.Printf("AI 补全失败 conv=%d ai=%d: %v", task.ConversationID, task.AIUserID, err)
		} else {
			reply = content
		}
	}

	savedMsg, err := o.msgService.SaveMessage(task.ConversationID, task.AIUserID, reply, models.MessageTypeText)
	if err != nil {
		// AI 可能已被移出会话，任务直接作废
		log.Printf("AI 回复落库失败 conv=%d ai=%d: %v", task.ConversationID, task.AIUserID, err)
		return
	}

	resp := message.NewMessageEvent{
		Type:           cons.EventNewMessage,
		ID:             savedMsg.ID,
		ConversationID: savedMsg.ConversationID,
		SenderID:       savedMsg.SenderID,
		SenderName:     task.AIUsername,
		SenderNickname: task.AINickname,
		SenderAvatar:   task.AIAvatar,
		MsgType:        savedMsg.Type,
		Content:        savedMsg.Content,
		CreatedAt:      savedMsg.CreatedAt,
	}
	respBytes, _ := json.Marshal(resp)
	o.publish(savedMsg.ConversationID, respBytes)
}

// buildHistory 取会话最近 aiContextWindow 条消息，按时间正序整理成对话轮次。
// AI 自己发的算 assistant，其余成员一律算 user。
func (o *AIOrchestrator) buildHistory(conversationID, aiUserID uint64) ([]service.ChatTurn, error) {
	msgs, err := o.messageDAO.FindRecent(conversationID, aiContextWindow)
	if err != nil {
		return nil, err
	}
	// FindRecent 返回新到旧，倒过来喂给模型
	turns := make([]service.ChatTurn, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := &msgs[i]
		role := "user"
		if m.SenderID == aiUserID {
			role = "assistant"
		}
		turns = append(turns, service.ChatTurn{Role: role, Content: m.Content})
	}
	return turns, nil
}
