package im_sdk

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time 写入超时时间
	writeWait = 10 * time.Second

	// Time pong超时时间
	pongWait = 60 * time.Second

	// Send 对应的ping 必须小于pong
	pingPeriod = (pongWait * 9) / 10

	// Maximum 对等端允许消息大小
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for SDK
	},
}

// Client ws和hub的连接
// 说明：Client 代表"某个具体 websocket 连接"，同一用户可同时持有多个 Client（多设备）。
type Client struct {
	hub *WsServer

	// 🔗链接
	conn *websocket.Conn

	// 消息缓冲区
	send chan []byte

	// UserID 和用户关联
	UserID uint64

	// Username Nickname Avatar
	Username string

	Nickname string

	Avatar string

	// 建连时要加入的会话房间，注册时由 Run 协程统一处理
	initRooms []uint64
}

// readPump 将消息从client (websocket 连接) 到hub管理。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			break
		}
		c.hub.handleMessage(c, message)
	}
}

// writePump 将消息从hub管理写到具体的client (websocket 连接)。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("writePump 写入ping失败")
				return
			}
		}
	}
}

// WsServer 连接注册表 + 房间路由。
// register/unregister 统一走 Run 协程处理，上下线的 0->1 / 1->0 判定因此天然串行。
type WsServer struct {
	clients map[*Client]bool
	// 用户ID -> 该用户所有活跃的Websocket连接（支持多设备）
	userClients map[uint64][]*Client

	// 会话ID -> 订阅该会话的连接集合（房间）
	rooms map[uint64]map[*Client]struct{}
	// 反向索引：连接 -> 它订阅的会话，注销时据此清理房间
	clientRooms map[*Client]map[uint64]struct{}

	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// 回调处理消息
	onMessage func(client *Client, msg []byte)
	// 用户第一条连接建立时触发（0 -> 1）
	onUserOnline func(userID uint64)
	// 用户最后一条连接断开时触发（1 -> 0）
	onUserOffline func(userID uint64)
}

func NewWsServer() *WsServer {
	return &WsServer{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		userClients: make(map[uint64][]*Client),
		rooms:       make(map[uint64]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[uint64]struct{}),
	}
}

func (h *WsServer) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
			first := len(h.userClients[client.UserID]) == 1
			for _, convID := range client.initRooms {
				h.subscribeLocked(client, convID)
			}
			h.mu.Unlock()

			// 回调放在锁外，DB/广播耗时不阻塞注册表
			if first && h.onUserOnline != nil {
				h.onUserOnline(client.UserID)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			last := false
			if _, ok := h.clients[client]; ok {
				h.removeClientLocked(client)
				last = len(h.userClients[client.UserID]) == 0
				if last {
					delete(h.userClients, client.UserID)
				}
			}
			h.mu.Unlock()

			if last && h.onUserOffline != nil {
				h.onUserOffline(client.UserID)
			}
		}
	}
}

// removeClientLocked 摘除连接：clients、userClients、全部房间。调用方须持有 h.mu 写锁。
// close(send) 只会在这里发生一次，clients 表是唯一判据。
func (h *WsServer) removeClientLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)

	if userConns, exists := h.userClients[client.UserID]; exists {
		for i, conn := range userConns {
			if conn == client {
				h.userClients[client.UserID] = append(userConns[:i], userConns[i+1:]...)
				break
			}
		}
	}

	for convID := range h.clientRooms[client] {
		if room, ok := h.rooms[convID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, convID)
			}
		}
	}
	delete(h.clientRooms, client)
}

func (h *WsServer) handleMessage(client *Client, msg []byte) {
	if h.onMessage != nil {
		h.onMessage(client, msg)
	}
}
func (h *WsServer) SetOnMessage(fn func(client *Client, msg []byte)) {
	h.onMessage = fn
}

// SetPresenceHooks 设置上下线回调。须在 Run 之前调用。
func (h *WsServer) SetPresenceHooks(onOnline, onOffline func(userID uint64)) {
	h.onUserOnline = onOnline
	h.onUserOffline = onOffline
}

// Subscribe 把连接加入会话房间。重复订阅是幂等的。
func (h *WsServer) Subscribe(client *Client, conversationID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.subscribeLocked(client, conversationID)
}

func (h *WsServer) subscribeLocked(client *Client, conversationID uint64) {
	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[client] = struct{}{}

	set := h.clientRooms[client]
	if set == nil {
		set = make(map[uint64]struct{})
		h.clientRooms[client] = set
	}
	set[conversationID] = struct{}{}
}

// SubscribeMany 批量订阅，建连时加入用户的全部会话房间。
func (h *WsServer) SubscribeMany(client *Client, conversationIDs []uint64) {
	for _, id := range conversationIDs {
		h.Subscribe(client, id)
	}
}

// SubscribeUser 把用户当前在线的全部连接加入会话房间。
// 会话刚创建时调用，在线成员不用重连就能收到新消息。用户不在线时是空操作。
func (h *WsServer) SubscribeUser(userID, conversationID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.userClients[userID] {
		h.subscribeLocked(client, conversationID)
	}
}

// Publish 向会话房间内的全部连接投递消息，exclude 非 nil 时跳过该连接。
// 慢消费者交给 unregister 摘除，防止一条堵塞的连接拖垮整个房间。
// 摘除统一走 Run 协程，下线判定（1->0）不会被绕过。
func (h *WsServer) Publish(conversationID uint64, msg []byte, exclude *Client) {
	// 注意：不能在 RLock 下修改 map / close channel，否则会引发竞态/崩溃。
	var toRemove []*Client
	h.mu.RLock()
	for client := range h.rooms[conversationID] {
		if client == exclude {
			continue
		}
		select {
		case client.send <- msg:
		default:
			toRemove = append(toRemove, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range toRemove {
		h.unregister <- client
	}
}

// ServeWS 升级请求并注册连接。鉴权在调用方完成，走到这里的请求已被许可。
// rooms 为建连时要订阅的会话房间。
func (h *WsServer) ServeWS(w http.ResponseWriter, r *http.Request, userID uint64, username, nickname, avatar string, rooms []uint64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		UserID:    userID,
		Username:  username,
		Nickname:  nickname,
		Avatar:    avatar,
		initRooms: rooms,
	}
	client.hub.register <- client
	log.Println("注册进去: ", client.UserID)

	go client.writePump()
	go client.readPump()

	// 不要 select{} 永久阻塞 handler；连接生命周期由 readPump/writePump 控制。
}

// SendToUser 发送消息到用户的全部连接
func (h *WsServer) SendToUser(userID uint64, msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, len(h.userClients[userID]))
	copy(clients, h.userClients[userID])
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			// 丢弃避免阻塞
		}
	}
}

// IsOnline 用户是否至少有一条活跃连接
func (h *WsServer) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

// OnlineUserIDs 当前在线用户列表
func (h *WsServer) OnlineUserIDs() []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint64, 0, len(h.userClients))
	for id := range h.userClients {
		ids = append(ids, id)
	}
	return ids
}
