package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bytetalk/internal/chat/domain"
	"bytetalk/pkg/logger"
	"bytetalk/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalSocketUserID fiber locals key carrying the token user id into the socket
const LocalSocketUserID = "SocketUserID"

const writeWait = 10 * time.Second

var (
	errSendQueueFull = errors.New("send queue full")
	errClientClosed  = errors.New("client closed")
)

// StatusUpdater applies inbound delivery acknowledgements
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, actorID, messageID string, status domain.MessageStatus) error
}

// ChatWebsocketHandler 處理 websocket 連線
type ChatWebsocketHandler struct {
	registry     *Registry
	status       StatusUpdater
	queueSize    int
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(registry *Registry, status StatusUpdater, queueSize int, pingInterval time.Duration) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry:     registry,
		status:       status,
		queueSize:    queueSize,
		pingInterval: pingInterval,
	}
}

// Upgrade 驗證 handshake, userId 必須與 token 身分一致
func (h *ChatWebsocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	caller := middlewares.CallerID(c)
	userID := c.Query("userId")
	if userID == "" {
		userID = caller
	}
	if userID == "" || userID != caller {
		logger.Log.Warn("websocket handshake rejected", zap.String("userId", userID), zap.String("caller", caller))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden - userId does not match token"})
	}

	// userId 只用於比對, 連線一律以 token 身分註冊
	c.Locals(LocalSocketUserID, caller)
	return c.Next()
}

// wsClient one socket, all writes go through writeLoop so events leave in enqueue order
type wsClient struct {
	id        string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(userID string, conn *websocket.Conn, queueSize int) *wsClient {
	return &wsClient{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

func (c *wsClient) ID() string {
	return c.id
}

// Push 非阻塞, 佇列滿時丟棄
func (c *wsClient) Push(event domain.Event, data interface{}) error {
	b, err := json.Marshal(domain.WSResponse{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- b:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *wsClient) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logger.Log.Error("websocket write error", zap.String("userID", c.userID), zap.Error(err))
				// 關閉連線讓讀取端結束
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Log.Error("websocket ping error", zap.String("userID", c.userID), zap.Error(err))
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(LocalSocketUserID).(string)
	client := newWSClient(userID, conn, h.queueSize)
	logger.Log.Info("websocket connected", zap.String("userID", userID), zap.String("conn", client.id))

	// 沒收到 pong 超過兩個 ping 週期視為斷線
	readWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.writeLoop(h.pingInterval)
	}()

	h.registry.Register(ctx, userID, client)

	defer func() {
		h.registry.Unregister(ctx, userID)
		client.close()
		wg.Wait()
		conn.Close()
		logger.Log.Info("websocket close", zap.String("userID", userID), zap.String("conn", client.id))
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("userID", userID), zap.Error(err))
			} else {
				logger.Log.Warn("websocket read error", zap.String("userID", userID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.textMessageAction(ctx, userID, message)
	}
}

// textMessageAction 事件沒有回覆通道, 失敗只記錄
func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, userID string, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Warn("websocket frame decode failed", zap.String("userID", userID), zap.Error(err))
		return
	}

	switch req.Event {
	case domain.EventMessageDelivered:
		h.updateStatus(ctx, userID, req.Data, domain.StatusDelivered)
	case domain.EventMessageSeen:
		h.updateStatus(ctx, userID, req.Data, domain.StatusSeen)
	default:
		logger.Log.Warn("unknown websocket event", zap.String("userID", userID), zap.String("event", string(req.Event)))
	}
}

func (h *ChatWebsocketHandler) updateStatus(ctx context.Context, userID string, data json.RawMessage, status domain.MessageStatus) {
	var payload domain.StatusEvent
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == "" {
		logger.Log.Warn("invalid status payload", zap.String("userID", userID), zap.String("status", string(status)))
		return
	}
	// receiverId 僅供參考, 權限由 UpdateStatus 以 socket 身分判斷
	if payload.ReceiverID != "" && payload.ReceiverID != userID {
		logger.Log.Warn("status payload receiverId differs from socket user",
			zap.String("userID", userID),
			zap.String("receiverId", payload.ReceiverID),
		)
	}

	if err := h.status.UpdateStatus(ctx, userID, payload.MessageID, status); err != nil {
		logger.Log.Error("update status failed",
			zap.String("userID", userID),
			zap.String("messageID", payload.MessageID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
