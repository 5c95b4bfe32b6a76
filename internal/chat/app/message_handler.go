package app

import (
	"context"

	errprocess "bytetalk/pkg/err"
	"bytetalk/pkg/logger"
	"bytetalk/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// MessageHandler 處理聊天相關的 HTTP 請求
type MessageHandler struct {
	messageUC *MessageUseCase
	userUC    *UserUseCase
}

// NewMessageHandler create MessageHandler
func NewMessageHandler(messageUC *MessageUseCase, userUC *UserUseCase) *MessageHandler {
	return &MessageHandler{
		messageUC: messageUC,
		userUC:    userUC,
	}
}

// SendMessageReq send message body
type SendMessageReq struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ReactionReq add reaction body
type ReactionReq struct {
	Emoji string `json:"emoji"`
}

// MuteReq mute / unmute body
type MuteReq struct {
	ConversationUserID string `json:"conversationUserId"`
}

// respondError map error kind to status, internal detail only goes to the log
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch errprocess.KindOf(err) {
	case errprocess.KindNotFound:
		status = fiber.StatusNotFound
	case errprocess.KindForbidden:
		status = fiber.StatusForbidden
	case errprocess.KindValidation:
		status = fiber.StatusBadRequest
	default:
		logger.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("userID", middlewares.CallerID(c)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": errprocess.Message(err)})
}

func success(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}

// GetUsers 取得側邊欄使用者
// @Summary List users
// @Description Every user except the caller, password excluded
// @Tags Messages
// @Produce json
// @Success 200 {array} domain.User
// @Failure 401 {object} map[string]string
// @Router /messages/users [get]
func (h *MessageHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userUC.ListUsers(c.UserContext(), middlewares.CallerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetNotifications 取得通知
// @Summary List notifications
// @Description Caller's notifications, newest first
// @Tags Notifications
// @Produce json
// @Success 200 {array} domain.Notification
// @Router /messages/notifications [get]
func (h *MessageHandler) GetNotifications(c *fiber.Ctx) error {
	list, err := h.userUC.Notifications(c.UserContext(), middlewares.CallerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationsRead 全部通知設為已讀
// @Summary Mark notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /messages/notifications/read [put]
func (h *MessageHandler) MarkNotificationsRead(c *fiber.Ctx) error {
	if err := h.userUC.MarkNotificationsRead(c.UserContext(), middlewares.CallerID(c)); err != nil {
		return respondError(c, err)
	}
	return success(c)
}

// GetMessages 取得與 :id 的對話
// @Summary Get conversation
// @Description Messages between the caller and :id, oldest first
// @Tags Messages
// @Produce json
// @Param id path string true "Peer user id"
// @Success 200 {array} domain.Message
// @Router /messages/{id} [get]
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	msgs, err := h.messageUC.GetConversation(c.UserContext(), middlewares.CallerID(c), param(c, "id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage 傳送訊息給 :id
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Receiver user id"
// @Param request body SendMessageReq true "text and/or image"
// @Success 201 {object} domain.Message
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /messages/send/{id} [post]
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.messageUC.SendMessage(c.UserContext(), middlewares.CallerID(c), param(c, "id"), req.Text, req.Image)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg.Render())
}

// AddReaction 新增或替換反應
// @Summary Add reaction
// @Tags Reactions
// @Accept json
// @Produce json
// @Param messageId path string true "Message id"
// @Param request body ReactionReq true "emoji"
// @Success 200 {object} domain.Message
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /messages/{messageId}/reactions [post]
func (h *MessageHandler) AddReaction(c *fiber.Ctx) error {
	var req ReactionReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.messageUC.AddReaction(c.UserContext(), param(c, "messageId"), middlewares.CallerID(c), req.Emoji)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msg)
}

// RemoveReaction 移除自己的反應
// @Summary Remove reaction
// @Tags Reactions
// @Produce json
// @Param messageId path string true "Message id"
// @Success 200 {object} domain.Message
// @Failure 404 {object} map[string]string
// @Router /messages/{messageId}/reactions [delete]
func (h *MessageHandler) RemoveReaction(c *fiber.Ctx) error {
	msg, err := h.messageUC.RemoveReaction(c.UserContext(), param(c, "messageId"), middlewares.CallerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(msg)
}

// DeleteForMe 只對自己隱藏
// @Summary Delete message for me
// @Tags Messages
// @Produce json
// @Param messageId path string true "Message id"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} map[string]string
// @Router /messages/delete-for-me/{messageId} [delete]
func (h *MessageHandler) DeleteForMe(c *fiber.Ctx) error {
	if err := h.messageUC.DeleteForMe(c.UserContext(), param(c, "messageId"), middlewares.CallerID(c)); err != nil {
		return respondError(c, err)
	}
	return success(c)
}

// DeleteForEveryone 寄件者收回訊息
// @Summary Delete message for everyone
// @Tags Messages
// @Produce json
// @Param messageId path string true "Message id"
// @Success 200 {object} map[string]bool
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /messages/delete-for-everyone/{messageId} [delete]
func (h *MessageHandler) DeleteForEveryone(c *fiber.Ctx) error {
	if err := h.messageUC.DeleteForEveryone(c.UserContext(), param(c, "messageId"), middlewares.CallerID(c)); err != nil {
		return respondError(c, err)
	}
	return success(c)
}

// MuteConversation 關閉與某人的通知
// @Summary Mute conversation
// @Tags Users
// @Accept json
// @Produce json
// @Param request body MuteReq true "peer user id"
// @Success 200 {object} map[string][]string
// @Router /auth/mute-conversation [put]
func (h *MessageHandler) MuteConversation(c *fiber.Ctx) error {
	return h.updateMuted(c, h.userUC.Mute)
}

// UnmuteConversation 恢復與某人的通知
// @Summary Unmute conversation
// @Tags Users
// @Accept json
// @Produce json
// @Param request body MuteReq true "peer user id"
// @Success 200 {object} map[string][]string
// @Router /auth/unmute-conversation [put]
func (h *MessageHandler) UnmuteConversation(c *fiber.Ctx) error {
	return h.updateMuted(c, h.userUC.Unmute)
}

type mutedUpdater func(ctx context.Context, callerID, peerID string) ([]string, error)

func (h *MessageHandler) updateMuted(c *fiber.Ctx, update mutedUpdater) error {
	var req MuteReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	muted, err := update(c.UserContext(), middlewares.CallerID(c), req.ConversationUserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"mutedConversations": muted})
}

// param 路由參數的複本, fiber 回傳的字串指向會被下一個 request 重用的 buffer
func param(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Params(key))
}
