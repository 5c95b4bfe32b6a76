package router

import (
	"context"

	"bytetalk/internal/api/handlers"
	"bytetalk/internal/chat/app"
	"bytetalk/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 註冊聊天服務的路由
// @title ByteTalk Chat API
// @version 1.0
// @description REST and websocket API of the ByteTalk chat service
// @host localhost:5001
// @BasePath /
func RegisterRoutes(r *fiber.App, cookieName string, messageHandler *app.MessageHandler, chatWebsocket *app.ChatWebsocketHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", handlers.ConnectCheck)
	r.Post("/debug", handlers.DebugLogFlag)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	auth := middlewares.JWTMiddleware(cookieName)

	// 固定路徑要在 /:id 之前註冊
	messageRoutes := r.Group("/messages", auth)
	messageRoutes.Get("/users", messageHandler.GetUsers)
	messageRoutes.Get("/notifications", messageHandler.GetNotifications)
	messageRoutes.Put("/notifications/read", messageHandler.MarkNotificationsRead)
	messageRoutes.Post("/send/:id", messageHandler.SendMessage)
	messageRoutes.Post("/:messageId/reactions", messageHandler.AddReaction)
	messageRoutes.Delete("/:messageId/reactions", messageHandler.RemoveReaction)
	messageRoutes.Delete("/delete-for-me/:messageId", messageHandler.DeleteForMe)
	messageRoutes.Delete("/delete-for-everyone/:messageId", messageHandler.DeleteForEveryone)
	messageRoutes.Get("/:id", messageHandler.GetMessages)

	authRoutes := r.Group("/auth", auth)
	authRoutes.Put("/mute-conversation", messageHandler.MuteConversation)
	authRoutes.Put("/unmute-conversation", messageHandler.UnmuteConversation)

	r.Get("/ws", auth, chatWebsocket.Upgrade, websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
