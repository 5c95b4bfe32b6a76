package router

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"bytetalk/internal/chat/app"
	"bytetalk/internal/chat/domain"
	"bytetalk/internal/chat/repository/inmem"
	"bytetalk/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

// testServer full chat wiring on the in-memory store
type testServer struct {
	app      *fiber.App
	store    *inmem.Store
	registry *app.Registry
	addr     string
}

func newTestServer(t *testing.T, users ...domain.User) *testServer {
	t.Helper()
	token.SetSecret(testSecret)

	store := inmem.NewStore()
	for _, u := range users {
		store.AddUser(u)
	}
	userRepo := inmem.UserRepository{Store: store}
	msgRepo := inmem.MessageRepository{Store: store}
	notifRepo := inmem.NotificationRepository{Store: store}

	registry := app.NewRegistry(userRepo)
	relay := app.NewRelay(registry, nil, "chat:user:")
	messageUC := app.NewMessageUseCase(msgRepo, userRepo, app.NewDirectDispatcher(notifRepo), relay)
	userUC := app.NewUserUseCase(userRepo, notifRepo)

	// 不開 Immutable, handler 自行複製參數
	r := fiber.New()
	RegisterRoutes(r, "jwt",
		app.NewMessageHandler(messageUC, userUC),
		app.NewChatWebsocketHandler(registry, messageUC, 16, time.Minute),
	)
	return &testServer{app: r, store: store, registry: registry}
}

// listen serve on a random local port, needed by websocket clients
func (s *testServer) listen(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.addr = ln.Addr().String()
	go func() {
		_ = s.app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = s.app.Shutdown()
	})
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := token.GenerateJWT(userID, "bytetalk")
	require.NoError(t, err)
	return tok
}

// do send an authenticated request through app.Test, returns status and body
func (s *testServer) do(t *testing.T, method, path, userID, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, userID))
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func alice() domain.User {
	return domain.User{ID: "alice", FullName: "Alice Chen", Email: "alice@bytetalk.dev", Password: "hashed"}
}

func bob() domain.User {
	return domain.User{ID: "bob", FullName: "Bob Lin", Email: "bob@bytetalk.dev", Password: "hashed"}
}
