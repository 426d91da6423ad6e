package handler

import (
	"Bazaar/internal/api/config"
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/security"
	"Bazaar/internal/service"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	chatService service.ChatService
	groups      service.GroupLayer
	chatCfg     *config.ChatConfig
}

func NewWsHandler(chatService service.ChatService, groups service.GroupLayer, chatCfg *config.ChatConfig) *WsHandler {
	return &WsHandler{chatService: chatService, groups: groups, chatCfg: chatCfg}
}

// Connect 建立聊天 WebSocket 连接。
// 鉴权失败的连接先完成协议升级，再以 4001 关闭，不做任何群组操作
func (s *WsHandler) Connect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}

	token := c.Query("access_token")
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		s.rejectUnauthorized(conn)
		return
	}

	user, err := s.chatService.ResolveUser(c.Request.Context(), claims.UserID)
	if err != nil || user == nil {
		log.Warn("WS 用户解析失败", "userID", claims.UserID, "err", err)
		s.rejectUnauthorized(conn)
		return
	}

	consumer := service.NewChatConsumer(conn, s.groups, s.chatService, s.chatCfg, user)
	defer func() {
		_ = conn.Close()
	}()
	consumer.Run(c.Request.Context())
}

func (s *WsHandler) rejectUnauthorized(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(consts.UnauthCloseCode, "unauthorized"), deadline)
	_ = conn.Close()
}
