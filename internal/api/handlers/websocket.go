package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mun_dashboard/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler 讓觀看端即時接收主席狀態
type WebSocketHandler struct {
	wsService    *service.WebSocketService
	chairService *service.ChairService
}

func NewWebSocketHandler(wsService *service.WebSocketService, chairService *service.ChairService) *WebSocketHandler {
	return &WebSocketHandler{
		wsService:    wsService,
		chairService: chairService,
	}
}

// HandleWebSocket 升級連接並加入請求者的會期房間
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	cs, err := h.chairService.Session(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// 升級失敗時 upgrader 已寫入錯誤回應
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	h.wsService.HandleConnection(conn, id.Key(), cs.Store.Snapshot())
}
