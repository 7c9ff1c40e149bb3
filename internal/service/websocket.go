package service

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/models"
	"mun_dashboard/internal/utils"
)

const (
	MessageState  = "state"
	MessageSystem = "system"
)

// Message 推送給觀看端的訊息
type Message struct {
	Type    string             `json:"type"`
	State   *models.ChairState `json:"state,omitempty"`
	Content string             `json:"content,omitempty"`
}

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	Conn     *websocket.Conn // WebSocket 連接
	Room     string          // 房間 (主席身分的 key)
	SendChan chan *Message   // 消息發送通道，用於異步傳送消息
}

// WebSocketService 管理觀看會期的 WebSocket 連接，每位主席一個房間
type WebSocketService struct {
	clients    map[string]map[*Client]bool // 兩層 map: room -> client -> bool
	clientsMux sync.RWMutex                // 用於保護 clients map 的讀寫鎖
}

func NewWebSocketService() *WebSocketService {
	return &WebSocketService{
		clients: make(map[string]map[*Client]bool),
	}
}

// HandleConnection 處理新的連接，先送出目前狀態，阻塞到連接關閉
func (s *WebSocketService) HandleConnection(conn *websocket.Conn, room string, initial models.ChairState) {
	client := &Client{
		Conn:     conn,
		Room:     room,
		SendChan: make(chan *Message, 256), // 設置緩衝大小為 256 的消息通道
	}
	client.SendChan <- &Message{Type: MessageState, State: &initial}

	s.addClient(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(client)
	}()
	s.readPump(client)

	// removeClient 之後不會再有人寫入 SendChan
	if s.removeClient(client) {
		close(client.SendChan)
	}
	conn.Close()
	<-done
}

// readPump 觀看端不會送資料，只處理 pong 與關閉
func (s *WebSocketService) readPump(client *Client) {
	client.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Log.WithError(err).WithField("room", client.Room).Warn("websocket unexpected close")
			}
			return
		}
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (s *WebSocketService) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			// 設置寫入超時
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := utils.Marshal(message)
			if err != nil {
				logging.Log.WithError(err).Error("message encoding error")
				continue
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				client.Conn.Close()
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Conn.Close()
				return
			}
		}
	}
}

// BroadcastToRoom 向房間內的所有客戶端廣播消息；佇列滿的客戶端會被斷線
func (s *WebSocketService) BroadcastToRoom(room string, message *Message) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for client := range s.clients[room] {
		select {
		case client.SendChan <- message:
		default:
			logging.Log.WithFields(logrus.Fields{"room": room}).Warn("websocket client too slow, dropping")
			s.removeLocked(client)
			close(client.SendChan)
		}
	}
}

// BroadcastState 推送最新的主席狀態
func (s *WebSocketService) BroadcastState(room string, state models.ChairState) {
	s.BroadcastToRoom(room, &Message{Type: MessageState, State: &state})
}

func (s *WebSocketService) BroadcastSystemMessage(room, content string) {
	s.BroadcastToRoom(room, &Message{Type: MessageSystem, Content: content})
}

func (s *WebSocketService) addClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if s.clients[client.Room] == nil {
		s.clients[client.Room] = make(map[*Client]bool)
	}
	s.clients[client.Room][client] = true
}

// removeClient 回傳 client 是否仍在房間中 (是否由本次呼叫移除)
func (s *WebSocketService) removeClient(client *Client) bool {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()
	return s.removeLocked(client)
}

func (s *WebSocketService) removeLocked(client *Client) bool {
	clients, ok := s.clients[client.Room]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	// 如果房間空了，刪除房間
	if len(clients) == 0 {
		delete(s.clients, client.Room)
	}
	return true
}

// RoomClients 指定房間的在線客戶端數量
func (s *WebSocketService) RoomClients(room string) int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	return len(s.clients[room])
}
