// Package websocket рассылает подключенным клиентам обновления хода
// генерации (замена прогресс-бару и "потоку мыслей" браузерного мастера).
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Manager управляет WebSocket-соединениями.
type Manager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
}

// Client представляет WebSocket-клиента.
type Client struct {
	ID      uuid.UUID
	Conn    *websocket.Conn
	Manager *Manager
	Send    chan []byte
	Topics  map[string]bool
	mu      sync.Mutex
}

// Message представляет сообщение для отправки через WebSocket.
type Message struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// NewManager создает менеджер соединений. allowedOrigins ограничивает
// источники апгрейда; пустой список разрешает все (режим разработки).
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(originSet) == 0 {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
		logger: logger,
	}
}

// Start запускает цикл менеджера в отдельной горутине.
func (m *Manager) Start() {
	go m.run()
}

// run обрабатывает регистрацию, отключение и рассылку.
func (m *Manager) run() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.logger.Debug("WebSocket: клиент подключен", zap.String("client_id", client.ID.String()))

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				close(client.Send)
				delete(m.clients, client.ID)
				m.logger.Debug("WebSocket: клиент отключен", zap.String("client_id", client.ID.String()))
			}
			m.mu.Unlock()

		case message := <-m.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				m.logger.Error("WebSocket: ошибка маршалинга сообщения", zap.Error(err))
				continue
			}

			m.mu.Lock()
			for _, client := range m.clients {
				if !client.IsSubscribed(message.Topic) {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// Медленный клиент выбрасывается
					close(client.Send)
					delete(m.clients, client.ID)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Handler обрабатывает новые WebSocket-соединения. Новый клиент сразу
// подписан на тему "tasks".
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := m.upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.logger.Warn("WebSocket: ошибка апгрейда соединения", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New(),
			Conn:    conn,
			Manager: m,
			Send:    make(chan []byte, 256),
			Topics:  map[string]bool{"tasks": true},
		}

		m.register <- client

		go client.readPump()
		go client.writePump()
	})
}

// Broadcast отправляет сообщение всем клиентам, подписанным на тему.
// Реализует хук уведомлений менеджера задач.
func (m *Manager) Broadcast(messageType, topic string, payload interface{}) {
	m.broadcast <- Message{
		Type:    messageType,
		Topic:   topic,
		Payload: payload,
	}
}

// readPump обрабатывает входящие команды клиента (подписка на темы).
func (c *Client) readPump() {
	defer func() {
		c.Manager.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.logger.Debug("WebSocket: ошибка чтения", zap.Error(err))
			}
			break
		}

		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.Manager.logger.Debug("WebSocket: ошибка разбора команды", zap.Error(err))
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

// writePump отправляет сообщения клиенту и поддерживает ping.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Дописываем накопившиеся сообщения в тот же фрейм
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe подписывает клиента на тему.
func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Topics[topic] = true
}

// Unsubscribe отписывает клиента от темы.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Topics, topic)
}

// IsSubscribed проверяет подписку клиента на тему.
func (c *Client) IsSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Topics[topic]
}
