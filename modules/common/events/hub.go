package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/auth"
	"promo-studio-server/modules/common/response"
)

const (
	TypeImageGenerated   = "image.generated"
	TypeCreditsUpdated   = "credits.updated"
	TypeCaptionGenerated = "caption.generated"

	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Event - 대시보드로 보내는 메시지
type Event struct {
	Type    string      `json:"type"`
	UserID  string      `json:"userId"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher - 핸들러가 의존하는 이벤트 발행 인터페이스
type Publisher interface {
	Publish(userID, eventType string, payload interface{})
}

// Nop - 아무것도 하지 않는 Publisher (테스트, 비활성화용)
type Nop struct{}

func (Nop) Publish(string, string, interface{}) {}

// 연결된 클라이언트 정보
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// 사용자별 연결 묶음
type group struct {
	clients      map[string]*client
	createdAt    time.Time
	lastActivity time.Time
}

// Metrics - 허브 카운터 스냅샷
type Metrics struct {
	TotalGroups       int       `json:"totalGroups"`
	ActiveGroups      int       `json:"activeGroups"`
	TotalConnections  int       `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	DroppedClients    int       `json:"droppedClients"`
	PublishedEvents   int       `json:"publishedEvents"`
	StartTime         time.Time `json:"startTime"`
}

// Hub - 사용자 단위 WebSocket 팬아웃
type Hub struct {
	verifier auth.Verifier
	upgrader websocket.Upgrader

	mu      sync.Mutex
	groups  map[string]*group
	metrics Metrics
}

var _ Publisher = (*Hub)(nil)

func NewHub(verifier auth.Verifier) *Hub {
	return &Hub{
		verifier: verifier,
		upgrader: websocket.Upgrader{
			// 브라우저 대시보드는 어느 origin 에서든 접속 (CORS 와 동일 정책)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		groups:  make(map[string]*group),
		metrics: Metrics{StartTime: time.Now()},
	}
}

// register - 사용자 그룹에 클라이언트 추가 (없으면 그룹 생성)
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, exists := h.groups[c.userID]
	if !exists {
		now := time.Now()
		g = &group{clients: make(map[string]*client), createdAt: now, lastActivity: now}
		h.groups[c.userID] = g
		h.metrics.TotalGroups++
		h.metrics.ActiveGroups++
	}
	g.clients[c.id] = c
	g.lastActivity = time.Now()

	h.metrics.TotalConnections++
	h.metrics.ActiveConnections++

	log.Info().Str("user_id", c.userID).Msgf("👤 [Events] Client connected (user connections: %d, active: %d)",
		len(g.clients), h.metrics.ActiveConnections)
}

// unregister - 클라이언트 제거, 그룹이 비면 정리
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(c) {
		log.Info().Str("user_id", c.userID).Msg("👋 [Events] Client disconnected")
	}
}

// removeLocked - h.mu 보유 상태에서 호출, 이미 제거됐으면 false
func (h *Hub) removeLocked(c *client) bool {
	g, exists := h.groups[c.userID]
	if !exists {
		return false
	}
	if _, ok := g.clients[c.id]; !ok {
		return false
	}

	close(c.send)
	delete(g.clients, c.id)
	h.metrics.ActiveConnections--

	if len(g.clients) == 0 {
		delete(h.groups, c.userID)
		h.metrics.ActiveGroups--
	}
	return true
}

// Publish - 해당 사용자의 모든 연결에 이벤트 전송
// 버퍼가 찬 느린 클라이언트는 끊는다
func (h *Hub) Publish(userID, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, UserID: userID, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("❌ [Events] Failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.PublishedEvents++

	g, exists := h.groups[userID]
	if !exists {
		return
	}
	g.lastActivity = time.Now()

	for _, c := range g.clients {
		select {
		case c.send <- data:
		default:
			h.removeLocked(c)
			h.metrics.DroppedClients++
			log.Warn().Str("user_id", userID).Msg("⚠️  [Events] Dropped slow client")
		}
	}
	log.Debug().Str("user_id", userID).Str("type", eventType).Msg("📤 [Events] Published event")
}

// Snapshot - 현재 메트릭 복사본
func (h *Hub) Snapshot() Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

// CloseAll - 종료 시 모든 연결 정리
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, g := range h.groups {
		for _, c := range g.clients {
			h.removeLocked(c)
		}
	}
	log.Info().Msg("🔌 [Events] Closed all connections")
}

// ServeWS - GET /ws?token=<jwt>
// 토큰 검증 후 업그레이드, 서버 → 클라이언트 단방향 스트림
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.ParseBearer(r.Header.Get("Authorization"))
	}
	if token == "" {
		response.Error(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  [Events] Token verification failed")
		response.Error(w, apperror.Unauthorized("Unauthorized"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("❌ [Events] WebSocket upgrade failed")
		return
	}

	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump - 클라이언트 메시지는 무시하고 close/pong 만 처리
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user_id", c.userID).Msg("⚠️  [Events] WebSocket read error")
			}
			return
		}
	}
}

// writePump - send 채널을 소켓으로 흘려보내고 주기적으로 ping
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("user_id", c.userID).Msg("⚠️  [Events] WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// MetricsHandler - GET /metrics
func (h *Hub) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.Snapshot())
}
