package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"freelance_hub/internal/domain"
	"freelance_hub/internal/repository"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxFrameSize     = 4096
	sendBufferSize   = 64
	maxSubscriptions = 32
)

// WebSocketHandler - транспорт каналов: выдает socket_id, проверяет разрешения
// на подписку и пересылает события из Redis в сокет.
type WebSocketHandler struct {
	channelAuth service.ChannelAuthService
	broadcast   repository.BroadcastRepository
	upgrader    websocket.Upgrader
	log         logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewWebSocketHandler(channelAuth service.ChannelAuthService, broadcast repository.BroadcastRepository, allowedOrigin string, log logger.Logger) *WebSocketHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHandler{
		channelAuth: channelAuth,
		broadcast:   broadcast,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// Close закрывает все открытые соединения, вызывается при остановке сервера
func (h *WebSocketHandler) Close() {
	h.cancel()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже ответил клиенту
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	session := newSocketSession(c.Request.Context(), h, conn)
	h.log.Info("Socket connected", "socket_id", session.id)

	session.run()

	h.log.Info("Socket disconnected", "socket_id", session.id)
}

type socketSession struct {
	id   string
	conn *websocket.Conn
	h    *WebSocketHandler
	log  logger.Logger

	send chan []byte
	// subs трогает только цикл чтения
	subs map[string]repository.Subscription
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func newSocketSession(parent context.Context, h *WebSocketHandler, conn *websocket.Conn) *socketSession {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(h.ctx, cancel)

	id := uuid.NewString()
	s := &socketSession{
		id:   id,
		conn: conn,
		h:    h,
		log:  h.log.With("socket_id", id),
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]repository.Subscription),
		ctx:  ctx,
	}
	s.cancel = func() {
		stop()
		cancel()
	}
	return s
}

func (s *socketSession) run() {
	defer s.close()

	s.wg.Add(1)
	go s.writeLoop()

	s.emit(domain.EventConnectionEstablished, "", domain.ConnectionEstablished{SocketID: s.id})
	s.readLoop()
}

// close освобождает все подписки соединения
func (s *socketSession) close() {
	s.cancel()
	for channel, sub := range s.subs {
		if err := sub.Close(); err != nil {
			s.log.Warn("Failed to close subscription", "channel", channel, "error", err)
		}
		delete(s.subs, channel)
	}
	s.wg.Wait()
	_ = s.conn.Close()
}

func (s *socketSession) readLoop() {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Socket read failed", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame domain.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.emit(domain.EventError, "", domain.SubscriptionError{Error: "malformed frame"})
			continue
		}

		switch frame.Action {
		case domain.ActionSubscribe:
			s.subscribe(frame)
		case domain.ActionUnsubscribe:
			s.unsubscribe(frame.Channel)
		case domain.ActionPing:
			s.emit(domain.EventPong, "", nil)
		default:
			s.emit(domain.EventError, frame.Channel, domain.SubscriptionError{Error: "unknown action"})
		}
	}
}

func (s *socketSession) subscribe(frame domain.ClientFrame) {
	// разрешение проверяется и для уже подписанного канала
	claims, err := s.h.channelAuth.VerifyGrant(frame.Auth, s.id, frame.Channel)
	if err != nil {
		s.log.Warn("Subscription rejected", "channel", frame.Channel, "error", err)
		s.emit(domain.EventSubscriptionError, frame.Channel, domain.SubscriptionError{Error: "subscription rejected"})
		return
	}

	if _, ok := s.subs[frame.Channel]; ok {
		s.emit(domain.EventSubscriptionSucceeded, frame.Channel, nil)
		return
	}
	if len(s.subs) >= maxSubscriptions {
		s.emit(domain.EventSubscriptionError, frame.Channel, domain.SubscriptionError{Error: "too many subscriptions"})
		return
	}

	sub, err := s.h.broadcast.Subscribe(s.ctx, frame.Channel)
	if err != nil {
		s.log.Error("Failed to subscribe to broadcast", "channel", frame.Channel, "error", err)
		s.emit(domain.EventSubscriptionError, frame.Channel, domain.SubscriptionError{Error: "broadcast unavailable"})
		return
	}

	s.subs[frame.Channel] = sub
	s.wg.Add(1)
	go s.forward(sub)

	s.log.Debug("Subscribed", "channel", frame.Channel, "user_id", claims.UserID)
	s.emit(domain.EventSubscriptionSucceeded, frame.Channel, nil)
}

func (s *socketSession) unsubscribe(channel string) {
	sub, ok := s.subs[channel]
	if !ok {
		return
	}
	delete(s.subs, channel)
	if err := sub.Close(); err != nil {
		s.log.Warn("Failed to close subscription", "channel", channel, "error", err)
	}
}

// forward завершается, когда подписку закрывают
func (s *socketSession) forward(sub repository.Subscription) {
	defer s.wg.Done()

	for envelope := range sub.Events() {
		payload, err := json.Marshal(envelope)
		if err != nil {
			s.log.Warn("Failed to encode event", "error", err)
			continue
		}
		if !s.enqueue(payload) {
			return
		}
	}
}

func (s *socketSession) writeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Warn("Socket write failed", "error", err)
				s.cancel()
				// разблокирует ReadMessage
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				_ = s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = s.conn.Close()
			return
		}
	}
}

func (s *socketSession) emit(event, channel string, data interface{}) {
	envelope := domain.Envelope{Event: event, Channel: channel}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.log.Warn("Failed to encode event data", "event", event, "error", err)
			return
		}
		envelope.Data = raw
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	s.enqueue(payload)
}

func (s *socketSession) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	case <-s.ctx.Done():
		return false
	}
}
