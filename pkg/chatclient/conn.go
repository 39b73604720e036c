package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"freelance_hub/internal/domain"

	"github.com/gorilla/websocket"
)

var ErrConnectionClosed = errors.New("chatclient: connection closed")

// Conn - одно WebSocket соединение, на котором живут подписки на каналы
type Conn interface {
	SocketID() string
	// Subscribe отправляет кадр подписки; события канала, включая ответ сервера, идут в возвращенный канал
	Subscribe(channel, auth string) (<-chan *domain.Envelope, error)
	Unsubscribe(channel string) error
}

type route struct {
	events chan *domain.Envelope
	done   chan struct{}
}

// Socket - реализация Conn поверх gorilla/websocket
type Socket struct {
	conn     *websocket.Conn
	socketID string

	writeMu sync.Mutex

	mu     sync.Mutex
	routes map[string]*route
	closed bool

	readDone chan struct{}
}

// Dial подключается и ждет connection_established с socket_id
func Dial(ctx context.Context, wsURL string, header http.Header) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	var hello domain.Envelope
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	if hello.Event != domain.EventConnectionEstablished {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected handshake event %q", hello.Event)
	}

	var established domain.ConnectionEstablished
	if err := json.Unmarshal(hello.Data, &established); err != nil || established.SocketID == "" {
		_ = conn.Close()
		return nil, errors.New("handshake without socket_id")
	}

	s := &Socket{
		conn:     conn,
		socketID: established.SocketID,
		routes:   make(map[string]*route),
		readDone: make(chan struct{}),
	}
	go s.readLoop()

	return s, nil
}

func (s *Socket) SocketID() string {
	return s.socketID
}

func (s *Socket) Subscribe(channel, auth string) (<-chan *domain.Envelope, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if old, ok := s.routes[channel]; ok {
		close(old.done)
	}
	r := &route{
		events: make(chan *domain.Envelope, 64),
		done:   make(chan struct{}),
	}
	s.routes[channel] = r
	s.mu.Unlock()

	if err := s.write(domain.ClientFrame{Action: domain.ActionSubscribe, Channel: channel, Auth: auth}); err != nil {
		s.dropRoute(channel, r)
		return nil, err
	}

	return r.events, nil
}

func (s *Socket) Unsubscribe(channel string) error {
	s.mu.Lock()
	r, ok := s.routes[channel]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.dropRoute(channel, r)

	return s.write(domain.ClientFrame{Action: domain.ActionUnsubscribe, Channel: channel})
}

// Close рвет соединение; каналы событий закрываются после выхода цикла чтения
func (s *Socket) Close() error {
	err := s.conn.Close()
	<-s.readDone
	return err
}

func (s *Socket) dropRoute(channel string, r *route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.routes[channel] == r {
		delete(s.routes, channel)
		close(r.done)
	}
}

func (s *Socket) write(frame domain.ClientFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

func (s *Socket) readLoop() {
	defer close(s.readDone)
	defer func() {
		s.mu.Lock()
		s.closed = true
		for channel, r := range s.routes {
			delete(s.routes, channel)
			close(r.events)
		}
		s.mu.Unlock()
	}()

	for {
		var envelope domain.Envelope
		if err := s.conn.ReadJSON(&envelope); err != nil {
			return
		}

		s.mu.Lock()
		r, ok := s.routes[envelope.Channel]
		s.mu.Unlock()
		if !ok {
			continue
		}

		select {
		case r.events <- &envelope:
		case <-r.done:
		}
	}
}
