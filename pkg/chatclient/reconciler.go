package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"freelance_hub/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type State int

const (
	Disconnected State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSubscriptionRejected - сервер отказал в подписке. Для этого канала окончательно.
	ErrSubscriptionRejected = errors.New("chatclient: subscription rejected")
	ErrAlreadyAttached      = errors.New("chatclient: already attached")
	// ErrClosed - Close прервал незавершенный Attach
	ErrClosed = errors.New("chatclient: closed")
)

type Option func(*Reconciler)

// WithTypingHandler - обработчик событий user-typing
func WithTypingHandler(fn func(domain.TypingEvent)) Option {
	return func(r *Reconciler) { r.onTyping = fn }
}

// WithMessageHandler вызывается для каждого живого сообщения после слияния.
// Сообщения из истории обработчик не получает.
func WithMessageHandler(fn func(*domain.ChatMessage)) Option {
	return func(r *Reconciler) { r.onMessage = fn }
}

// Reconciler держит локальную копию переписки проекта: история плюс живые события.
// Сообщения сливаются по id, повтор не добавляется.
type Reconciler struct {
	projectID uuid.UUID
	channel   string
	api       API
	conn      Conn
	onTyping  func(domain.TypingEvent)
	onMessage func(*domain.ChatMessage)

	mu       sync.Mutex
	state    State
	rejected bool
	messages []*domain.ChatMessage
	seen     map[int64]struct{}

	// gen меняется при каждом Attach и Close; устаревший Attach состояние не трогает
	gen        uint64
	cancel     context.CancelFunc
	attachDone chan struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewReconciler(projectID uuid.UUID, api API, conn Conn, opts ...Option) *Reconciler {
	r := &Reconciler{
		projectID: projectID,
		channel:   domain.ChannelName(projectID),
		api:       api,
		conn:      conn,
		seen:      make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Messages возвращает копию текущего списка
func (r *Reconciler) Messages() []*domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.ChatMessage(nil), r.messages...)
}

// Merge добавляет сообщение в хвост, если его id еще не встречался
func (r *Reconciler) Merge(msg *domain.ChatMessage) bool {
	if msg == nil {
		return false
	}

	r.mu.Lock()
	added := r.add(msg)
	r.mu.Unlock()

	if added && r.onMessage != nil {
		r.onMessage(msg)
	}
	return added
}

// add вызывается под r.mu
func (r *Reconciler) add(msg *domain.ChatMessage) bool {
	if _, ok := r.seen[msg.ID]; ok {
		return false
	}
	r.seen[msg.ID] = struct{}{}
	r.messages = append(r.messages, msg)
	return true
}

// seed сливает историю без вызова обработчика сообщений
func (r *Reconciler) seed(gen uint64, history []*domain.ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	for _, msg := range lo.Filter(history, func(m *domain.ChatMessage, _ int) bool { return m != nil }) {
		r.add(msg)
	}
	return true
}

func (r *Reconciler) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen == gen
}

// Attach: история, разрешение, подписка. Возвращается в состоянии Subscribed или Disconnected.
// Если Close успел раньше, подписка снимается и возвращается ErrClosed.
func (r *Reconciler) Attach(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.rejected:
		r.mu.Unlock()
		return ErrSubscriptionRejected
	case r.state != Disconnected, r.attachDone != nil:
		r.mu.Unlock()
		return ErrAlreadyAttached
	}
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.attachDone = done
	r.state = Subscribing
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.attachDone = nil
		r.mu.Unlock()
		cancel()
		close(done)
	}()

	history, err := r.api.History(ctx, r.projectID)
	if err != nil {
		return r.fail(gen, classify(err))
	}
	if !r.seed(gen, history) {
		return ErrClosed
	}

	grant, err := r.api.Authorize(ctx, r.conn.SocketID(), r.channel)
	if err != nil {
		return r.fail(gen, classify(err))
	}
	if !r.current(gen) {
		return ErrClosed
	}

	events, err := r.conn.Subscribe(r.channel, grant.Auth)
	if err != nil {
		return r.fail(gen, err)
	}

	if err := r.awaitSubscription(ctx, events); err != nil {
		_ = r.conn.Unsubscribe(r.channel)
		return r.fail(gen, err)
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		_ = r.conn.Unsubscribe(r.channel)
		return ErrClosed
	}
	stop := make(chan struct{})
	r.state = Subscribed
	r.stop = stop
	r.wg.Add(1)
	r.mu.Unlock()

	go r.listen(gen, events, stop)

	return nil
}

// Close отписывается и освобождает канал. Безопасно вызывать повторно.
// Незавершенный Attach прерывается; Close ждет, пока он снимет подписку.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	if r.state == Disconnected {
		r.mu.Unlock()
		return nil
	}
	r.gen++

	if r.state == Subscribing {
		cancel, done := r.cancel, r.attachDone
		r.state = Disconnected
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
		return nil
	}

	stop := r.stop
	r.stop = nil
	r.state = Disconnected
	r.mu.Unlock()

	err := r.conn.Unsubscribe(r.channel)
	if stop != nil {
		close(stop)
	}
	r.wg.Wait()

	if errors.Is(err, ErrConnectionClosed) {
		return nil
	}
	return err
}

func (r *Reconciler) awaitSubscription(ctx context.Context, events <-chan *domain.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-events:
			if !ok {
				return ErrConnectionClosed
			}
			switch envelope.Event {
			case domain.EventSubscriptionSucceeded:
				return nil
			case domain.EventSubscriptionError:
				return ErrSubscriptionRejected
			default:
				r.dispatch(envelope)
			}
		}
	}
}

func (r *Reconciler) listen(gen uint64, events <-chan *domain.Envelope, stop <-chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case <-stop:
			return
		case envelope, ok := <-events:
			if !ok {
				r.mu.Lock()
				if r.gen == gen {
					r.state = Disconnected
					r.stop = nil
				}
				r.mu.Unlock()
				return
			}
			r.dispatch(envelope)
		}
	}
}

func (r *Reconciler) dispatch(envelope *domain.Envelope) {
	switch envelope.Event {
	case domain.EventNewMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			return
		}
		r.Merge(&msg)
	case domain.EventUserTyping:
		if r.onTyping == nil {
			return
		}
		var event domain.TypingEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return
		}
		r.onTyping(event)
	}
}

// fail возвращает в Disconnected; отказ в подписке запоминается
func (r *Reconciler) fail(gen uint64, err error) error {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return ErrClosed
	}
	r.state = Disconnected
	if errors.Is(err, ErrSubscriptionRejected) {
		r.rejected = true
	}
	r.mu.Unlock()
	return err
}

func classify(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Rejected() {
		return fmt.Errorf("%w: %v", ErrSubscriptionRejected, err)
	}
	return err
}
