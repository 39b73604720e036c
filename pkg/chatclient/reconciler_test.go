package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"freelance_hub/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu           sync.Mutex
	history      []*domain.ChatMessage
	historyErr   error
	authorizeErr error
	calls        int
}

func (f *fakeAPI) History(_ context.Context, _ uuid.UUID) ([]*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeAPI) Authorize(_ context.Context, socketID, channel string) (*domain.ChannelGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	return &domain.ChannelGrant{Auth: socketID + ":" + channel}, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConn struct {
	mu           sync.Mutex
	events       chan *domain.Envelope
	auth         string
	unsubscribed []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan *domain.Envelope, 16)}
}

func (f *fakeConn) SocketID() string { return "socket-1" }

func (f *fakeConn) Subscribe(_ string, auth string) (<-chan *domain.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = auth
	return f.events, nil
}

func (f *fakeConn) Unsubscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, channel)
	return nil
}

func (f *fakeConn) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unsubscribed)
}

// stallingAPI держит History до отмены контекста или release
type stallingAPI struct {
	*fakeAPI
	entered chan struct{}
	release chan struct{}
}

func newStallingAPI() *stallingAPI {
	return &stallingAPI{
		fakeAPI: &fakeAPI{history: []*domain.ChatMessage{{ID: 1}}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (f *stallingAPI) History(ctx context.Context, projectID uuid.UUID) ([]*domain.ChatMessage, error) {
	close(f.entered)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
		return f.fakeAPI.History(ctx, projectID)
	}
}

func (f *fakeConn) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth != ""
}

func envelope(t *testing.T, event string, data interface{}) *domain.Envelope {
	t.Helper()
	e := &domain.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		e.Data = raw
	}
	return e
}

func TestReconciler_MergeIsIdempotent(t *testing.T) {
	r := NewReconciler(uuid.New(), &fakeAPI{}, newFakeConn())

	assert.True(t, r.Merge(&domain.ChatMessage{ID: 1, Content: "a"}))
	assert.False(t, r.Merge(&domain.ChatMessage{ID: 1, Content: "a"}))
	assert.True(t, r.Merge(&domain.ChatMessage{ID: 2, Content: "b"}))
	assert.False(t, r.Merge(nil))

	messages := r.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, int64(1), messages[0].ID)
	assert.Equal(t, int64(2), messages[1].ID)
}

func TestReconciler_AttachMergesHistoryAndLiveEvents(t *testing.T) {
	projectID := uuid.New()
	api := &fakeAPI{history: []*domain.ChatMessage{{ID: 1}, {ID: 2}}}
	conn := newFakeConn()

	typing := make(chan domain.TypingEvent, 1)
	r := NewReconciler(projectID, api, conn, WithTypingHandler(func(e domain.TypingEvent) { typing <- e }))
	t.Cleanup(func() { _ = r.Close() })

	conn.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)

	require.NoError(t, r.Attach(context.Background()))
	assert.Equal(t, Subscribed, r.State())
	assert.Equal(t, "socket-1:"+domain.ChannelName(projectID), conn.auth)

	// повтор из истории и новое сообщение
	conn.events <- envelope(t, domain.EventNewMessage, domain.ChatMessage{ID: 2})
	conn.events <- envelope(t, domain.EventNewMessage, domain.ChatMessage{ID: 3})

	userID := uuid.New()
	conn.events <- envelope(t, domain.EventUserTyping, domain.TypingEvent{UserID: userID, IsTyping: true})

	select {
	case e := <-typing:
		assert.Equal(t, userID, e.UserID)
		assert.True(t, e.IsTyping)
	case <-time.After(2 * time.Second):
		t.Fatal("typing event not delivered")
	}

	messages := r.Messages()
	require.Len(t, messages, 3)
	for i, m := range messages {
		assert.Equal(t, int64(i+1), m.ID)
	}

	require.ErrorIs(t, r.Attach(context.Background()), ErrAlreadyAttached)
}

func TestReconciler_RejectionIsTerminal(t *testing.T) {
	api := &fakeAPI{authorizeErr: &StatusError{StatusCode: http.StatusForbidden, Body: `{"error":"forbidden"}`}}
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), api, conn)

	err := r.Attach(context.Background())
	require.ErrorIs(t, err, ErrSubscriptionRejected)
	assert.Equal(t, Disconnected, r.State())

	calls := api.callCount()
	require.ErrorIs(t, r.Attach(context.Background()), ErrSubscriptionRejected)
	assert.Equal(t, calls, api.callCount())
}

func TestReconciler_ServerSubscriptionError(t *testing.T) {
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), &fakeAPI{}, conn)

	conn.events <- envelope(t, domain.EventSubscriptionError, domain.SubscriptionError{Error: "subscription rejected"})

	require.ErrorIs(t, r.Attach(context.Background()), ErrSubscriptionRejected)
	assert.Equal(t, Disconnected, r.State())
	assert.Equal(t, 1, conn.unsubscribeCount())
}

func TestReconciler_TransientFailureCanRetry(t *testing.T) {
	api := &fakeAPI{historyErr: &StatusError{StatusCode: http.StatusServiceUnavailable}}
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), api, conn)
	t.Cleanup(func() { _ = r.Close() })

	err := r.Attach(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSubscriptionRejected))
	assert.Equal(t, Disconnected, r.State())

	api.mu.Lock()
	api.historyErr = nil
	api.mu.Unlock()
	conn.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)

	require.NoError(t, r.Attach(context.Background()))
	assert.Equal(t, Subscribed, r.State())
}

func TestReconciler_AttachHonorsContext(t *testing.T) {
	r := NewReconciler(uuid.New(), &fakeAPI{}, newFakeConn())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, r.Attach(ctx), context.DeadlineExceeded)
	assert.Equal(t, Disconnected, r.State())
}

func TestReconciler_CloseAndConnectionLoss(t *testing.T) {
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), &fakeAPI{}, conn)

	conn.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)
	require.NoError(t, r.Attach(context.Background()))

	require.NoError(t, r.Close())
	assert.Equal(t, Disconnected, r.State())
	assert.Equal(t, 1, conn.unsubscribeCount())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, conn.unsubscribeCount())

	lost := newFakeConn()
	r = NewReconciler(uuid.New(), &fakeAPI{}, lost)
	lost.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)
	require.NoError(t, r.Attach(context.Background()))

	close(lost.events)
	require.Eventually(t, func() bool { return r.State() == Disconnected }, 2*time.Second, 10*time.Millisecond)
}

func TestReconciler_HistoryDoesNotFireMessageHandler(t *testing.T) {
	api := &fakeAPI{history: []*domain.ChatMessage{{ID: 1}, {ID: 2}}}
	conn := newFakeConn()

	delivered := make(chan int64, 8)
	r := NewReconciler(uuid.New(), api, conn, WithMessageHandler(func(m *domain.ChatMessage) { delivered <- m.ID }))
	t.Cleanup(func() { _ = r.Close() })

	conn.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)
	require.NoError(t, r.Attach(context.Background()))
	require.Len(t, r.Messages(), 2)

	conn.events <- envelope(t, domain.EventNewMessage, domain.ChatMessage{ID: 2})
	conn.events <- envelope(t, domain.EventNewMessage, domain.ChatMessage{ID: 3})

	select {
	case id := <-delivered:
		assert.Equal(t, int64(3), id)
	case <-time.After(2 * time.Second):
		t.Fatal("live message not delivered")
	}
	require.Eventually(t, func() bool { return len(r.Messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, delivered)
}

func TestReconciler_CloseDuringHistory(t *testing.T) {
	api := newStallingAPI()
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), api, conn)

	result := make(chan error, 1)
	go func() { result <- r.Attach(context.Background()) }()

	<-api.entered
	assert.Equal(t, Subscribing, r.State())
	require.NoError(t, r.Close())

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("attach did not return")
	}

	assert.Equal(t, Disconnected, r.State())
	assert.False(t, conn.subscribed())
	assert.Zero(t, conn.unsubscribeCount())
	assert.Empty(t, r.Messages())
}

func TestReconciler_CloseWhileAwaitingAck(t *testing.T) {
	conn := newFakeConn()
	r := NewReconciler(uuid.New(), &fakeAPI{}, conn)

	result := make(chan error, 1)
	go func() { result <- r.Attach(context.Background()) }()

	require.Eventually(t, conn.subscribed, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Close())

	// Close дожидается незавершенного Attach: подписка уже снята
	assert.Equal(t, 1, conn.unsubscribeCount())
	assert.Equal(t, Disconnected, r.State())

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("attach did not return")
	}

	// повторное подключение после Close
	conn.events <- envelope(t, domain.EventSubscriptionSucceeded, nil)
	require.NoError(t, r.Attach(context.Background()))
	assert.Equal(t, Subscribed, r.State())

	require.NoError(t, r.Close())
	assert.Equal(t, Disconnected, r.State())
	assert.Equal(t, 2, conn.unsubscribeCount())
}
