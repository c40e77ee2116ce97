package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_LocalFanoutIsTenantScoped(t *testing.T) {
	h := NewHub(nil, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantA, tenantB := uuid.New(), uuid.New()
	subA, err := h.Subscribe(ctx, tenantA, "messages")
	require.NoError(t, err)
	subB, err := h.Subscribe(ctx, tenantB, "messages")
	require.NoError(t, err)

	e, err := NewEvent("messages", Insert, tenantA, map[string]any{"id": 1, "body": "hi"})
	require.NoError(t, err)
	require.NoError(t, h.Publish(ctx, e))

	got := receive(t, subA)
	assert.Equal(t, tenantA, got.TenantID)
	assert.JSONEq(t, `{"id":1,"body":"hi"}`, string(got.Record))

	select {
	case <-subB:
		t.Fatal("tenant b received tenant a's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	h := NewHub(nil, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := h.Subscribe(ctx, uuid.New(), "tasks")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestHub_RejectsUnknownTableAndMissingTenant(t *testing.T) {
	h := NewHub(nil, zap.NewNop(), nil)
	ctx := context.Background()

	_, err := h.Subscribe(ctx, uuid.New(), "users")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = h.Publish(ctx, Event{Table: "tasks", Type: Update})
	assert.ErrorIs(t, err, apperr.ErrNoTenant)
}

func TestStream_DeliversEventsOverWebsocket(t *testing.T) {
	events := make(chan Event, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = Stream(r.Context(), conn, events)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	tenant := uuid.New()
	e, err := NewEvent("tasks", Update, tenant, map[string]string{"status": "completed"})
	require.NoError(t, err)
	events <- e

	var got Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "tasks", got.Table)
	assert.Equal(t, Update, got.Type)
	assert.Equal(t, tenant, got.TenantID)
}
