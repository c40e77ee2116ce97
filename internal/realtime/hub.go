// Package realtime fans out row change events to subscribers of one
// tenant's table.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/observ"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Tables lists what clients may subscribe to.
var Tables = map[string]bool{
	"employees":       true,
	"employee_notes":  true,
	"tasks":           true,
	"health_checkups": true,
	"documents":       true,
	"messages":        true,
	"activity_logs":   true,
}

type Event struct {
	Table    string          `json:"table"`
	Type     EventType       `json:"type"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Record   json.RawMessage `json:"record"`
	At       time.Time       `json:"at"`
}

func NewEvent(table string, typ EventType, tenantID uuid.UUID, record any) (Event, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s record: %w", table, err)
	}
	return Event{Table: table, Type: typ, TenantID: tenantID, Record: raw, At: time.Now().UTC()}, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

const subscriberBuffer = 32

// Hub publishes through redis so every server instance sees every event.
// Without a redis client it fans out in process, which is enough for a
// single instance and for tests.
type Hub struct {
	rdb     *redis.Client
	logger  *zap.Logger
	metrics *observ.Metrics

	mu    sync.RWMutex
	local map[string]map[chan Event]struct{}
}

func NewHub(rdb *redis.Client, logger *zap.Logger, metrics *observ.Metrics) *Hub {
	return &Hub{
		rdb:     rdb,
		logger:  logger,
		metrics: metrics,
		local:   make(map[string]map[chan Event]struct{}),
	}
}

func channelName(tenantID uuid.UUID, table string) string {
	return "hse:" + tenantID.String() + ":" + table
}

func (h *Hub) Publish(ctx context.Context, e Event) error {
	err := h.publish(ctx, e)
	h.metrics.Published(e.Table, string(e.Type), err)
	return err
}

func (h *Hub) publish(ctx context.Context, e Event) error {
	if !Tables[e.Table] {
		return apperr.Validation("table %q is not published", e.Table)
	}
	if e.TenantID == uuid.Nil {
		return apperr.ErrNoTenant
	}
	ch := channelName(e.TenantID, e.Table)

	if h.rdb == nil {
		h.fanout(ch, e)
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := h.rdb.Publish(ctx, ch, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ch, err)
	}
	return nil
}

func (h *Hub) fanout(ch string, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.local[ch] {
		select {
		case sub <- e:
		default:
			h.logger.Warn("dropping realtime event for slow subscriber", zap.String("channel", ch))
		}
	}
}

// Subscribe delivers events for one tenant's table until ctx is done, then
// closes the returned channel.
func (h *Hub) Subscribe(ctx context.Context, tenantID uuid.UUID, table string) (<-chan Event, error) {
	if !Tables[table] {
		return nil, apperr.Validation("table %q is not published", table)
	}
	if tenantID == uuid.Nil {
		return nil, apperr.ErrNoTenant
	}
	ch := channelName(tenantID, table)

	if h.rdb == nil {
		return h.subscribeLocal(ctx, ch), nil
	}

	ps := h.rdb.Subscribe(ctx, ch)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ch, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					h.logger.Warn("bad realtime payload", zap.String("channel", ch), zap.Error(err))
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (h *Hub) subscribeLocal(ctx context.Context, ch string) <-chan Event {
	sub := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.local[ch] == nil {
		h.local[ch] = make(map[chan Event]struct{})
	}
	h.local[ch][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.local[ch], sub)
		if len(h.local[ch]) == 0 {
			delete(h.local, ch)
		}
		h.mu.Unlock()
		close(sub)
	}()
	return sub
}
