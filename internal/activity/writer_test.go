package activity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/observ"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Append(ctx context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error) {
	args := m.Called(ctx, scope, e)
	entry, _ := args.Get(0).(*models.ActivityEntry)
	return entry, args.Error(1)
}

func (m *mockStore) ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error) {
	args := m.Called(ctx, scope, employeeID, limit)
	return args.Get(0).([]models.ActivityEntry), args.Error(1)
}

func (m *mockStore) ListRecent(ctx context.Context, scope tenancy.Scope, limit int) ([]models.ActivityEntry, error) {
	args := m.Called(ctx, scope, limit)
	return args.Get(0).([]models.ActivityEntry), args.Error(1)
}

func TestRecord_SurvivesCancelledRequest(t *testing.T) {
	store := &mockStore{}
	scope := tenancy.MustScope(uuid.New())
	entry := models.ActivityEntry{Action: "Employee created", ActionType: models.ActionCreate}

	store.On("Append", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), scope, entry).Return(&entry, nil)

	w := NewWriter(store, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Record(ctx, scope, entry)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestRecord_FailureCountsAndReturns(t *testing.T) {
	store := &mockStore{}
	scope := tenancy.MustScope(uuid.New())
	store.On("Append", mock.Anything, scope, mock.Anything).Return(nil, errors.New("relation does not exist"))

	metrics := observ.NewMetrics()
	w := NewWriter(store, zap.NewNop(), metrics)
	w.timeout = time.Second

	_, err := w.Record(context.Background(), scope, models.ActivityEntry{Action: "x", ActionType: models.ActionUpdate})
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "activity_log_write_failures_total 1")
}

func TestListForEmployee_ClampsLimit(t *testing.T) {
	scope := tenancy.MustScope(uuid.New())
	employeeID := uuid.New()

	cases := map[int]int{0: 100, -3: 100, 20: 20, 100: 100, 5000: 100}
	for in, want := range cases {
		store := &mockStore{}
		store.On("ListByEmployee", mock.Anything, scope, employeeID, want).Return([]models.ActivityEntry{}, nil)

		w := NewWriter(store, zap.NewNop(), nil)
		_, err := w.ListForEmployee(context.Background(), scope, employeeID, in)
		require.NoError(t, err)
		store.AssertExpectations(t)
	}
}
